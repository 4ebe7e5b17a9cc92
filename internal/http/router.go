// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"motoshop/internal/http/handlers"
	"motoshop/internal/http/middleware"
	"motoshop/internal/infra"
	"motoshop/internal/types"
)

type RouterDeps struct {
	Orders       handlers.Workflow
	Bays         handlers.BayRegistry
	Availability handlers.AvailabilityReader
	Verifier     infra.TokenVerifier
	Log          *logrus.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))
	workshop := middleware.RequireRole(types.RoleStaff, types.RoleTechnician, types.RoleAdmin)
	admin := middleware.RequireRole(types.RoleStaff, types.RoleAdmin)

	bookings := handlers.NewBookingHandler(deps.Orders)
	api.POST("/bookings", bookings.Create)
	api.GET("/bookings/:id", bookings.Get)
	api.GET("/bookings/:id/progress", bookings.Progress)
	api.POST("/bookings/:id/check-in", bookings.CheckIn)
	api.POST("/bookings/:id/cancel", bookings.Cancel)

	orders := handlers.NewServiceOrderHandler(deps.Orders)
	api.GET("/service-orders/:id", orders.Get)
	api.POST("/service-orders/:id/inspection", orders.ScheduleInspection)
	api.POST("/service-orders/:id/servicing", orders.ScheduleServicing)
	api.POST("/service-orders/:id/quotes", orders.CreateQuote)

	tasks := handlers.NewTaskHandler(deps.Orders)
	api.GET("/tasks/:id", tasks.Get)
	api.POST("/tasks/:id/begin", tasks.Begin)
	api.POST("/tasks/:id/complete", tasks.Complete)
	api.POST("/tasks/:id/timeline", tasks.AppendTimeline)
	api.PUT("/tasks/:id/timeline/:entryId", tasks.UpdateTimeline)

	quotes := handlers.NewQuoteHandler(deps.Orders)
	api.GET("/quotes/:id", quotes.Get)
	api.POST("/quotes/:id/approve", quotes.Approve)
	api.POST("/quotes/:id/reject", quotes.Reject)

	bays := handlers.NewBayHandler(deps.Bays)
	api.GET("/bays", workshop, bays.List)
	api.GET("/bays/:id", workshop, bays.Get)
	api.POST("/bays", admin, bays.Create)
	api.PATCH("/bays/:id", admin, bays.Update)
	api.DELETE("/bays/:id", admin, bays.Delete)

	dispatch := handlers.NewAvailabilityHandler(deps.Availability, deps.Orders)
	api.GET("/availability", workshop, dispatch.Snapshot)
	api.GET("/dashboard", workshop, dispatch.Dashboard)

	return r
}
