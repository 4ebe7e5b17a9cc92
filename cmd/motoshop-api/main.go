// README: Entry point; loads config, wires services, starts the event dispatcher and the HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"motoshop/internal/config"
	httptransport "motoshop/internal/http"
	"motoshop/internal/infra"
	"motoshop/internal/modules/availability"
	"motoshop/internal/modules/bay"
	"motoshop/internal/modules/notify"
	"motoshop/internal/modules/order"
	"motoshop/internal/modules/quote"
	"motoshop/internal/modules/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("auth init")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer dbPool.Close()
	if cfg.DB.AutoMigrate {
		if err := infra.Migrate(ctx, dbPool); err != nil {
			log.WithError(err).Fatal("migrate")
		}
		log.Info("schema migrated")
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	sinks := []notify.Sink{
		notify.NewRedisSink(redisClient, cfg.Redis.EventStream),
		notify.NewLogSink(log),
	}
	if cfg.Events.Push {
		fcm, err := infra.NewFirebaseMessaging(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.WithError(err).Fatal("fcm init")
		}
		sinks = append(sinks, notify.NewPushSink(fcm))
	}
	dispatcher := notify.NewDispatcher(cfg.Events.Buffer, log, sinks...)

	baySvc := bay.NewService(bay.NewStore(dbPool))
	taskSvc := task.NewService(task.NewStore(dbPool), baySvc)
	quoteSvc := quote.NewService(quote.NewStore(dbPool), cfg.Shop.TaxRate, cfg.Shop.Currency)
	orderSvc := order.NewService(infra.NewTxRunner(dbPool), order.NewStore(dbPool), taskSvc, quoteSvc, dispatcher, log)
	availabilitySvc := availability.NewService(baySvc, taskSvc, cfg.Availability.Lookahead, cfg.Availability.UpcomingLimit)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Orders:       orderSvc,
		Bays:         baySvc,
		Availability: availabilitySvc,
		Verifier:     verifier,
		Log:          log,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, router, log)
	err = serve(ctx, func(ctx context.Context) error {
		return server.Run(ctx, 15*time.Second)
	}, dispatcher)
	if err != nil {
		log.WithError(err).Error("server stopped")
	}
	if n := dispatcher.Dropped(); n > 0 {
		log.WithField("dropped", n).Warn("events dropped during run")
	}
}

// serve runs the server until it has finished its graceful shutdown, then stops the
// dispatcher so events published by in-flight requests are still flushed.
func serve(ctx context.Context, run func(context.Context) error, dispatcher *notify.Dispatcher) error {
	dctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(dctx)
	}()

	err := run(ctx)
	cancel()
	wg.Wait()
	return err
}

// newVerifier prefers Firebase when a project is configured and falls back to HS256 JWT.
func newVerifier(ctx context.Context, cfg config.Config) (infra.TokenVerifier, error) {
	if cfg.Firebase.ProjectID != "" {
		return infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	}
	return infra.NewJWTVerifier(cfg.JWT.Secret), nil
}
