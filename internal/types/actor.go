// README: Actor performing a mutating operation (audit + authorization input).
package types

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleStaff      Role = "staff"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
	RoleSystem     Role = "system"
)

type Actor struct {
	ID   ID
	Role Role
}

// IsWorkshop reports whether the actor belongs to the shop side (not a customer).
func (a Actor) IsWorkshop() bool {
	switch a.Role {
	case RoleStaff, RoleTechnician, RoleAdmin, RoleSystem:
		return true
	}
	return false
}
