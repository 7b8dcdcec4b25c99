package entity

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
	RoleAdmin      Role = "admin"
	RoleSystem     Role = "system"
)

// Actor identifies who requested a state change.
type Actor struct {
	ID   string
	Role Role
}

func SystemActor(name string) Actor {
	return Actor{ID: name, Role: RoleSystem}
}

func (a Actor) String() string {
	return string(a.Role) + ":" + a.ID
}

func (a Actor) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
