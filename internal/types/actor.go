// README: Capability-tagged principal passed into every use case.
package types

type Role string

const (
	RoleUser    Role = "user"
	RoleDriver  Role = "driver"
	RoleCharity Role = "charity"
	RoleAdmin   Role = "admin"
)

// Actor is the already-authorized caller descriptor. Services receive it in
// command structs and never re-derive roles from a mutable user record
// mid-transaction.
type Actor struct {
	ID   ID
	Role Role
}

func (a Actor) Is(r Role) bool {
	return a.Role == r
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
