package model

// Role is the workflow role a user holds.
type Role string

const (
	RoleDeclarant  Role = "declarant"
	RoleAnalyst    Role = "analyst"
	RoleGovernance Role = "governance"

	// RoleSystem is recorded on audit entries written by the classifier ingestion path.
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the three user roles.
func (r Role) Valid() bool {
	return r == RoleDeclarant || r == RoleAnalyst || r == RoleGovernance
}

// User is an authenticated identity. Immutable once issued.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// SystemAI is the actor used for classifier-originated cases.
var SystemAI = User{ID: ReporterSystemAI, Name: "AI Safety Monitor", Role: RoleSystem}
