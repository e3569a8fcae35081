package models

// Identity is the signed-in console user. The portal has no real
// authentication; the identity comes from configuration.
type Identity struct {
	UserID      string `json:"userId" yaml:"user_id"`
	DisplayName string `json:"displayName" yaml:"display_name"`
}

// DefaultIdentity is the HR account the console runs as.
func DefaultIdentity() Identity {
	return Identity{UserID: "hr-admin-1", DisplayName: "HR Manager"}
}

// Employee is a pickable member when creating a group.
type Employee struct {
	EmployeeID string `json:"employeeId" yaml:"employee_id"`
	Name       string `json:"name" yaml:"name"`
	Branch     string `json:"branch,omitempty" yaml:"branch,omitempty"`
}
