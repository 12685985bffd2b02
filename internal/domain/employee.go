package domain

import "strings"

// Employee is a directory entry from the Pulse employee service. Only the
// fields the gateway needs for name resolution are mapped; UserID links an
// employee record to its login account and may be absent.
type Employee struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id,omitempty"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email,omitempty"`
	Position   string `json:"position,omitempty"`
	Department string `json:"department,omitempty"`
}

// FullName returns the display name for an employee
func (e *Employee) FullName() string {
	name := strings.TrimSpace(e.FirstName + " " + e.LastName)
	if name == "" {
		return e.Email
	}
	return name
}

// EmployeeListResponse upstream employee list payload
type EmployeeListResponse struct {
	Employees []Employee `json:"employees"`
	Total     int        `json:"total,omitempty"`
}
