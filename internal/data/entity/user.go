package entity

import "fmt"

type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleNurse   UserRole = "nurse"
	RoleDoctor  UserRole = "doctor"
	RoleAdmin   UserRole = "admin"
)

// ParseRole accepts only the closed set of known roles.
func ParseRole(s string) (UserRole, error) {
	switch r := UserRole(s); r {
	case RolePatient, RoleNurse, RoleDoctor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type User struct {
	Base
	Email      string   `db:"email"`
	FullName   string   `db:"full_name"`
	Role       UserRole `db:"role"`
	HourlyRate *int64   `db:"hourly_rate"` // nurses only, currency units per hour
	IsActive   bool     `db:"is_active"`
}
