package models

import "time"

// UserRole is the account role carried in access tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	// RoleTeacher may place timetable slots and calendar events.
	RoleTeacher UserRole = "TEACHER"
	// RoleStudent has read access only.
	RoleStudent UserRole = "STUDENT"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// User is a login account. Scheduling data never references it directly;
// it only appears as the actor on audit entries.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Info strips credentials for responses.
func (u User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// Pagination is returned alongside every list response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination fills TotalPages from the count and page size.
func NewPagination(page, size, total int) *Pagination {
	p := &Pagination{Page: page, PageSize: size, TotalCount: total}
	if size > 0 {
		p.TotalPages = (total + size - 1) / size
	}
	return p
}
