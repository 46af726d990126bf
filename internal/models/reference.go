package models

// Course is the read-only view of a course needed by scheduling and enrollment.
type Course struct {
	ID                string `db:"id" json:"id"`
	Name              string `db:"name" json:"name"`
	Section           string `db:"section" json:"section"`
	Capacity          *int   `db:"capacity" json:"capacity,omitempty"`
	CurrentEnrollment int    `db:"current_enrollment" json:"current_enrollment"`
	IsActive          bool   `db:"is_active" json:"is_active"`
}

// Full reports whether the course has reached its capacity.
func (c Course) Full() bool {
	return c.Capacity != nil && c.CurrentEnrollment >= *c.Capacity
}

// Subject is the read-only view of a subject.
type Subject struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Code     string `db:"code" json:"code"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Teacher is the read-only view of a teacher.
type Teacher struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Student is the read-only view of a student.
type Student struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}
