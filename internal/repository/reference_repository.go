package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

// ReferenceRepository reads the entities scheduling records point at.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// FindCourse loads a course.
func (r *ReferenceRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	const query = `SELECT id, name, section, capacity, current_enrollment, is_active FROM courses WHERE id = $1`
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, wrapLookup("find course", err)
	}
	return &course, nil
}

// FindSubject loads a subject.
func (r *ReferenceRepository) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	const query = `SELECT id, name, code, is_active FROM subjects WHERE id = $1`
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, wrapLookup("find subject", err)
	}
	return &subject, nil
}

// FindTeacher loads a teacher.
func (r *ReferenceRepository) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	const query = `SELECT id, full_name, is_active FROM teachers WHERE id = $1`
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, wrapLookup("find teacher", err)
	}
	return &teacher, nil
}

// FindStudent loads a student.
func (r *ReferenceRepository) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	const query = `SELECT id, full_name, is_active FROM students WHERE id = $1`
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, wrapLookup("find student", err)
	}
	return &student, nil
}

func wrapLookup(op string, err error) error {
	if err == sql.ErrNoRows {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
