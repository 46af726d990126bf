package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgreSQL error codes the scheduling tables rely on.
const (
	pqExclusionViolation pq.ErrorCode = "23P01"
	pqUniqueViolation    pq.ErrorCode = "23505"
	pqForeignKeyMissing  pq.ErrorCode = "23503"
)

var (
	// ErrOverlap is returned when an exclusion constraint rejects an overlapping range.
	ErrOverlap = errors.New("overlapping range rejected by storage")
	// ErrDuplicate is returned when a unique index rejects a row.
	ErrDuplicate = errors.New("duplicate record rejected by storage")
	// ErrMissingReference is returned when a foreign key target does not exist.
	ErrMissingReference = errors.New("referenced record does not exist")
	// ErrCapacity is returned when a course has no free seat left.
	ErrCapacity = errors.New("course capacity reached")
	// ErrNotActive is returned when a state change targets a row that is no longer active.
	ErrNotActive = errors.New("record is no longer active")
)

// classify maps constraint violations onto repository sentinels and wraps everything else.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqExclusionViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrOverlap, pqErr.Constraint)
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pqErr.Constraint)
		case pqForeignKeyMissing:
			return fmt.Errorf("%s: %w (%s)", op, ErrMissingReference, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectOne returns miss unless the statement touched exactly one row.
func expectOne(res sql.Result, miss error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return miss
	}
	return nil
}

// pageWindow clamps pagination input to the limits used by every list endpoint.
func pageWindow(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}

func sortOrder(raw, fallback string) string {
	switch raw {
	case "ASC", "asc":
		return "ASC"
	case "DESC", "desc":
		return "DESC"
	}
	return fallback
}
