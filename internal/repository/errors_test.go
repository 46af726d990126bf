package repository

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyMapsConstraintViolations(t *testing.T) {
	assert.ErrorIs(t, classify("create schedule", &pq.Error{Code: "23P01", Constraint: "schedules_teacher_no_overlap"}), ErrOverlap)
	assert.ErrorIs(t, classify("create enrollment", &pq.Error{Code: "23505"}), ErrDuplicate)
	assert.ErrorIs(t, classify("create event", &pq.Error{Code: "23503"}), ErrMissingReference)

	plain := errors.New("connection reset")
	err := classify("update period", plain)
	assert.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, ErrOverlap)
	assert.Nil(t, classify("noop", nil))
}

func TestPageWindow(t *testing.T) {
	size, offset := pageWindow(0, 0)
	assert.Equal(t, 20, size)
	assert.Equal(t, 0, offset)

	size, offset = pageWindow(3, 10)
	assert.Equal(t, 10, size)
	assert.Equal(t, 20, offset)

	size, _ = pageWindow(1, 500)
	assert.Equal(t, 20, size)
}
