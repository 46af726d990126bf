package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrScheduleConflict, "teacher already has a class at this time"))

	appErr := FromError(wrapped)
	assert.Equal(t, ErrScheduleConflict.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "teacher already has a class at this time", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrOutsidePeriod, "event must fall within the academic period")
	assert.NotEqual(t, ErrOutsidePeriod.Message, clone.Message)
	assert.Equal(t, ErrOutsidePeriod.Code, clone.Code)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed: cause", err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	derived := Derive(ErrConflict, errors.New("23505"), "")
	assert.ErrorIs(t, derived, ErrConflict)
	assert.Equal(t, ErrConflict.Message, derived.Message)
	assert.ErrorIs(t, fmt.Errorf("ctx: %w", Clone(ErrNotFound, "schedule not found")), ErrNotFound)
	assert.False(t, errors.Is(ErrNotFound, ErrConflict))
}
