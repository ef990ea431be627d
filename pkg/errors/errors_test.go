package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("add item: %w", Clone(ErrCapacityExceeded, "only 4 marks left in quiz"))

	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrCapacityExceeded.Code, appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Equal(t, "only 4 marks left in quiz", appErr.Message)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.EqualError(t, appErr.Unwrap(), "boom")
	assert.Nil(t, FromError(nil))
}

func TestIsComparesCodes(t *testing.T) {
	err := fmt.Errorf("save: %w", Clone(ErrSchemaDivergence, "student s2 differs"))
	assert.True(t, Is(err, ErrSchemaDivergence))
	assert.False(t, Is(err, ErrBelowMinimum))
	assert.False(t, Is(nil, ErrBelowMinimum))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrBelowMinimum, "custom")
	assert.Equal(t, "custom", clone.Message)
	assert.Equal(t, "capacity below existing item footprint", ErrBelowMinimum.Message)
}
