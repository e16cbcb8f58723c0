package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "load user"))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "load user")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHasCodeWalksTheChain(t *testing.T) {
	inner := New(CodeNotFound, "student not found")
	outer := Wrap(inner, CodeConflict, "enroll student")

	assert.True(t, HasCode(outer, CodeConflict))
	assert.True(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(outer, CodeUnauthorized))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestHasCodeSeesThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("handle request: %w", New(CodeValidation, "credits must be positive"))
	assert.True(t, HasCode(err, CodeValidation))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "no such course")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	outer := Wrap(New(CodeNotFound, "missing"), CodeConflict, "enroll")
	assert.Equal(t, CodeConflict, CodeOf(outer))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "no such course", MessageOf(New(CodeNotFound, "no such course")))
	assert.Equal(t, "internal error", MessageOf(errors.New("sql: connection reset")))
}
