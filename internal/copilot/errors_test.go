package copilot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindSurvivesWrapping(t *testing.T) {
	inner := NotFoundf("program %d was not found", 7)
	wrapped := fmt.Errorf("proposal p1 command 2: %w", inner)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
	assert.Equal(t, "program 7 was not found", MessageOf(wrapped))
}

func TestMessageOfUnclassifiedError(t *testing.T) {
	msg := MessageOf(errors.New("pq: connection refused"))
	assert.NotContains(t, msg, "pq:")
}

func TestProviderErrorUnwraps(t *testing.T) {
	cause := errors.New("status 429")
	err := Providerf(cause, "the assistant is busy")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "the assistant is busy", err.OperatorMessage())
}
