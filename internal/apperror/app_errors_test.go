package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonOf(t *testing.T) {
	t.Run("Maps wrapped domain errors to their reason", func(t *testing.T) {
		// Given: a wrong turn error wrapped twice
		err := fmt.Errorf("failed to apply move: %w", fmt.Errorf("session 1: %w", ErrWrongTurn))

		// When: resolving the reason
		reason := ReasonOf(err)

		// Then: the reason should be wrong_turn
		assert.Equal(t, ReasonWrongTurn, reason)
		assert.True(t, IsRejection(err))
	})

	t.Run("Unknown errors are internal", func(t *testing.T) {
		// Given: an infrastructure error
		err := errors.New("connection refused")

		// When: resolving the reason
		reason := ReasonOf(err)

		// Then: the error is internal and not a rejection
		assert.Equal(t, ReasonInternal, reason)
		assert.False(t, IsRejection(err))
	})

	t.Run("Deadline exceeded is a timeout", func(t *testing.T) {
		// Given: a store call that timed out
		err := fmt.Errorf("failed to get session: %w", context.DeadlineExceeded)

		// Then: the reason should be timeout
		assert.Equal(t, ReasonTimeout, ReasonOf(err))
		assert.False(t, IsRejection(err))
	})
}
