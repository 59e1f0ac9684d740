package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	t.Run("message without cause", func(t *testing.T) {
		assert.Equal(t, "Resource not found", ErrNotFound.Error())
	})

	t.Run("cause is appended and unwrapped", func(t *testing.T) {
		cause := errors.New("row missing")
		err := ErrNotFound.WithCause(cause)

		assert.Equal(t, "Resource not found: row missing", err.Error())
		assert.Equal(t, cause, errors.Unwrap(err))
	})

	t.Run("copies with cause match their sentinel", func(t *testing.T) {
		err := ErrStorageUnavailable.WithCause(errors.New("dial tcp: refused"))
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("loading frames: %w", ErrNoTimeFrame)
		assert.ErrorIs(t, err, ErrNoTimeFrame)
	})
}
