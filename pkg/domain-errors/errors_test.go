package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode sees through wrapping", func(t *testing.T) {
		err := fmt.Errorf("ingest: %w", New(CodeExpired, "document expired"))
		assert.True(t, HasCode(err, CodeExpired))
		assert.False(t, HasCode(err, CodePositiveTest))
	})

	t.Run("HasCode checks nested domain errors", func(t *testing.T) {
		inner := New(CodeAlreadyRedeemed, "claimed elsewhere")
		err := fmt.Errorf("ingest: %w", Wrap(inner, CodeInternal, "store failed"))
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeAlreadyRedeemed))
		assert.False(t, HasCode(err, CodeExpired))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("CodeOf defaults to internal for plain errors", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.Equal(t, CodeAlreadyRedeemed, CodeOf(New(CodeAlreadyRedeemed, "taken")))
	})

	t.Run("Wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("socket closed")
		err := Wrap(cause, CodeUnavailable, "backend unreachable")
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "backend unreachable")
	})

	t.Run("every taxonomy code has a title", func(t *testing.T) {
		for code := range titles {
			assert.NotEmpty(t, Title(code), code)
		}
		assert.Equal(t, Title(CodeInternal), Title(Code("unknown")))
	})
}
