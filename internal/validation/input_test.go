package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

func TestText(t *testing.T) {
	assert.Equal(t, "оплата\nотправлена", Text("  оплата\nотправлена\x00\x07 "))
	assert.Equal(t, "a\tb", Text("a\tb"))
	assert.Empty(t, Text(" \r\n "))
}

func TestValidateMessage(t *testing.T) {
	msg, err := ValidateMessage("  привет  ")
	require.NoError(t, err)
	assert.Equal(t, "привет", msg)

	_, err = ValidateMessage("\x00 ")
	assert.True(t, apperror.IsValidation(err))

	_, err = ValidateMessage(strings.Repeat("я", MaxMessageLength+1))
	assert.True(t, apperror.IsValidation(err))

	_, err = ValidateMessage(strings.Repeat("я", MaxMessageLength))
	assert.NoError(t, err)
}

func TestValidateCancelReason(t *testing.T) {
	_, err := ValidateCancelReason("   ")
	assert.ErrorIs(t, err, apperror.ErrEmptyReason)

	_, err = ValidateCancelReason(strings.Repeat("x", MaxCancelReasonLength+1))
	assert.True(t, apperror.IsValidation(err))

	reason, err := ValidateCancelReason(" buyer did not pay ")
	require.NoError(t, err)
	assert.Equal(t, "buyer did not pay", reason)
}

func TestOptional(t *testing.T) {
	value, err := Optional("описание", "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, value)

	_, err = Optional("описание", strings.Repeat("a", 11), 10)
	require.Error(t, err)
	assert.Contains(t, apperror.UserMessage(err, ""), "не более 10 символов")
}
