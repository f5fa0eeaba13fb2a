package desk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

func TestViewState_Next(t *testing.T) {
	tests := []struct {
		name string
		from ViewState
		to   ViewState
		ok   bool
	}{
		{"open create form", Closed(), Creating(), true},
		{"open detail", Closed(), Viewing(1), true},
		{"cancel from closed", Closed(), ConfirmingCancel(1, ""), false},
		{"created trade shown", Creating(), Viewing(5), true},
		{"dismiss create", Creating(), Closed(), true},
		{"switch trade", Viewing(1), Viewing(2), true},
		{"start cancel", Viewing(1), ConfirmingCancel(1, ""), true},
		{"cancel other trade", Viewing(1), ConfirmingCancel(2, ""), false},
		{"edit reason", ConfirmingCancel(1, ""), ConfirmingCancel(1, "долго"), true},
		{"dismiss cancel", ConfirmingCancel(1, "x"), Viewing(1), true},
		{"jump to other trade", ConfirmingCancel(1, "x"), Viewing(2), false},
		{"create while cancelling", ConfirmingCancel(1, "x"), Creating(), false},
		{"close all", ConfirmingCancel(1, "x"), Closed(), true},
		{"viewing without id", Closed(), ViewState{Kind: ViewViewing}, false},
		{"unknown kind", Closed(), ViewState{Kind: "zoom"}, false},
		{"closed with trade", Viewing(1), ViewState{Kind: ViewClosed, TradeID: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.from.Next(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, next)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err))
			assert.Equal(t, tt.from, next)
		})
	}
}

func TestViewState_DetailID(t *testing.T) {
	assert.Zero(t, Closed().DetailID())
	assert.Zero(t, Creating().DetailID())
	assert.Equal(t, int64(3), Viewing(3).DetailID())
	assert.Equal(t, int64(4), ConfirmingCancel(4, "x").DetailID())
}
