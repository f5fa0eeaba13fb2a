package policy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

var allStatuses = []valueobject.TradeStatus{
	valueobject.TradeStatusActive,
	valueobject.TradeStatusProcessing,
	valueobject.TradeStatusCompleted,
	valueobject.TradeStatusCancelled,
	valueobject.TradeStatusDisputed,
}

// eachFacts перебирает все комбинации фактов.
func eachFacts(fn func(Facts)) {
	bools := []bool{false, true}
	for _, status := range allStatuses {
		for _, paid := range bools {
			for _, proofs := range []int{0, 1, 3} {
				for _, owner := range bools {
					for _, seller := range bools {
						for _, buyer := range bools {
							for _, kyc := range bools {
								for _, expired := range bools {
									fn(Facts{
										Status: status, Paid: paid, ProofCount: proofs,
										IsOwner: owner, IsSeller: seller, IsBuyer: buyer,
										KYCVerified: kyc, Expired: expired,
									})
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestAllowed_IsDeterministic(t *testing.T) {
	eachFacts(func(f Facts) {
		assert.Equal(t, Allowed(f), Allowed(f))
	})
}

func TestAllowed_NoPaymentActionsWithoutProof(t *testing.T) {
	eachFacts(func(f Facts) {
		if f.Status != valueobject.TradeStatusProcessing || f.ProofCount != 0 {
			return
		}
		allowed := Allowed(f)
		assert.False(t, allowed.Has(ActionMarkPaymentSent), "%+v", f)
		assert.False(t, allowed.Has(ActionConfirmPayment), "%+v", f)
	})
}

func TestAllowed_TerminalStatesAllowNothing(t *testing.T) {
	eachFacts(func(f Facts) {
		if !f.Status.IsTerminal() {
			return
		}
		assert.Empty(t, Allowed(f).List(), "%+v", f)
	})
}

func TestAllowed_NonOwnerWithoutKYCIsBlocked(t *testing.T) {
	eachFacts(func(f Facts) {
		if f.IsOwner || f.KYCVerified {
			return
		}
		assert.Empty(t, Allowed(f).List(), "%+v", f)
	})
}

func TestAllowed_RoleTable(t *testing.T) {
	cases := []struct {
		name  string
		facts Facts
		want  []Action
	}{
		{
			name:  "чужое активное объявление с KYC",
			facts: Facts{Status: valueobject.TradeStatusActive, KYCVerified: true},
			want:  []Action{ActionInitiate},
		},
		{
			name:  "своё активное объявление продавца",
			facts: Facts{Status: valueobject.TradeStatusActive, IsOwner: true, IsSeller: true},
			want:  []Action{ActionCancel, ActionDelete},
		},
		{
			name:  "своя заявка на покупку",
			facts: Facts{Status: valueobject.TradeStatusActive, IsOwner: true},
			want:  []Action{ActionDelete},
		},
		{
			name:  "покупатель без доказательства",
			facts: Facts{Status: valueobject.TradeStatusProcessing, IsBuyer: true, KYCVerified: true},
			want:  []Action{ActionUploadProof, ActionSendMessage, ActionCancel},
		},
		{
			name:  "покупатель с доказательством",
			facts: Facts{Status: valueobject.TradeStatusProcessing, IsBuyer: true, KYCVerified: true, ProofCount: 1},
			want:  []Action{ActionMarkPaymentSent, ActionSendMessage, ActionCancel},
		},
		{
			name:  "покупатель после отметки оплаты",
			facts: Facts{Status: valueobject.TradeStatusProcessing, IsBuyer: true, KYCVerified: true, ProofCount: 1, Paid: true},
			want:  []Action{ActionSendMessage, ActionCancel},
		},
		{
			name:  "продавец с доказательством",
			facts: Facts{Status: valueobject.TradeStatusProcessing, IsSeller: true, IsOwner: true, ProofCount: 1},
			want:  []Action{ActionConfirmPayment, ActionSendMessage, ActionCancel},
		},
		{
			name:  "истёкшая сделка покупателя",
			facts: Facts{Status: valueobject.TradeStatusProcessing, IsBuyer: true, KYCVerified: true, Expired: true},
			want:  []Action{ActionSendMessage, ActionCancel},
		},
		{
			name:  "посторонний в процессе",
			facts: Facts{Status: valueobject.TradeStatusProcessing, KYCVerified: true, ProofCount: 1},
			want:  []Action{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Allowed(tc.facts).List())
		})
	}
}

func TestCheck_KYCShortCircuits(t *testing.T) {
	err := Check(ActionInitiate, Facts{Status: valueobject.TradeStatusActive})
	assert.True(t, apperror.IsKYCRequired(err))
}

func TestCheck_MarkPaidWithoutProof(t *testing.T) {
	err := Check(ActionMarkPaymentSent, Facts{Status: valueobject.TradeStatusProcessing, IsBuyer: true, KYCVerified: true})
	assert.ErrorIs(t, err, apperror.ErrProofRequired)
}

func TestValidateCancelReason(t *testing.T) {
	for _, reason := range []string{"", "   ", "\n\t"} {
		_, err := ValidateCancelReason(reason)
		assert.ErrorIs(t, err, apperror.ErrEmptyReason)
	}
	reason, err := ValidateCancelReason("  buyer did not pay ")
	assert.NoError(t, err)
	assert.Equal(t, "buyer did not pay", reason)
}

func TestFactsFor_Scenario(t *testing.T) {
	now := time.Now()
	seller := entity.Viewer{ID: 1, KYCVerified: true}
	buyer := entity.Viewer{ID: 2, KYCVerified: true}
	sellerID := int64(1)
	trade := &entity.Trade{
		ID: 1, UserID: 1, Type: valueobject.TradeTypeSell, SellerID: &sellerID,
		Amount: decimal.NewFromInt(100), Price: decimal.RequireFromString("1.5"),
		Status: valueobject.TradeStatusActive, TimeLimit: 30,
	}
	assert.Equal(t, "150.00", trade.FormattedTotal())
	assert.True(t, Allowed(FactsFor(trade, buyer, now)).Has(ActionInitiate))

	buyerID := int64(2)
	expires := now.Add(30 * time.Minute)
	trade.BuyerID = &buyerID
	trade.Status = valueobject.TradeStatusProcessing
	trade.ExpiresAt = &expires

	trade.Proofs = append(trade.Proofs, entity.Proof{ID: 1})
	buyerActions := Allowed(FactsFor(trade, buyer, now))
	assert.True(t, buyerActions.Has(ActionMarkPaymentSent))
	assert.False(t, buyerActions.Has(ActionConfirmPayment))
	assert.True(t, Allowed(FactsFor(trade, seller, now)).Has(ActionConfirmPayment))
}

func TestAffordances(t *testing.T) {
	a := AffordancesFor(Facts{Status: valueobject.TradeStatusProcessing, IsSeller: true, IsOwner: true, ProofCount: 1})
	assert.Equal(t, "seller", a.Role)
	assert.True(t, a.ShowChat)
	if assert.NotEmpty(t, a.Buttons) {
		assert.Equal(t, ActionConfirmPayment, a.Buttons[0].Action)
		assert.True(t, a.Buttons[0].Irreversible)
	}

	blocked := AffordancesFor(Facts{Status: valueobject.TradeStatusActive})
	assert.NotEmpty(t, blocked.Blocked)
	assert.Empty(t, blocked.Buttons)

	expired := AffordancesFor(Facts{Status: valueobject.TradeStatusProcessing, IsBuyer: true, KYCVerified: true, Expired: true})
	assert.True(t, expired.Expired)
	assert.Equal(t, "Истекла", expired.StatusLabel)
}
