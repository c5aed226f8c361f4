package payouts

import (
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/domain/settlement"
)

type RecordInput struct {
	Pipeline   string
	ShopID     string
	EmployeeID string
	AnchorDate time.Time
	Amount     decimal.Decimal
	Note       string
	RecordedBy string
	// ExpectedPaid, when set, must equal the amount already paid under the
	// same key or the payout is refused with ErrStaleBalance.
	ExpectedPaid *decimal.Decimal
	// Idempotency, when set, is claimed in the payout's transaction.
	Idempotency *IdempotencyKey
}

// IdempotencyKey identifies one client request. A second request with the
// same actor, endpoint and key replays the first payout instead of inserting.
type IdempotencyKey struct {
	ActorID     string
	Endpoint    string
	Key         string
	RequestHash string
}

// Recorded is the committed payout. It is also the payload stored under an
// idempotency key.
type Recorded struct {
	Payout     settlement.Payout `json:"payout"`
	PaidBefore decimal.Decimal   `json:"paidBefore"`
	Replayed   bool              `json:"-"`
}

// Receipt is returned after a payout commits. Balance is recomputed from a
// fresh read of the ledger; when that fails the payout still stands, Balance
// is nil and BalanceError says why.
type Receipt struct {
	Payout       settlement.Payout           `json:"payout"`
	PaidBefore   decimal.Decimal             `json:"paidBefore"`
	PaidAfter    decimal.Decimal             `json:"paidAfter"`
	Balance      *settlement.EmployeeSummary `json:"balance,omitempty"`
	BalanceError string                      `json:"balanceError,omitempty"`
	Replayed     bool                        `json:"-"`
}

type Filter struct {
	Pipeline   string
	ShopID     string
	EmployeeID string
	AnchorDate time.Time
	Limit      int
	Offset     int
}

const (
	// AmountScale is the number of decimal places a payout amount may carry.
	AmountScale = 2

	DefaultListLimit = 50
	MaxListLimit     = 200
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}
