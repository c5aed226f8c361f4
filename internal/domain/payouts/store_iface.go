package payouts

import (
	"context"

	"backoffice/internal/domain/settlement"
)

type StoreAPI interface {
	// Record inserts the payout and returns it with the amount already paid
	// under its key before the insert. A claimed idempotency key that was
	// already used returns the stored result with Replayed set.
	Record(ctx context.Context, input RecordInput) (Recorded, error)
	List(ctx context.Context, filter Filter) ([]settlement.Payout, int, error)
}
