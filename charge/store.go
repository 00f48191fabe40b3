package charge

import (
	"context"

	"github.com/xraph/tollgate/id"
)

// Store is the persistence contract for the charge journal.
type Store interface {
	// AppendCharge stores a confirmed charge receipt.
	AppendCharge(ctx context.Context, r *Receipt) error

	// ListCharges returns an actor's receipts, newest first.
	ListCharges(ctx context.Context, actorID id.ActorID, opts ListOpts) ([]*Receipt, error)
}
