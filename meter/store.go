package meter

import (
	"context"

	"github.com/xraph/tollgate/id"
)

// Store is the durable counter store for meters and contact charges.
// All writes are local and crash-tolerant; implementations must guard
// read-modify-write cycles per key (compare-and-set or a lock) so that
// two writers never silently lose an update.
type Store interface {
	// Meter returns the meter state for the pair, zeroed if absent.
	Meter(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) (*State, error)

	// ReconcileSent overwrites SentCount with a value independently derived
	// from the authoritative message history. Never increments blindly.
	ReconcileSent(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID, sentCount int64) error

	// MarkMessageSent increments SentCount by exactly one. Call only after
	// the message append has been confirmed.
	MarkMessageSent(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) error

	// CommitBlock increments PaidBlocks by exactly one. Call only after the
	// corresponding external charge has been confirmed, never before.
	CommitBlock(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) error

	// HasContactCharge reports whether the actor has already paid the
	// one-time contact fee for the campaign.
	HasContactCharge(ctx context.Context, actorID id.ActorID, campaignID id.CampaignID) (bool, error)

	// SetContactCharge records the one-time contact fee as paid.
	// Recording twice is a no-op; the fact never reverts.
	SetContactCharge(ctx context.Context, actorID id.ActorID, campaignID id.CampaignID) error
}
