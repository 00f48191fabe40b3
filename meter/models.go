// Package meter defines the per-conversation message counters and the
// one-time contact-charge facts that drive billing decisions.
//
// Counters are monotonic: SentCount only advances when a message send is
// confirmed, PaidBlocks only advances when a token charge is confirmed.
// SentCount is always recomputable from the authoritative message history;
// stores overwrite it on reconcile rather than trusting blind increments.
package meter

import (
	"time"

	"github.com/xraph/tollgate/id"
)

// State is the billing meter for one (actor, conversation) pair.
type State struct {
	ActorID        id.ActorID        `json:"actor_id"`
	ConversationID id.ConversationID `json:"conversation_id"`

	// SentCount is the number of messages this actor has sent into the
	// conversation. Reconciled against message history on every evaluation.
	SentCount int64 `json:"sent_count"`

	// PaidBlocks is the number of message blocks already purchased.
	// Advances only via Store.CommitBlock after a confirmed charge.
	PaidBlocks int64 `json:"paid_blocks"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Zeroed returns a fresh meter for a pair that has no stored state yet.
func Zeroed(actorID id.ActorID, conversationID id.ConversationID) *State {
	return &State{
		ActorID:        actorID,
		ConversationID: conversationID,
	}
}

// ContactCharge records that an actor has paid the one-time contact fee
// for a campaign. Once recorded it never reverts.
type ContactCharge struct {
	ActorID    id.ActorID    `json:"actor_id"`
	CampaignID id.CampaignID `json:"campaign_id"`
	ChargedAt  time.Time     `json:"charged_at"`
}
