package conversation

import (
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// Conversation is a chat between one influencer and one vendor, scoped to
// one campaign. Exactly one conversation exists per
// (campaign, vendor, influencer) triple; creation is idempotent by the triple.
type Conversation struct {
	types.Entity
	ID           id.ConversationID `json:"id"`
	CampaignID   id.CampaignID     `json:"campaign_id"`
	VendorID     id.ActorID        `json:"vendor_id"`
	InfluencerID id.ActorID        `json:"influencer_id"`
}

// Involves reports whether the actor is a party to this conversation.
func (c *Conversation) Involves(actorID id.ActorID) bool {
	return c.VendorID == actorID || c.InfluencerID == actorID
}

// Counterparty returns the other party of the conversation. Returns the
// nil ID if the actor is not a party.
func (c *Conversation) Counterparty(actorID id.ActorID) id.ActorID {
	switch actorID {
	case c.VendorID:
		return c.InfluencerID
	case c.InfluencerID:
		return c.VendorID
	default:
		return id.Nil
	}
}

// Message is one chat message inside a conversation.
type Message struct {
	types.Entity
	ID             id.MessageID      `json:"id"`
	ConversationID id.ConversationID `json:"conversation_id"`
	SenderID       id.ActorID        `json:"sender_id"`
	Text           string            `json:"text"`
}

// ListOpts filters message listings.
type ListOpts struct {
	SenderID id.ActorID // only messages from this sender when set
	Limit    int
	Offset   int
}
