package conversation

import (
	"context"

	"github.com/xraph/tollgate/id"
)

// Store is the persistence contract for conversations and messages.
type Store interface {
	// CreateOrGetConversation returns the conversation for the triple,
	// creating it if absent. Idempotent: repeat calls for an existing
	// triple return the existing conversation.
	CreateOrGetConversation(ctx context.Context, c *Conversation) (*Conversation, error)

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, convID id.ConversationID) (*Conversation, error)

	// ListConversationsByActor returns every conversation the actor is a
	// party to, vendor or influencer side.
	ListConversationsByActor(ctx context.Context, actorID id.ActorID) ([]*Conversation, error)

	// AppendMessage stores a message at the end of the conversation.
	AppendMessage(ctx context.Context, m *Message) error

	// ListMessages returns messages ordered by creation time.
	ListMessages(ctx context.Context, convID id.ConversationID, opts ListOpts) ([]*Message, error)

	// CountMessagesBySender returns the authoritative number of messages
	// the sender has posted into the conversation. This is the source of
	// truth the billing meter reconciles against.
	CountMessagesBySender(ctx context.Context, convID id.ConversationID, senderID id.ActorID) (int64, error)
}
