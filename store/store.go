package store

import (
	"context"

	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/meter"
	"github.com/xraph/tollgate/types"
	"github.com/xraph/tollgate/wallet"
)

// Store is the unified storage interface for all Tollgate entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Meter methods
	Meter(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) (*meter.State, error)
	ReconcileSent(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID, sentCount int64) error
	MarkMessageSent(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) error
	CommitBlock(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) error
	HasContactCharge(ctx context.Context, actorID id.ActorID, campaignID id.CampaignID) (bool, error)
	SetContactCharge(ctx context.Context, actorID id.ActorID, campaignID id.CampaignID) error

	// Conversation methods
	CreateOrGetConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error)
	GetConversation(ctx context.Context, convID id.ConversationID) (*conversation.Conversation, error)
	ListConversationsByActor(ctx context.Context, actorID id.ActorID) ([]*conversation.Conversation, error)
	AppendMessage(ctx context.Context, m *conversation.Message) error
	ListMessages(ctx context.Context, convID id.ConversationID, opts conversation.ListOpts) ([]*conversation.Message, error)
	CountMessagesBySender(ctx context.Context, convID id.ConversationID, senderID id.ActorID) (int64, error)

	// Wallet methods
	GetAccount(ctx context.Context, actorID id.ActorID) (*wallet.Account, error)
	CreateAccount(ctx context.Context, a *wallet.Account) error
	DeductTokens(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error)
	CreditTokens(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error)

	// Charge journal methods
	AppendCharge(ctx context.Context, r *charge.Receipt) error
	ListCharges(ctx context.Context, actorID id.ActorID, opts charge.ListOpts) ([]*charge.Receipt, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
