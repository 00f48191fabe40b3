package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// Service is the conversation collaborator consumed by the access gate.
// The gate never touches conversation storage directly; deployments that
// keep chat in another system implement this interface instead of Store.
type Service interface {
	// CreateOrGet returns the conversation for the triple, creating it if
	// absent. Idempotent by (campaign, vendor, influencer).
	CreateOrGet(ctx context.Context, campaignID id.CampaignID, vendorID, influencerID id.ActorID) (*Conversation, error)

	// Get retrieves a conversation by ID.
	Get(ctx context.Context, convID id.ConversationID) (*Conversation, error)

	// Post appends a message to the conversation.
	Post(ctx context.Context, convID id.ConversationID, senderID id.ActorID, text string) (*Message, error)

	// List returns the conversation's messages ordered by creation time.
	List(ctx context.Context, convID id.ConversationID) ([]*Message, error)

	// CountBySender returns the authoritative count of messages the sender
	// has posted into the conversation.
	CountBySender(ctx context.Context, convID id.ConversationID, senderID id.ActorID) (int64, error)

	// ListByActor returns every conversation the actor participates in.
	ListByActor(ctx context.Context, actorID id.ActorID) ([]*Conversation, error)
}

// ErrEmptyMessage is returned by Post for blank message text.
var ErrEmptyMessage = errors.New("conversation: empty message text")

// storeService is the store-backed reference implementation of Service.
type storeService struct {
	store Store
}

// NewService returns a Service backed by the given Store.
func NewService(s Store) Service {
	return &storeService{store: s}
}

func (s *storeService) CreateOrGet(ctx context.Context, campaignID id.CampaignID, vendorID, influencerID id.ActorID) (*Conversation, error) {
	c := &Conversation{
		Entity:       types.NewEntity(),
		ID:           id.NewConversationID(),
		CampaignID:   campaignID,
		VendorID:     vendorID,
		InfluencerID: influencerID,
	}
	// The store discards the candidate ID when the triple already exists.
	return s.store.CreateOrGetConversation(ctx, c)
}

func (s *storeService) Get(ctx context.Context, convID id.ConversationID) (*Conversation, error) {
	return s.store.GetConversation(ctx, convID)
}

func (s *storeService) Post(ctx context.Context, convID id.ConversationID, senderID id.ActorID, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	m := &Message{
		Entity:         types.NewEntity(),
		ID:             id.NewMessageID(),
		ConversationID: convID,
		SenderID:       senderID,
		Text:           text,
	}
	if err := s.store.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *storeService) List(ctx context.Context, convID id.ConversationID) ([]*Message, error) {
	return s.store.ListMessages(ctx, convID, ListOpts{})
}

func (s *storeService) CountBySender(ctx context.Context, convID id.ConversationID, senderID id.ActorID) (int64, error) {
	return s.store.CountMessagesBySender(ctx, convID, senderID)
}

func (s *storeService) ListByActor(ctx context.Context, actorID id.ActorID) ([]*Conversation, error) {
	return s.store.ListConversationsByActor(ctx, actorID)
}
