package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/tollgate"
	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/meter"
	"github.com/xraph/tollgate/types"
	"github.com/xraph/tollgate/wallet"
)

type meterKey struct {
	actor string
	conv  string
}

type contactKey struct {
	actor    string
	campaign string
}

type tripleKey struct {
	campaign   string
	vendor     string
	influencer string
}

// Store is the in-memory backend. Single-process only; used by tests and
// as the default when no database is wired.
type Store struct {
	mu sync.RWMutex

	// Meter storage
	meters   map[meterKey]*meter.State
	contacts map[contactKey]meter.ContactCharge

	// Conversation storage
	conversations map[string]*conversation.Conversation
	byTriple      map[tripleKey]string
	messages      map[string][]conversation.Message

	// Wallet storage
	accounts map[string]*wallet.Account

	// Charge journal
	charges []charge.Receipt
}

func New() *Store {
	return &Store{
		meters:        make(map[meterKey]*meter.State),
		contacts:      make(map[contactKey]meter.ContactCharge),
		conversations: make(map[string]*conversation.Conversation),
		byTriple:      make(map[tripleKey]string),
		messages:      make(map[string][]conversation.Message),
		accounts:      make(map[string]*wallet.Account),
		charges:       make([]charge.Receipt, 0),
	}
}

// Meter Store implementation

func (s *Store) Meter(_ context.Context, actorID id.ActorID, conversationID id.ConversationID) (*meter.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.meters[meterKey{actorID.String(), conversationID.String()}]; ok {
		cp := *st
		return &cp, nil
	}
	return meter.Zeroed(actorID, conversationID), nil
}

func (s *Store) ReconcileSent(_ context.Context, actorID id.ActorID, conversationID id.ConversationID, sentCount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.meterLocked(actorID, conversationID)
	st.SentCount = sentCount
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MarkMessageSent(_ context.Context, actorID id.ActorID, conversationID id.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.meterLocked(actorID, conversationID)
	st.SentCount++
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) CommitBlock(_ context.Context, actorID id.ActorID, conversationID id.ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.meterLocked(actorID, conversationID)
	st.PaidBlocks++
	st.UpdatedAt = time.Now().UTC()
	return nil
}

// meterLocked returns the stored meter, creating a zeroed one if absent.
// Caller holds the write lock.
func (s *Store) meterLocked(actorID id.ActorID, conversationID id.ConversationID) *meter.State {
	key := meterKey{actorID.String(), conversationID.String()}
	st, ok := s.meters[key]
	if !ok {
		st = meter.Zeroed(actorID, conversationID)
		s.meters[key] = st
	}
	return st
}

func (s *Store) HasContactCharge(_ context.Context, actorID id.ActorID, campaignID id.CampaignID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.contacts[contactKey{actorID.String(), campaignID.String()}]
	return ok, nil
}

func (s *Store) SetContactCharge(_ context.Context, actorID id.ActorID, campaignID id.CampaignID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := contactKey{actorID.String(), campaignID.String()}
	if _, ok := s.contacts[key]; ok {
		return nil // already recorded, never reverts
	}
	s.contacts[key] = meter.ContactCharge{
		ActorID:    actorID,
		CampaignID: campaignID,
		ChargedAt:  time.Now().UTC(),
	}
	return nil
}

// Conversation Store implementation

func (s *Store) CreateOrGetConversation(_ context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tripleKey{c.CampaignID.String(), c.VendorID.String(), c.InfluencerID.String()}
	if existingID, ok := s.byTriple[key]; ok {
		return s.conversations[existingID], nil
	}

	s.conversations[c.ID.String()] = c
	s.byTriple[key] = c.ID.String()
	return c, nil
}

func (s *Store) GetConversation(_ context.Context, convID id.ConversationID) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.conversations[convID.String()]; ok {
		return c, nil
	}
	return nil, tollgate.ErrConversationNotFound
}

func (s *Store) ListConversationsByActor(_ context.Context, actorID id.ActorID) ([]*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*conversation.Conversation, 0)
	for _, c := range s.conversations {
		if c.Involves(actorID) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) AppendMessage(_ context.Context, m *conversation.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[m.ConversationID.String()]; !ok {
		return tollgate.ErrConversationNotFound
	}
	s.messages[m.ConversationID.String()] = append(s.messages[m.ConversationID.String()], *m)
	return nil
}

func (s *Store) ListMessages(_ context.Context, convID id.ConversationID, opts conversation.ListOpts) ([]*conversation.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[convID.String()]
	result := make([]*conversation.Message, 0, len(stored))
	for i := range stored {
		m := &stored[i]
		if !opts.SenderID.IsNil() && m.SenderID != opts.SenderID {
			continue
		}
		result = append(result, m)
	}

	// Append order is creation order.
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) CountMessagesBySender(_ context.Context, convID id.ConversationID, senderID id.ActorID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, m := range s.messages[convID.String()] {
		if m.SenderID == senderID {
			count++
		}
	}
	return count, nil
}

// Wallet Store implementation

func (s *Store) GetAccount(_ context.Context, actorID id.ActorID) (*wallet.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[actorID.String()]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, wallet.ErrAccountNotFound
}

func (s *Store) CreateAccount(_ context.Context, a *wallet.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ActorID.String()]; ok {
		return tollgate.ErrAlreadyExists
	}
	cp := *a
	s.accounts[a.ActorID.String()] = &cp
	return nil
}

func (s *Store) DeductTokens(_ context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[actorID.String()]
	if !ok {
		return 0, wallet.ErrAccountNotFound
	}
	if !a.Balance.CanAfford(amount) {
		return 0, wallet.ErrInsufficientTokens
	}
	a.Balance = a.Balance.Subtract(amount)
	a.Touch()
	return a.Balance, nil
}

func (s *Store) CreditTokens(_ context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[actorID.String()]
	if !ok {
		return 0, wallet.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(amount)
	a.Touch()
	return a.Balance, nil
}

// Charge journal implementation

func (s *Store) AppendCharge(_ context.Context, r *charge.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.charges = append(s.charges, *r)
	return nil
}

func (s *Store) ListCharges(_ context.Context, actorID id.ActorID, opts charge.ListOpts) ([]*charge.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*charge.Receipt, 0)
	for i := len(s.charges) - 1; i >= 0; i-- { // newest first
		r := s.charges[i]
		if r.ActorID != actorID {
			continue
		}
		if opts.Reason != "" && r.Reason != opts.Reason {
			continue
		}
		result = append(result, &r)
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
