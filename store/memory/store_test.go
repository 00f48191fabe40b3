package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
	"github.com/xraph/tollgate/wallet"
)

func newConversation(campaignID id.CampaignID, vendorID, influencerID id.ActorID) *conversation.Conversation {
	return &conversation.Conversation{
		Entity:       types.NewEntity(),
		ID:           id.NewConversationID(),
		CampaignID:   campaignID,
		VendorID:     vendorID,
		InfluencerID: influencerID,
	}
}

func TestCreateOrGetConversation_IdempotentByTriple(t *testing.T) {
	ctx := context.Background()
	s := New()

	campaignID := id.NewCampaignID()
	vendorID := id.NewActorID()
	influencerID := id.NewActorID()

	first, err := s.CreateOrGetConversation(ctx, newConversation(campaignID, vendorID, influencerID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same triple with a fresh candidate ID returns the original.
	second, err := s.CreateOrGetConversation(ctx, newConversation(campaignID, vendorID, influencerID))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second create returned a new conversation: %v != %v", second.ID, first.ID)
	}

	// A different influencer on the same campaign is a new conversation.
	other, err := s.CreateOrGetConversation(ctx, newConversation(campaignID, vendorID, id.NewActorID()))
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	if other.ID == first.ID {
		t.Error("distinct triple reused a conversation")
	}
}

func TestMeterLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	actorID := id.NewActorID()
	convID := id.NewConversationID()

	// Absent meter reads as zeroed.
	st, err := s.Meter(ctx, actorID, convID)
	if err != nil {
		t.Fatalf("Meter: %v", err)
	}
	if st.SentCount != 0 || st.PaidBlocks != 0 {
		t.Fatalf("fresh meter = %+v, want zeroed", st)
	}

	for i := 0; i < 3; i++ {
		if err := s.MarkMessageSent(ctx, actorID, convID); err != nil {
			t.Fatalf("MarkMessageSent: %v", err)
		}
	}
	if err := s.CommitBlock(ctx, actorID, convID); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}

	st, _ = s.Meter(ctx, actorID, convID)
	if st.SentCount != 3 || st.PaidBlocks != 1 {
		t.Errorf("meter = %d/%d, want 3 sent, 1 block", st.SentCount, st.PaidBlocks)
	}

	// Reconcile overwrites the sent count but never the paid blocks.
	if err := s.ReconcileSent(ctx, actorID, convID, 7); err != nil {
		t.Fatalf("ReconcileSent: %v", err)
	}
	st, _ = s.Meter(ctx, actorID, convID)
	if st.SentCount != 7 || st.PaidBlocks != 1 {
		t.Errorf("after reconcile = %d/%d, want 7 sent, 1 block", st.SentCount, st.PaidBlocks)
	}

	// Returned state is a copy; mutating it does not touch the store.
	st.SentCount = 99
	again, _ := s.Meter(ctx, actorID, convID)
	if again.SentCount != 7 {
		t.Error("Meter returned shared state")
	}
}

func TestSetContactCharge_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	actorID := id.NewActorID()
	campaignID := id.NewCampaignID()

	has, err := s.HasContactCharge(ctx, actorID, campaignID)
	if err != nil || has {
		t.Fatalf("HasContactCharge = %v, %v; want false, nil", has, err)
	}

	for i := 0; i < 3; i++ {
		if err := s.SetContactCharge(ctx, actorID, campaignID); err != nil {
			t.Fatalf("SetContactCharge: %v", err)
		}
	}

	has, err = s.HasContactCharge(ctx, actorID, campaignID)
	if err != nil || !has {
		t.Fatalf("HasContactCharge = %v, %v; want true, nil", has, err)
	}
}

func TestDeductTokens(t *testing.T) {
	ctx := context.Background()
	s := New()

	actorID := id.NewActorID()
	account := &wallet.Account{
		Entity:  types.NewEntity(),
		ActorID: actorID,
		Balance: types.TokensOf(10),
	}
	if err := s.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	balance, err := s.DeductTokens(ctx, actorID, types.TokensOf(4))
	if err != nil {
		t.Fatalf("DeductTokens: %v", err)
	}
	if balance != types.TokensOf(6) {
		t.Errorf("balance = %v, want 6", balance)
	}

	// Overdraw is refused and leaves the balance alone.
	if _, err := s.DeductTokens(ctx, actorID, types.TokensOf(7)); !errors.Is(err, wallet.ErrInsufficientTokens) {
		t.Errorf("overdraw err = %v, want ErrInsufficientTokens", err)
	}
	a, err := s.GetAccount(ctx, actorID)
	if err != nil {
		t.Fatal(err)
	}
	if a.Balance != types.TokensOf(6) {
		t.Errorf("balance after refused deduct = %v, want 6", a.Balance)
	}

	// Unknown account.
	if _, err := s.DeductTokens(ctx, id.NewActorID(), types.TokensOf(1)); !errors.Is(err, wallet.ErrAccountNotFound) {
		t.Errorf("unknown account err = %v, want ErrAccountNotFound", err)
	}
}

func TestDeductTokens_ConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	s := New()

	actorID := id.NewActorID()
	if err := s.CreateAccount(ctx, &wallet.Account{
		Entity:  types.NewEntity(),
		ActorID: actorID,
		Balance: types.TokensOf(10),
	}); err != nil {
		t.Fatal(err)
	}

	// 20 goroutines race to deduct 1 token each from a balance of 10.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.DeductTokens(ctx, actorID, types.TokensOf(1)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("successful deductions = %d, want 10", succeeded)
	}
	a, _ := s.GetAccount(ctx, actorID)
	if !a.Balance.IsZero() {
		t.Errorf("final balance = %v, want 0", a.Balance)
	}
}

func TestListCharges_NewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	actorID := id.NewActorID()
	scopes := []id.AnyID{id.NewCampaignID(), id.NewConversationID(), id.NewConversationID()}
	reasons := []charge.Reason{charge.ReasonContact, charge.ReasonMessageBlock, charge.ReasonMessageBlock}

	for i := range scopes {
		r := &charge.Receipt{
			Entity:       types.NewEntity(),
			ID:           id.NewChargeID(),
			ActorID:      actorID,
			Scope:        scopes[i],
			Reason:       reasons[i],
			Amount:       types.TokensOf(int64(i + 1)),
			BalanceAfter: types.TokensOf(int64(100 - i)),
		}
		if err := s.AppendCharge(ctx, r); err != nil {
			t.Fatalf("AppendCharge: %v", err)
		}
	}

	all, err := s.ListCharges(ctx, actorID, charge.ListOpts{})
	if err != nil {
		t.Fatalf("ListCharges: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Amount != types.TokensOf(3) {
		t.Errorf("newest first violated: first amount = %v", all[0].Amount)
	}

	blocks, err := s.ListCharges(ctx, actorID, charge.ListOpts{Reason: charge.ReasonMessageBlock})
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Errorf("filtered len = %d, want 2", len(blocks))
	}
	for _, r := range blocks {
		if r.Reason != charge.ReasonMessageBlock {
			t.Errorf("filter leaked reason %q", r.Reason)
		}
	}
}

func TestCountMessagesBySender(t *testing.T) {
	ctx := context.Background()
	s := New()

	campaignID := id.NewCampaignID()
	vendorID := id.NewActorID()
	influencerID := id.NewActorID()

	conv, err := s.CreateOrGetConversation(ctx, newConversation(campaignID, vendorID, influencerID))
	if err != nil {
		t.Fatal(err)
	}

	post := func(senderID id.ActorID, n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			m := &conversation.Message{
				Entity:         types.NewEntity(),
				ID:             id.NewMessageID(),
				ConversationID: conv.ID,
				SenderID:       senderID,
				Text:           "hello",
			}
			if err := s.AppendMessage(ctx, m); err != nil {
				t.Fatalf("AppendMessage: %v", err)
			}
		}
	}
	post(influencerID, 4)
	post(vendorID, 2)

	count, err := s.CountMessagesBySender(ctx, conv.ID, influencerID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("influencer count = %d, want 4", count)
	}
	count, _ = s.CountMessagesBySender(ctx, conv.ID, vendorID)
	if count != 2 {
		t.Errorf("vendor count = %d, want 2", count)
	}

	msgs, err := s.ListMessages(ctx, conv.ID, conversation.ListOpts{SenderID: vendorID})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("sender-filtered list = %d, want 2", len(msgs))
	}
}
