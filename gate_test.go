package tollgate_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/xraph/tollgate"
	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/session"
	"github.com/xraph/tollgate/store/memory"
	"github.com/xraph/tollgate/types"
	"github.com/xraph/tollgate/wallet"
)

func newTestGate(t *testing.T, st *memory.Store, opts ...tollgate.Option) *tollgate.Gate {
	t.Helper()

	g := tollgate.New(st, opts...)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = g.Stop() })
	return g
}

func login(t *testing.T, mgr *session.Manager, actorID id.ActorID, role session.Role) *session.Session {
	t.Helper()

	sess, err := mgr.Login(actorID, role)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return sess
}

// openConversation enrolls an influencer and a vendor, pays the contact fee,
// and returns both sessions plus the open conversation.
func openConversation(t *testing.T, g *tollgate.Gate) (influencer, vendor *session.Session, convID id.ConversationID) {
	t.Helper()

	ctx := context.Background()
	influencerID := id.NewActorID()
	vendorID := id.NewActorID()

	if _, err := g.Enroll(ctx, influencerID); err != nil {
		t.Fatalf("Enroll influencer: %v", err)
	}
	if _, err := g.Enroll(ctx, vendorID); err != nil {
		t.Fatalf("Enroll vendor: %v", err)
	}

	mgr := session.NewManager()
	influencer = login(t, mgr, influencerID, session.RoleInfluencer)
	vendor = login(t, mgr, vendorID, session.RoleVendor)

	out, err := g.EvaluateContact(ctx, influencer, id.NewCampaignID(), vendorID)
	if err != nil {
		t.Fatalf("EvaluateContact: %v", err)
	}
	if !out.Proceeded() {
		t.Fatalf("contact blocked: %+v", out)
	}
	return influencer, vendor, out.Conversation.ID
}

func TestEvaluateContact(t *testing.T) {
	t.Run("first contact charges once, repeat is free", func(t *testing.T) {
		ctx := context.Background()
		g := newTestGate(t, memory.New())

		influencerID := id.NewActorID()
		vendorID := id.NewActorID()
		campaignID := id.NewCampaignID()

		if _, err := g.Enroll(ctx, influencerID); err != nil {
			t.Fatal(err)
		}
		sess := login(t, session.NewManager(), influencerID, session.RoleInfluencer)

		out, err := g.EvaluateContact(ctx, sess, campaignID, vendorID)
		if err != nil {
			t.Fatalf("EvaluateContact: %v", err)
		}
		if !out.Proceeded() || !out.Charged() {
			t.Fatalf("first contact should proceed with a charge: %+v", out)
		}
		if out.Receipt.Amount != g.Policy().ContactCost {
			t.Errorf("charge amount = %v, want %v", out.Receipt.Amount, g.Policy().ContactCost)
		}
		firstConvID := out.Conversation.ID

		balanceAfterFirst, err := g.Balance(ctx, influencerID)
		if err != nil {
			t.Fatal(err)
		}

		// Repeat contact reopens the same conversation and never touches
		// the ledger.
		again, err := g.EvaluateContact(ctx, sess, campaignID, vendorID)
		if err != nil {
			t.Fatalf("repeat EvaluateContact: %v", err)
		}
		if !again.Proceeded() || again.Charged() {
			t.Fatalf("repeat contact should be free: %+v", again)
		}
		if again.Conversation.ID != firstConvID {
			t.Errorf("repeat contact opened a new conversation: %v != %v", again.Conversation.ID, firstConvID)
		}

		balance, err := g.Balance(ctx, influencerID)
		if err != nil {
			t.Fatal(err)
		}
		if balance != balanceAfterFirst {
			t.Errorf("repeat contact moved the balance: %v -> %v", balanceAfterFirst, balance)
		}

		receipts, err := g.Receipts(ctx, influencerID, charge.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(receipts) != 1 {
			t.Errorf("receipts = %d, want 1", len(receipts))
		}
	})

	t.Run("insufficient balance blocks without side effects", func(t *testing.T) {
		ctx := context.Background()
		g := newTestGate(t, memory.New(), tollgate.WithOpeningBalance(types.TokensOf(30)))

		influencerID := id.NewActorID()
		vendorID := id.NewActorID()
		campaignID := id.NewCampaignID()

		if _, err := g.Enroll(ctx, influencerID); err != nil {
			t.Fatal(err)
		}
		sess := login(t, session.NewManager(), influencerID, session.RoleInfluencer)

		out, err := g.EvaluateContact(ctx, sess, campaignID, vendorID)
		if err != nil {
			t.Fatalf("EvaluateContact: %v", err)
		}
		if !out.Blocked() {
			t.Fatalf("contact with 30 tokens should block: %+v", out)
		}
		if out.Shortfall != types.TokensOf(20) {
			t.Errorf("shortfall = %v, want 20", out.Shortfall)
		}

		// Nothing happened: no conversation, full balance, no receipts.
		convs, err := g.Conversations(ctx, influencerID)
		if err != nil {
			t.Fatal(err)
		}
		if len(convs) != 0 {
			t.Errorf("blocked contact opened a conversation")
		}
		balance, _ := g.Balance(ctx, influencerID)
		if balance != types.TokensOf(30) {
			t.Errorf("blocked contact moved the balance: %v", balance)
		}

		// After a top-up the same contact succeeds.
		if _, err := g.Credit(ctx, influencerID, types.TokensOf(100)); err != nil {
			t.Fatal(err)
		}
		out, err = g.EvaluateContact(ctx, sess, campaignID, vendorID)
		if err != nil {
			t.Fatal(err)
		}
		if !out.Proceeded() || !out.Charged() {
			t.Fatalf("contact after top-up should proceed with a charge: %+v", out)
		}
	})

	t.Run("vendors cannot initiate contact", func(t *testing.T) {
		ctx := context.Background()
		g := newTestGate(t, memory.New())

		vendorID := id.NewActorID()
		if _, err := g.Enroll(ctx, vendorID); err != nil {
			t.Fatal(err)
		}
		sess := login(t, session.NewManager(), vendorID, session.RoleVendor)

		_, err := g.EvaluateContact(ctx, sess, id.NewCampaignID(), id.NewActorID())
		if !errors.Is(err, tollgate.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestEvaluateSend_FreePaidBoundary(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, memory.New())
	influencer, _, convID := openConversation(t, g)

	pol := g.Policy()
	start, err := g.Balance(ctx, influencer.ActorID())
	if err != nil {
		t.Fatal(err)
	}

	// With the default policy messages 1-5 are free, then 6, 9 and 12 each
	// buy a block covering the next three sends.
	chargedAt := map[int64]bool{6: true, 9: true, 12: true}
	spent := types.ZeroTokens
	for n := int64(1); n <= 12; n++ {
		out, err := g.EvaluateSend(ctx, influencer, convID, "message")
		if err != nil {
			t.Fatalf("send %d: %v", n, err)
		}
		if !out.Proceeded() {
			t.Fatalf("send %d blocked: %+v", n, out)
		}
		if out.Charged() != chargedAt[n] {
			t.Errorf("send %d charged = %v, want %v", n, out.Charged(), chargedAt[n])
		}
		if out.Charged() {
			if out.Receipt.Amount != pol.BlockCost {
				t.Errorf("send %d charge = %v, want %v", n, out.Receipt.Amount, pol.BlockCost)
			}
			spent = spent.Add(out.Receipt.Amount)
		}
	}

	balance, err := g.Balance(ctx, influencer.ActorID())
	if err != nil {
		t.Fatal(err)
	}
	if want := start.Subtract(spent); balance != want {
		t.Errorf("balance = %v, want %v", balance, want)
	}

	st, err := g.Usage(ctx, influencer.ActorID(), convID)
	if err != nil {
		t.Fatal(err)
	}
	if st.SentCount != 12 || st.PaidBlocks != 3 {
		t.Errorf("meter = %d sent / %d blocks, want 12/3", st.SentCount, st.PaidBlocks)
	}
	if got := pol.RequiredBlocks(st.SentCount); got != st.PaidBlocks {
		t.Errorf("paid blocks %d != required blocks %d", st.PaidBlocks, got)
	}
}

func TestEvaluateSend_InsufficientLeavesCountersUntouched(t *testing.T) {
	ctx := context.Background()
	// 53 tokens: 50 for contact, 3 left -- one short of a 5-token block.
	g := newTestGate(t, memory.New(), tollgate.WithOpeningBalance(types.TokensOf(53)))
	influencer, _, convID := openConversation(t, g)

	for n := 0; n < 5; n++ {
		out, err := g.EvaluateSend(ctx, influencer, convID, "free message")
		if err != nil {
			t.Fatal(err)
		}
		if !out.Proceeded() || out.Charged() {
			t.Fatalf("message %d should be free: %+v", n+1, out)
		}
	}

	out, err := g.EvaluateSend(ctx, influencer, convID, "sixth message")
	if err != nil {
		t.Fatalf("EvaluateSend: %v", err)
	}
	if !out.Blocked() {
		t.Fatalf("sixth message with 3 tokens should block: %+v", out)
	}
	if out.Shortfall != types.TokensOf(2) {
		t.Errorf("shortfall = %v, want 2", out.Shortfall)
	}

	// The blocked evaluation committed nothing.
	st, err := g.Usage(ctx, influencer.ActorID(), convID)
	if err != nil {
		t.Fatal(err)
	}
	if st.SentCount != 5 || st.PaidBlocks != 0 {
		t.Errorf("meter = %d sent / %d blocks, want 5/0", st.SentCount, st.PaidBlocks)
	}
	msgs, err := g.Messages(ctx, convID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 5 {
		t.Errorf("messages = %d, want 5", len(msgs))
	}
	balance, _ := g.Balance(ctx, influencer.ActorID())
	if balance != types.TokensOf(3) {
		t.Errorf("balance = %v, want 3", balance)
	}
}

func TestEvaluateSend_VendorRepliesAreFree(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, memory.New())
	influencer, vendor, convID := openConversation(t, g)

	for n := 0; n < 10; n++ {
		out, err := g.EvaluateSend(ctx, vendor, convID, "vendor reply")
		if err != nil {
			t.Fatal(err)
		}
		if !out.Proceeded() || out.Charged() {
			t.Fatalf("vendor reply %d should be free: %+v", n+1, out)
		}
	}

	// Vendor sends are not metered and do not consume the influencer's
	// allowance.
	st, err := g.Usage(ctx, vendor.ActorID(), convID)
	if err != nil {
		t.Fatal(err)
	}
	if st.SentCount != 0 || st.PaidBlocks != 0 {
		t.Errorf("vendor meter = %+v, want zeroed", st)
	}

	out, err := g.EvaluateSend(ctx, influencer, convID, "still free")
	if err != nil {
		t.Fatal(err)
	}
	if out.Charged() {
		t.Errorf("influencer's first message charged after vendor replies")
	}
}

func TestEvaluateSend_NotParticipant(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, memory.New())
	_, _, convID := openConversation(t, g)

	strangerID := id.NewActorID()
	if _, err := g.Enroll(ctx, strangerID); err != nil {
		t.Fatal(err)
	}
	stranger := login(t, session.NewManager(), strangerID, session.RoleInfluencer)

	_, err := g.EvaluateSend(ctx, stranger, convID, "let me in")
	if !errors.Is(err, tollgate.ErrNotParticipant) {
		t.Errorf("err = %v, want ErrNotParticipant", err)
	}
}

func TestEvaluateSend_ReconcilesFromHistory(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	g := newTestGate(t, st)
	influencer, _, convID := openConversation(t, g)

	// Seed seven messages directly into storage, simulating history written
	// while the meter was lost.
	for n := 0; n < 7; n++ {
		m := &conversation.Message{
			Entity:         types.NewEntity(),
			ID:             id.NewMessageID(),
			ConversationID: convID,
			SenderID:       influencer.ActorID(),
			Text:           "imported message",
		}
		if err := st.AppendMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	// The meter still reads zero; the next evaluation must re-derive the
	// sent count from history before deciding, making this message number
	// eight -- inside the second block, which is unpaid.
	out, err := g.EvaluateSend(ctx, influencer, convID, "eighth message")
	if err != nil {
		t.Fatalf("EvaluateSend: %v", err)
	}
	if !out.Proceeded() || !out.Charged() {
		t.Fatalf("message past reconciled allowance should charge: %+v", out)
	}

	meterState, err := g.Usage(ctx, influencer.ActorID(), convID)
	if err != nil {
		t.Fatal(err)
	}
	if meterState.SentCount != 8 || meterState.PaidBlocks != 1 {
		t.Errorf("meter = %d sent / %d blocks, want 8/1", meterState.SentCount, meterState.PaidBlocks)
	}
}

// flakyLedger is a wallet.Ledger with scripted transient failures.
type flakyLedger struct {
	mu       sync.Mutex
	balances map[string]types.Tokens
	failNext int
	deducts  int
}

func newFlakyLedger() *flakyLedger {
	return &flakyLedger{balances: make(map[string]types.Tokens)}
}

func (l *flakyLedger) fund(actorID id.ActorID, amount types.Tokens) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[actorID.String()] = amount
}

func (l *flakyLedger) failures(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = n
}

func (l *flakyLedger) deductCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deducts
}

func (l *flakyLedger) Balance(_ context.Context, actorID id.ActorID) (types.Tokens, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[actorID.String()], nil
}

func (l *flakyLedger) Deduct(_ context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failNext > 0 {
		l.failNext--
		return types.ZeroTokens, errors.New("ledger timeout")
	}

	balance := l.balances[actorID.String()]
	if !balance.CanAfford(amount) {
		return types.ZeroTokens, wallet.ErrInsufficientTokens
	}
	balance = balance.Subtract(amount)
	l.balances[actorID.String()] = balance
	l.deducts++
	return balance, nil
}

func TestEvaluateSend_TransientFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	ledger := newFlakyLedger()
	g := newTestGate(t, memory.New(), tollgate.WithLedger(ledger))

	influencerID := id.NewActorID()
	vendorID := id.NewActorID()
	ledger.fund(influencerID, types.TokensOf(200))

	mgr := session.NewManager()
	influencer := login(t, mgr, influencerID, session.RoleInfluencer)

	out, err := g.EvaluateContact(ctx, influencer, id.NewCampaignID(), vendorID)
	if err != nil {
		t.Fatal(err)
	}
	convID := out.Conversation.ID

	for n := 0; n < 5; n++ {
		if _, err := g.EvaluateSend(ctx, influencer, convID, "free message"); err != nil {
			t.Fatal(err)
		}
	}

	// The sixth message needs a block; the first deduction attempt times out.
	ledger.failures(1)
	_, err = g.EvaluateSend(ctx, influencer, convID, "sixth message")
	if !tollgate.IsRetryable(err) {
		t.Fatalf("err = %v, want retryable", err)
	}

	// Nothing was committed, so the retry charges exactly once.
	msgs, err := g.Messages(ctx, convID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 5 {
		t.Fatalf("failed evaluation posted a message: %d", len(msgs))
	}

	out, err = g.EvaluateSend(ctx, influencer, convID, "sixth message")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !out.Proceeded() || !out.Charged() {
		t.Fatalf("retry should proceed with a charge: %+v", out)
	}

	// One contact deduction plus one block deduction, matching the blocks
	// the final sent count requires.
	meterState, err := g.Usage(ctx, influencerID, convID)
	if err != nil {
		t.Fatal(err)
	}
	wantBlocks := g.Policy().RequiredBlocks(meterState.SentCount)
	if meterState.PaidBlocks != wantBlocks {
		t.Errorf("paid blocks = %d, want %d", meterState.PaidBlocks, wantBlocks)
	}
	if got := ledger.deductCount(); got != int(wantBlocks)+1 {
		t.Errorf("deductions = %d, want %d", got, wantBlocks+1)
	}
}

// scriptedConversations wraps a Service to inject Post failures and stalls.
type scriptedConversations struct {
	conversation.Service

	mu        sync.Mutex
	failPosts int

	enterPost chan struct{}
	blockPost chan struct{}
}

func (s *scriptedConversations) Post(ctx context.Context, convID id.ConversationID, senderID id.ActorID, text string) (*conversation.Message, error) {
	if s.enterPost != nil {
		s.enterPost <- struct{}{}
	}
	if s.blockPost != nil {
		<-s.blockPost
	}

	s.mu.Lock()
	fail := s.failPosts > 0
	if fail {
		s.failPosts--
	}
	s.mu.Unlock()

	if fail {
		return nil, errors.New("message transport down")
	}
	return s.Service.Post(ctx, convID, senderID, text)
}

func TestEvaluateSend_PostFailureAfterChargeKeepsBlock(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	convs := &scriptedConversations{Service: conversation.NewService(st)}
	g := newTestGate(t, st, tollgate.WithConversationService(convs))
	influencer, _, convID := openConversation(t, g)

	start, _ := g.Balance(ctx, influencer.ActorID())

	for n := 0; n < 5; n++ {
		if _, err := g.EvaluateSend(ctx, influencer, convID, "free message"); err != nil {
			t.Fatal(err)
		}
	}

	// The block charge succeeds but the post fails. The paid block stays
	// committed.
	convs.mu.Lock()
	convs.failPosts = 1
	convs.mu.Unlock()

	_, err := g.EvaluateSend(ctx, influencer, convID, "sixth message")
	if !errors.Is(err, tollgate.ErrSendFailed) {
		t.Fatalf("err = %v, want ErrSendFailed", err)
	}

	meterState, err := g.Usage(ctx, influencer.ActorID(), convID)
	if err != nil {
		t.Fatal(err)
	}
	if meterState.SentCount != 5 || meterState.PaidBlocks != 1 {
		t.Fatalf("meter = %d sent / %d blocks, want 5/1", meterState.SentCount, meterState.PaidBlocks)
	}

	// The manual retry is free: the block is already paid.
	out, err := g.EvaluateSend(ctx, influencer, convID, "sixth message")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !out.Proceeded() || out.Charged() {
		t.Fatalf("retry of a paid message should be free: %+v", out)
	}

	balance, _ := g.Balance(ctx, influencer.ActorID())
	if want := start.Subtract(g.Policy().BlockCost); balance != want {
		t.Errorf("balance = %v, want %v (exactly one block)", balance, want)
	}
}

func TestEvaluateSend_InFlightGuard(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	convs := &scriptedConversations{Service: conversation.NewService(st)}
	g := newTestGate(t, st, tollgate.WithConversationService(convs))

	// Open the conversation before arming the stall.
	influencer, _, convID := openConversation(t, g)
	convs.enterPost = make(chan struct{})
	convs.blockPost = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := g.EvaluateSend(ctx, influencer, convID, "slow message")
		done <- err
	}()

	// Wait until the first evaluation is inside Post, then race a second
	// one for the same key.
	<-convs.enterPost
	_, err := g.EvaluateSend(ctx, influencer, convID, "duplicate trigger")
	if !errors.Is(err, tollgate.ErrEvaluationInFlight) {
		t.Errorf("err = %v, want ErrEvaluationInFlight", err)
	}
	if !tollgate.IsInFlight(err) {
		t.Errorf("IsInFlight(%v) = false", err)
	}

	close(convs.blockPost)
	if err := <-done; err != nil {
		t.Fatalf("stalled evaluation: %v", err)
	}

	// The guard releases once the evaluation resolves.
	convs.enterPost = nil
	convs.blockPost = nil
	for i := 0; i < 100; i++ {
		if _, err := g.EvaluateSend(ctx, influencer, convID, "after release"); err == nil {
			return
		} else if !errors.Is(err, tollgate.ErrEvaluationInFlight) {
			t.Fatalf("unexpected error after release: %v", err)
		}
		runtime.Gosched()
	}
	t.Fatal("guard never released")
}

func TestOutcomePath(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t, memory.New())
	influencer, _, convID := openConversation(t, g)

	out, err := g.EvaluateSend(ctx, influencer, convID, "free message")
	if err != nil {
		t.Fatal(err)
	}
	wantFree := []tollgate.State{
		tollgate.StateIdle, tollgate.StateEvaluating,
		tollgate.StateProceeding, tollgate.StateIdle,
	}
	if len(out.Path) != len(wantFree) {
		t.Fatalf("free path = %v, want %v", out.Path, wantFree)
	}
	for i, s := range wantFree {
		if out.Path[i] != s {
			t.Errorf("free path[%d] = %v, want %v", i, out.Path[i], s)
		}
	}

	for n := 0; n < 4; n++ {
		if _, err := g.EvaluateSend(ctx, influencer, convID, "filler"); err != nil {
			t.Fatal(err)
		}
	}

	out, err = g.EvaluateSend(ctx, influencer, convID, "sixth message")
	if err != nil {
		t.Fatal(err)
	}
	wantPaid := []tollgate.State{
		tollgate.StateIdle, tollgate.StateEvaluating,
		tollgate.StateCharging, tollgate.StateCharged,
		tollgate.StateProceeding, tollgate.StateIdle,
	}
	if len(out.Path) != len(wantPaid) {
		t.Fatalf("paid path = %v, want %v", out.Path, wantPaid)
	}
	for i, s := range wantPaid {
		if out.Path[i] != s {
			t.Errorf("paid path[%d] = %v, want %v", i, out.Path[i], s)
		}
	}
}
