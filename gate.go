package tollgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/meter"
	"github.com/xraph/tollgate/plugin"
	"github.com/xraph/tollgate/policy"
	"github.com/xraph/tollgate/session"
	"github.com/xraph/tollgate/store"
	"github.com/xraph/tollgate/types"
	"github.com/xraph/tollgate/wallet"
)

// Gate is the main access-control engine. It decides whether an actor's
// action in a conversation is free or requires a token charge, confirms the
// charge, and only then lets the action proceed.
type Gate struct {
	store         store.Store
	ledger        wallet.Ledger
	wallet        *wallet.Service // nil when an external ledger is supplied
	conversations conversation.Service
	coordinator   *charge.Coordinator
	policy        policy.Policy
	plugins       *plugin.Registry
	logger        *slog.Logger

	// Per-key evaluation guard. A second evaluation for the same
	// (actor, scope) while one is outstanding is refused, not queued.
	mu       sync.Mutex
	inFlight map[evalKey]struct{}

	openingBalance types.Tokens
}

type evalKey struct {
	actor string
	scope string
}

// New creates a new Gate instance backed by the given store.
func New(s store.Store, opts ...Option) *Gate {
	g := &Gate{
		store:          s,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		policy:         policy.Default(),
		inFlight:       make(map[evalKey]struct{}),
		openingBalance: wallet.DefaultOpeningBalance,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.ledger == nil {
		g.wallet = wallet.NewService(s, wallet.WithOpeningBalance(g.openingBalance))
		g.ledger = g.wallet
	}
	if g.conversations == nil {
		g.conversations = conversation.NewService(s)
	}
	g.coordinator = charge.NewCoordinator(g.ledger, s, charge.WithLogger(g.logger))

	return g
}

// Option configures a Gate instance.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
		g.plugins.WithLogger(logger)
	}
}

// WithPolicy overrides the default billing policy.
func WithPolicy(p policy.Policy) Option {
	return func(g *Gate) {
		g.policy = p
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(g *Gate) {
		_ = g.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithLedger supplies an external token ledger. The store's wallet tables
// are not used when set; enrollment and credits happen in the external
// system.
func WithLedger(l wallet.Ledger) Option {
	return func(g *Gate) {
		g.ledger = l
	}
}

// WithConversationService supplies an external conversation system. The
// store's conversation tables are not used when set.
func WithConversationService(s conversation.Service) Option {
	return func(g *Gate) {
		g.conversations = s
	}
}

// WithOpeningBalance sets the balance granted to newly enrolled actors.
// Ignored when an external ledger is supplied.
func WithOpeningBalance(amount types.Tokens) Option {
	return func(g *Gate) {
		g.openingBalance = amount
	}
}

// Start migrates the store and initializes plugins.
func (g *Gate) Start(ctx context.Context) error {
	if err := g.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	if err := g.policy.Validate(); err != nil {
		return err
	}

	g.plugins.EmitInit(ctx, g)

	g.logger.Info("gate started",
		"free_limit", g.policy.FreeLimit,
		"block_size", g.policy.BlockSize,
		"block_cost", g.policy.BlockCost,
		"contact_cost", g.policy.ContactCost,
	)

	return nil
}

// Stop shuts down the Gate.
func (g *Gate) Stop() error {
	ctx := context.Background()
	g.plugins.EmitShutdown(ctx)

	return g.store.Close()
}

// Policy returns the active billing policy.
func (g *Gate) Policy() policy.Policy {
	return g.policy
}

// ──────────────────────────────────────────────────
// Wallet management
// ──────────────────────────────────────────────────

// Enroll opens a token account for the actor with the opening balance.
// Idempotent: an existing account is returned unchanged.
func (g *Gate) Enroll(ctx context.Context, actorID id.ActorID) (*wallet.Account, error) {
	if g.wallet == nil {
		return nil, fmt.Errorf("%w: enrollment is managed by the external ledger", ErrInvalidInput)
	}
	return g.wallet.Open(ctx, actorID)
}

// Balance returns the actor's current token balance.
func (g *Gate) Balance(ctx context.Context, actorID id.ActorID) (types.Tokens, error) {
	return g.ledger.Balance(ctx, actorID)
}

// Credit adds tokens to the actor's account and returns the new balance.
func (g *Gate) Credit(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error) {
	if g.wallet == nil {
		return types.ZeroTokens, fmt.Errorf("%w: credits are managed by the external ledger", ErrInvalidInput)
	}
	return g.wallet.Credit(ctx, actorID, amount)
}

// ──────────────────────────────────────────────────
// Evaluations
// ──────────────────────────────────────────────────

// EvaluateContact gates an influencer's first contact with a vendor on a
// campaign. The contact fee is charged at most once per (actor, campaign);
// the conversation is only opened after the charge is confirmed. Repeat
// calls reopen the existing conversation without touching the ledger.
func (g *Gate) EvaluateContact(ctx context.Context, sess *session.Session, campaignID id.CampaignID, vendorID id.ActorID) (*Outcome, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	if sess.Role() != session.RoleInfluencer {
		return nil, fmt.Errorf("%w: only influencers initiate contact", ErrInvalidInput)
	}
	actorID := sess.ActorID()

	key := evalKey{actor: actorID.String(), scope: campaignID.String()}
	if !g.acquire(key) {
		return nil, ErrEvaluationInFlight
	}
	defer g.release(key)

	out := &Outcome{Path: []State{StateIdle, StateEvaluating}}

	paid, err := g.store.HasContactCharge(ctx, actorID, campaignID)
	if err != nil {
		return nil, err
	}
	out.Decision = g.policy.ForContact(paid)

	firstContact := out.Decision.ChargeRequired()
	if firstContact {
		receipt, err := g.chargeOrBlock(ctx, sess, out, campaignID, charge.ReasonContact)
		if err != nil {
			return nil, err
		}
		if out.Blocked() {
			return out, nil
		}

		if err := g.store.SetContactCharge(ctx, actorID, campaignID); err != nil {
			// Charge landed but the marker did not. The journal still
			// carries the receipt; surface the store failure to the caller.
			g.logger.Error("contact marker write failed after charge",
				"actor_id", actorID,
				"campaign_id", campaignID,
				"error", err,
			)
			return nil, err
		}
		g.plugins.EmitChargeRecorded(ctx, receipt)
		g.plugins.EmitContactCharged(ctx, actorID.String(), campaignID.String(), receipt.Amount.Int64())
	}

	out.push(StateProceeding)
	conv, err := g.conversations.CreateOrGet(ctx, campaignID, vendorID, actorID)
	if err != nil {
		// The contact charge marker is durable, so a manual retry of this
		// evaluation is free.
		return nil, err
	}
	out.Conversation = conv

	if firstContact {
		g.plugins.EmitConversationOpened(ctx, conv)
	}

	out.Status = StatusProceeded
	out.push(StateIdle)
	g.plugins.EmitEvaluated(ctx, out)

	g.logger.Debug("contact evaluated",
		"actor_id", actorID,
		"campaign_id", campaignID,
		"conversation_id", conv.ID,
		"charged", out.Charged(),
	)
	return out, nil
}

// EvaluateSend gates a message send. The sender's counters are reconciled
// against the authoritative message history before any billing decision.
// If a paid block is required it is charged and committed first; the
// message is only posted after the charge is confirmed.
func (g *Gate) EvaluateSend(ctx context.Context, sess *session.Session, convID id.ConversationID, draft string) (*Outcome, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	actorID := sess.ActorID()

	key := evalKey{actor: actorID.String(), scope: convID.String()}
	if !g.acquire(key) {
		return nil, ErrEvaluationInFlight
	}
	defer g.release(key)

	out := &Outcome{Path: []State{StateIdle, StateEvaluating}}

	conv, err := g.conversations.Get(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.Involves(actorID) {
		return nil, ErrNotParticipant
	}
	out.Conversation = conv

	// Vendors reply for free and are not metered.
	metered := sess.Role() != session.RoleVendor
	if metered {
		st, err := g.reconciledMeter(ctx, actorID, convID)
		if err != nil {
			return nil, err
		}

		out.Decision = g.policy.ForMessage(st.SentCount, st.PaidBlocks)
		if out.Decision.ChargeRequired() {
			receipt, err := g.chargeOrBlock(ctx, sess, out, convID, charge.ReasonMessageBlock)
			if err != nil {
				return nil, err
			}
			if out.Blocked() {
				return out, nil
			}

			if err := g.store.CommitBlock(ctx, actorID, convID); err != nil {
				g.logger.Error("block commit failed after charge",
					"actor_id", actorID,
					"conversation_id", convID,
					"error", err,
				)
				return nil, err
			}
			g.plugins.EmitChargeRecorded(ctx, receipt)
			g.plugins.EmitBlockCommitted(ctx, actorID.String(), convID.String(), st.PaidBlocks+1, receipt.Amount.Int64())
		}
	} else {
		out.Decision = policy.Decision{Kind: policy.KindFree}
	}

	out.push(StateProceeding)
	msg, err := g.conversations.Post(ctx, convID, actorID, draft)
	if err != nil {
		// A paid block, if any, is already committed: the failed send is
		// not auto-retried, and a manual retry re-evaluates as free.
		return nil, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	out.Message = msg

	if metered {
		if err := g.store.MarkMessageSent(ctx, actorID, convID); err != nil {
			// The message is durable; reconciliation corrects the count on
			// the next evaluation.
			g.logger.Warn("meter advance failed after send",
				"actor_id", actorID,
				"conversation_id", convID,
				"error", err,
			)
		}
	}
	g.plugins.EmitMessagePosted(ctx, msg)

	out.Status = StatusProceeded
	out.push(StateIdle)
	g.plugins.EmitEvaluated(ctx, out)

	g.logger.Debug("send evaluated",
		"actor_id", actorID,
		"conversation_id", convID,
		"message_id", msg.ID,
		"charged", out.Charged(),
	)
	return out, nil
}

// chargeOrBlock runs the coordinator for the decision already recorded on
// out. On insufficient balance it marks the outcome blocked and returns a
// nil error; transient and structural failures pass through unchanged.
func (g *Gate) chargeOrBlock(ctx context.Context, sess *session.Session, out *Outcome, scope id.AnyID, reason charge.Reason) (*charge.Receipt, error) {
	actorID := sess.ActorID()
	out.push(StateCharging)

	receipt, err := g.coordinator.Charge(ctx, actorID, scope, out.Decision.Cost, reason)
	if errors.Is(err, wallet.ErrInsufficientTokens) {
		out.push(StateBlocked)
		out.Status = StatusBlocked
		out.Shortfall = out.Decision.Cost
		if bal, balErr := g.ledger.Balance(ctx, actorID); balErr == nil {
			out.Shortfall = bal.Shortfall(out.Decision.Cost)
			sess.ObserveBalance(bal)
		}
		g.plugins.EmitInsufficientTokens(ctx, actorID.String(), scope.String(), out.Decision.Cost.Int64())
		g.plugins.EmitEvaluated(ctx, out)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out.push(StateCharged)
	out.Receipt = receipt
	sess.ObserveBalance(receipt.BalanceAfter)
	return receipt, nil
}

// reconciledMeter loads the actor's meter for the conversation, overwriting
// the sent count from the authoritative message history when it drifted.
func (g *Gate) reconciledMeter(ctx context.Context, actorID id.ActorID, convID id.ConversationID) (*meter.State, error) {
	authoritative, err := g.conversations.CountBySender(ctx, convID, actorID)
	if err != nil {
		return nil, err
	}

	st, err := g.store.Meter(ctx, actorID, convID)
	if err != nil {
		return nil, err
	}

	if st.SentCount != authoritative {
		if err := g.store.ReconcileSent(ctx, actorID, convID, authoritative); err != nil {
			return nil, err
		}
		g.logger.Info("meter reconciled from history",
			"actor_id", actorID,
			"conversation_id", convID,
			"recorded", st.SentCount,
			"authoritative", authoritative,
		)
		g.plugins.EmitReconciled(ctx, actorID.String(), convID.String(), st.SentCount, authoritative)
		st.SentCount = authoritative
	}

	return st, nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Conversations lists every conversation the actor participates in.
func (g *Gate) Conversations(ctx context.Context, actorID id.ActorID) ([]*conversation.Conversation, error) {
	return g.conversations.ListByActor(ctx, actorID)
}

// Messages lists a conversation's messages in creation order.
func (g *Gate) Messages(ctx context.Context, convID id.ConversationID) ([]*conversation.Message, error) {
	return g.conversations.List(ctx, convID)
}

// Usage returns the actor's meter for a conversation, zeroed if absent.
func (g *Gate) Usage(ctx context.Context, actorID id.ActorID, convID id.ConversationID) (*meter.State, error) {
	return g.store.Meter(ctx, actorID, convID)
}

// FreeRemaining reports how many more messages the actor can send in the
// conversation before the next charge.
func (g *Gate) FreeRemaining(ctx context.Context, actorID id.ActorID, convID id.ConversationID) (int64, error) {
	st, err := g.store.Meter(ctx, actorID, convID)
	if err != nil {
		return 0, err
	}
	return g.policy.FreeRemaining(st.SentCount), nil
}

// Receipts lists the actor's charge receipts, newest first.
func (g *Gate) Receipts(ctx context.Context, actorID id.ActorID, opts charge.ListOpts) ([]*charge.Receipt, error) {
	return g.coordinator.Receipts(ctx, actorID, opts)
}

func (g *Gate) acquire(key evalKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return false
	}
	g.inFlight[key] = struct{}{}
	return true
}

func (g *Gate) release(key evalKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, key)
}
