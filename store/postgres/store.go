package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	tollgate "github.com/xraph/tollgate"
	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/meter"
	tollgatestore "github.com/xraph/tollgate/store"
	"github.com/xraph/tollgate/types"
	"github.com/xraph/tollgate/wallet"
)

// compile-time interface check
var _ tollgatestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tollgate/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tollgate/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Meter Store ====================

func (s *Store) Meter(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) (*meter.State, error) {
	m := new(meterModel)
	err := s.pg.NewSelect(m).
		Where("actor_id = ?", actorID.String()).
		Where("conversation_id = ?", conversationID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return meter.Zeroed(actorID, conversationID), nil
		}
		return nil, err
	}
	return fromMeterModel(m)
}

func (s *Store) ReconcileSent(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID, sentCount int64) error {
	m := &meterModel{
		ActorID:        actorID.String(),
		ConversationID: conversationID.String(),
		SentCount:      sentCount,
		UpdatedAt:      now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(actor_id, conversation_id) DO UPDATE SET sent_count = excluded.sent_count, updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) MarkMessageSent(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) error {
	m := &meterModel{
		ActorID:        actorID.String(),
		ConversationID: conversationID.String(),
		SentCount:      1,
		UpdatedAt:      now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(actor_id, conversation_id) DO UPDATE SET sent_count = tollgate_meters.sent_count + 1, updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) CommitBlock(ctx context.Context, actorID id.ActorID, conversationID id.ConversationID) error {
	m := &meterModel{
		ActorID:        actorID.String(),
		ConversationID: conversationID.String(),
		PaidBlocks:     1,
		UpdatedAt:      now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(actor_id, conversation_id) DO UPDATE SET paid_blocks = tollgate_meters.paid_blocks + 1, updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) HasContactCharge(ctx context.Context, actorID id.ActorID, campaignID id.CampaignID) (bool, error) {
	var n int64
	err := s.pg.NewRaw(`
		SELECT COUNT(1) FROM tollgate_contact_charges
		WHERE actor_id = ? AND campaign_id = ?
	`, actorID.String(), campaignID.String()).Scan(ctx, &n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetContactCharge(ctx context.Context, actorID id.ActorID, campaignID id.CampaignID) error {
	m := &contactChargeModel{
		ActorID:    actorID.String(),
		CampaignID: campaignID.String(),
		ChargedAt:  now(),
	}
	// Idempotent: a recorded contact charge is never reverted or refreshed.
	_, err := s.pg.NewInsert(m).
		OnConflict("(actor_id, campaign_id) DO NOTHING").
		Exec(ctx)
	return err
}

// ==================== Conversation Store ====================

func (s *Store) CreateOrGetConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	m := toConversationModel(c)
	_, err := s.pg.NewInsert(m).
		OnConflict("(campaign_id, vendor_id, influencer_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	// Read back by triple: the insert is a no-op when the conversation
	// already exists, and its ID wins over the candidate.
	existing := new(conversationModel)
	err = s.pg.NewSelect(existing).
		Where("campaign_id = ?", c.CampaignID.String()).
		Where("vendor_id = ?", c.VendorID.String()).
		Where("influencer_id = ?", c.InfluencerID.String()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromConversationModel(existing)
}

func (s *Store) GetConversation(ctx context.Context, convID id.ConversationID) (*conversation.Conversation, error) {
	m := new(conversationModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", convID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tollgate.ErrConversationNotFound
		}
		return nil, err
	}
	return fromConversationModel(m)
}

func (s *Store) ListConversationsByActor(ctx context.Context, actorID id.ActorID) ([]*conversation.Conversation, error) {
	var models []conversationModel
	err := s.pg.NewSelect(&models).
		Where("vendor_id = ? OR influencer_id = ?", actorID.String(), actorID.String()).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*conversation.Conversation, len(models))
	for i := range models {
		c, err := fromConversationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) AppendMessage(ctx context.Context, m *conversation.Message) error {
	if _, err := s.GetConversation(ctx, m.ConversationID); err != nil {
		return err
	}
	_, err := s.pg.NewInsert(toMessageModel(m)).Exec(ctx)
	return err
}

func (s *Store) ListMessages(ctx context.Context, convID id.ConversationID, opts conversation.ListOpts) ([]*conversation.Message, error) {
	var models []messageModel
	q := s.pg.NewSelect(&models).Where("conversation_id = ?", convID.String())

	if !opts.SenderID.IsNil() {
		q = q.Where("sender_id = ?", opts.SenderID.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*conversation.Message, len(models))
	for i := range models {
		m, err := fromMessageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = m
	}
	return result, nil
}

func (s *Store) CountMessagesBySender(ctx context.Context, convID id.ConversationID, senderID id.ActorID) (int64, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COUNT(1) FROM tollgate_messages
		WHERE conversation_id = ? AND sender_id = ?
	`, convID.String(), senderID.String()).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Wallet Store ====================

func (s *Store) GetAccount(ctx context.Context, actorID id.ActorID) (*wallet.Account, error) {
	m := new(accountModel)
	err := s.pg.NewSelect(m).
		Where("actor_id = ?", actorID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, wallet.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) CreateAccount(ctx context.Context, a *wallet.Account) error {
	res, err := s.pg.NewInsert(toAccountModel(a)).
		OnConflict("(actor_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tollgate.ErrAlreadyExists
	}
	return nil
}

func (s *Store) DeductTokens(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error) {
	// Conditional single-statement deduction: the balance check and the
	// subtraction are atomic, so concurrent deductions cannot overdraw.
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("balance = balance - ?", amount.Int64()).
		Set("updated_at = ?", now()).
		Where("actor_id = ?", actorID.String()).
		Where("balance >= ?", amount.Int64()).
		Exec(ctx)
	if err != nil {
		return types.ZeroTokens, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return types.ZeroTokens, err
	}
	if rows == 0 {
		a, err := s.GetAccount(ctx, actorID)
		if err != nil {
			return types.ZeroTokens, err
		}
		return a.Balance, wallet.ErrInsufficientTokens
	}

	a, err := s.GetAccount(ctx, actorID)
	if err != nil {
		return types.ZeroTokens, err
	}
	return a.Balance, nil
}

func (s *Store) CreditTokens(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error) {
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("balance = balance + ?", amount.Int64()).
		Set("updated_at = ?", now()).
		Where("actor_id = ?", actorID.String()).
		Exec(ctx)
	if err != nil {
		return types.ZeroTokens, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return types.ZeroTokens, err
	}
	if rows == 0 {
		return types.ZeroTokens, wallet.ErrAccountNotFound
	}

	a, err := s.GetAccount(ctx, actorID)
	if err != nil {
		return types.ZeroTokens, err
	}
	return a.Balance, nil
}

// ==================== Charge journal ====================

func (s *Store) AppendCharge(ctx context.Context, r *charge.Receipt) error {
	_, err := s.pg.NewInsert(toReceiptModel(r)).Exec(ctx)
	return err
}

func (s *Store) ListCharges(ctx context.Context, actorID id.ActorID, opts charge.ListOpts) ([]*charge.Receipt, error) {
	var models []receiptModel
	q := s.pg.NewSelect(&models).Where("actor_id = ?", actorID.String())

	if opts.Reason != "" {
		q = q.Where("reason = ?", string(opts.Reason))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*charge.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
