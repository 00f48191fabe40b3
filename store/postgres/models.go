package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/meter"
	"github.com/xraph/tollgate/types"
	"github.com/xraph/tollgate/wallet"
)

// ==================== Meter models ====================

type meterModel struct {
	grove.BaseModel `grove:"table:tollgate_meters"`

	ActorID        string    `grove:"actor_id,pk"`
	ConversationID string    `grove:"conversation_id"`
	SentCount      int64     `grove:"sent_count"`
	PaidBlocks     int64     `grove:"paid_blocks"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func fromMeterModel(m *meterModel) (*meter.State, error) {
	actorID, err := id.ParseActorID(m.ActorID)
	if err != nil {
		return nil, err
	}
	convID, err := id.ParseConversationID(m.ConversationID)
	if err != nil {
		return nil, err
	}

	return &meter.State{
		ActorID:        actorID,
		ConversationID: convID,
		SentCount:      m.SentCount,
		PaidBlocks:     m.PaidBlocks,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

type contactChargeModel struct {
	grove.BaseModel `grove:"table:tollgate_contact_charges"`

	ActorID    string    `grove:"actor_id,pk"`
	CampaignID string    `grove:"campaign_id"`
	ChargedAt  time.Time `grove:"charged_at"`
}

// ==================== Conversation models ====================

type conversationModel struct {
	grove.BaseModel `grove:"table:tollgate_conversations"`

	ID           string    `grove:"id,pk"`
	CampaignID   string    `grove:"campaign_id"`
	VendorID     string    `grove:"vendor_id"`
	InfluencerID string    `grove:"influencer_id"`
	CreatedAt    time.Time `grove:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"`
}

func toConversationModel(c *conversation.Conversation) *conversationModel {
	return &conversationModel{
		ID:           c.ID.String(),
		CampaignID:   c.CampaignID.String(),
		VendorID:     c.VendorID.String(),
		InfluencerID: c.InfluencerID.String(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func fromConversationModel(m *conversationModel) (*conversation.Conversation, error) {
	convID, err := id.ParseConversationID(m.ID)
	if err != nil {
		return nil, err
	}
	campaignID, err := id.ParseCampaignID(m.CampaignID)
	if err != nil {
		return nil, err
	}
	vendorID, err := id.ParseActorID(m.VendorID)
	if err != nil {
		return nil, err
	}
	influencerID, err := id.ParseActorID(m.InfluencerID)
	if err != nil {
		return nil, err
	}

	return &conversation.Conversation{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           convID,
		CampaignID:   campaignID,
		VendorID:     vendorID,
		InfluencerID: influencerID,
	}, nil
}

type messageModel struct {
	grove.BaseModel `grove:"table:tollgate_messages"`

	ID             string    `grove:"id,pk"`
	ConversationID string    `grove:"conversation_id"`
	SenderID       string    `grove:"sender_id"`
	Text           string    `grove:"text"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toMessageModel(m *conversation.Message) *messageModel {
	return &messageModel{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func fromMessageModel(m *messageModel) (*conversation.Message, error) {
	msgID, err := id.ParseMessageID(m.ID)
	if err != nil {
		return nil, err
	}
	convID, err := id.ParseConversationID(m.ConversationID)
	if err != nil {
		return nil, err
	}
	senderID, err := id.ParseActorID(m.SenderID)
	if err != nil {
		return nil, err
	}

	return &conversation.Message{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             msgID,
		ConversationID: convID,
		SenderID:       senderID,
		Text:           m.Text,
	}, nil
}

// ==================== Wallet models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:tollgate_accounts"`

	ActorID   string    `grove:"actor_id,pk"`
	Balance   int64     `grove:"balance"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toAccountModel(a *wallet.Account) *accountModel {
	return &accountModel{
		ActorID:   a.ActorID.String(),
		Balance:   a.Balance.Int64(),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*wallet.Account, error) {
	actorID, err := id.ParseActorID(m.ActorID)
	if err != nil {
		return nil, err
	}

	return &wallet.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ActorID: actorID,
		Balance: types.TokensOf(m.Balance),
	}, nil
}

// ==================== Charge models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:tollgate_charges"`

	ID           string    `grove:"id,pk"`
	ActorID      string    `grove:"actor_id"`
	Scope        string    `grove:"scope"`
	Reason       string    `grove:"reason"`
	Amount       int64     `grove:"amount"`
	BalanceAfter int64     `grove:"balance_after"`
	CreatedAt    time.Time `grove:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"`
}

func toReceiptModel(r *charge.Receipt) *receiptModel {
	return &receiptModel{
		ID:           r.ID.String(),
		ActorID:      r.ActorID.String(),
		Scope:        r.Scope.String(),
		Reason:       string(r.Reason),
		Amount:       r.Amount.Int64(),
		BalanceAfter: r.BalanceAfter.Int64(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromReceiptModel(m *receiptModel) (*charge.Receipt, error) {
	chargeID, err := id.ParseChargeID(m.ID)
	if err != nil {
		return nil, err
	}
	actorID, err := id.ParseActorID(m.ActorID)
	if err != nil {
		return nil, err
	}
	scope, err := id.Parse(m.Scope)
	if err != nil {
		return nil, err
	}

	return &charge.Receipt{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           chargeID,
		ActorID:      actorID,
		Scope:        scope,
		Reason:       charge.Reason(m.Reason),
		Amount:       types.TokensOf(m.Amount),
		BalanceAfter: types.TokensOf(m.BalanceAfter),
	}, nil
}
