// Package plugin provides an extensible plugin system for Tollgate.
// Plugins can hook into gate and charge lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, gate interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Conversation hooks
// ──────────────────────────────────────────────────

// OnConversationOpened is called when a conversation is created for the
// first time. It is not called when an existing conversation is reopened.
type OnConversationOpened interface {
	Plugin
	OnConversationOpened(ctx context.Context, conv interface{}) error
}

// OnMessagePosted is called after a message has been appended to a
// conversation. The meter has already been advanced by the time it fires.
type OnMessagePosted interface {
	Plugin
	OnMessagePosted(ctx context.Context, msg interface{}) error
}

// ──────────────────────────────────────────────────
// Charge hooks
// ──────────────────────────────────────────────────

// OnChargeRecorded is called when a charge has been deducted from the
// wallet and journaled.
type OnChargeRecorded interface {
	Plugin
	OnChargeRecorded(ctx context.Context, receipt interface{}) error
}

// OnContactCharged is called when an actor pays the contact fee for a
// campaign. It fires at most once per (actor, campaign) pair.
type OnContactCharged interface {
	Plugin
	OnContactCharged(ctx context.Context, actorID, campaignID string, amount int64) error
}

// OnBlockCommitted is called when a paid message block is committed to an
// actor's meter after a successful block charge.
type OnBlockCommitted interface {
	Plugin
	OnBlockCommitted(ctx context.Context, actorID, conversationID string, paidBlocks, amount int64) error
}

// OnInsufficientTokens is called when a charge is refused because the
// actor's balance cannot cover it.
type OnInsufficientTokens interface {
	Plugin
	OnInsufficientTokens(ctx context.Context, actorID, scope string, required int64) error
}

// ──────────────────────────────────────────────────
// Gate hooks
// ──────────────────────────────────────────────────

// OnEvaluated is called after every gate evaluation with the final outcome,
// whether the action proceeded or was blocked.
type OnEvaluated interface {
	Plugin
	OnEvaluated(ctx context.Context, outcome interface{}) error
}

// OnReconciled is called when a meter's sent count is corrected against the
// authoritative message history. It only fires when the count actually drifted.
type OnReconciled interface {
	Plugin
	OnReconciled(ctx context.Context, actorID, conversationID string, before, after int64) error
}
