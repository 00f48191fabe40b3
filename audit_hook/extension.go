// Package audithook bridges Tollgate lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnConversationOpened = (*Extension)(nil)
	_ plugin.OnMessagePosted      = (*Extension)(nil)
	_ plugin.OnChargeRecorded     = (*Extension)(nil)
	_ plugin.OnContactCharged     = (*Extension)(nil)
	_ plugin.OnBlockCommitted     = (*Extension)(nil)
	_ plugin.OnInsufficientTokens = (*Extension)(nil)
	_ plugin.OnReconciled         = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Tollgate lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Conversation hooks
// ──────────────────────────────────────────────────

// OnConversationOpened implements plugin.OnConversationOpened.
func (e *Extension) OnConversationOpened(ctx context.Context, conv interface{}) error {
	var resourceID string
	kv := []any{"event", "conversation_opened"}
	if c, ok := conv.(*conversation.Conversation); ok {
		resourceID = c.ID.String()
		kv = append(kv,
			"campaign_id", c.CampaignID.String(),
			"vendor_id", c.VendorID.String(),
			"influencer_id", c.InfluencerID.String(),
		)
	}
	return e.record(ctx, ActionConversationOpened, SeverityInfo, OutcomeSuccess,
		ResourceConversation, resourceID, CategoryMessaging, nil, kv...)
}

// OnMessagePosted implements plugin.OnMessagePosted.
func (e *Extension) OnMessagePosted(ctx context.Context, msg interface{}) error {
	var resourceID string
	kv := []any{"event", "message_posted"}
	if m, ok := msg.(*conversation.Message); ok {
		resourceID = m.ID.String()
		kv = append(kv,
			"conversation_id", m.ConversationID.String(),
			"sender_id", m.SenderID.String(),
		)
	}
	return e.record(ctx, ActionMessagePosted, SeverityInfo, OutcomeSuccess,
		ResourceMessage, resourceID, CategoryMessaging, nil, kv...)
}

// ──────────────────────────────────────────────────
// Charge hooks
// ──────────────────────────────────────────────────

// OnChargeRecorded implements plugin.OnChargeRecorded.
func (e *Extension) OnChargeRecorded(ctx context.Context, receipt interface{}) error {
	var resourceID string
	kv := []any{"event", "charge_recorded"}
	if r, ok := receipt.(*charge.Receipt); ok {
		resourceID = r.ID.String()
		kv = append(kv,
			"actor_id", r.ActorID.String(),
			"scope", r.Scope.String(),
			"reason", string(r.Reason),
			"amount", r.Amount.Int64(),
			"balance_after", r.BalanceAfter.Int64(),
		)
	}
	return e.record(ctx, ActionChargeRecorded, SeverityInfo, OutcomeSuccess,
		ResourceCharge, resourceID, CategoryBilling, nil, kv...)
}

// OnContactCharged implements plugin.OnContactCharged.
func (e *Extension) OnContactCharged(ctx context.Context, actorID, campaignID string, amount int64) error {
	return e.record(ctx, ActionContactCharged, SeverityInfo, OutcomeSuccess,
		ResourceCharge, campaignID, CategoryBilling, nil,
		"actor_id", actorID,
		"campaign_id", campaignID,
		"amount", amount,
	)
}

// OnBlockCommitted implements plugin.OnBlockCommitted.
func (e *Extension) OnBlockCommitted(ctx context.Context, actorID, conversationID string, paidBlocks, amount int64) error {
	return e.record(ctx, ActionBlockCommitted, SeverityInfo, OutcomeSuccess,
		ResourceMeter, conversationID, CategoryBilling, nil,
		"actor_id", actorID,
		"conversation_id", conversationID,
		"paid_blocks", paidBlocks,
		"amount", amount,
	)
}

// OnInsufficientTokens implements plugin.OnInsufficientTokens.
func (e *Extension) OnInsufficientTokens(ctx context.Context, actorID, scope string, required int64) error {
	return e.record(ctx, ActionInsufficientTokens, SeverityWarning, OutcomeFailure,
		ResourceWallet, actorID, CategoryBilling, nil,
		"actor_id", actorID,
		"scope", scope,
		"required", required,
	)
}

// ──────────────────────────────────────────────────
// Meter hooks
// ──────────────────────────────────────────────────

// OnReconciled implements plugin.OnReconciled.
func (e *Extension) OnReconciled(ctx context.Context, actorID, conversationID string, before, after int64) error {
	return e.record(ctx, ActionMeterReconciled, SeverityWarning, OutcomePartial,
		ResourceMeter, conversationID, CategoryMetering, nil,
		"actor_id", actorID,
		"conversation_id", conversationID,
		"recorded", before,
		"authoritative", after,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
