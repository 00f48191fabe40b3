// Package observability provides a metrics extension for Tollgate that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnConversationOpened = (*MetricsExtension)(nil)
	_ plugin.OnMessagePosted      = (*MetricsExtension)(nil)
	_ plugin.OnChargeRecorded     = (*MetricsExtension)(nil)
	_ plugin.OnContactCharged     = (*MetricsExtension)(nil)
	_ plugin.OnBlockCommitted     = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientTokens = (*MetricsExtension)(nil)
	_ plugin.OnReconciled         = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Tollgate plugin to automatically track gate metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Conversation metrics
	ConversationsOpened Counter
	MessagesPosted      Counter

	// Charge metrics
	ChargesRecorded Counter
	ContactCharges  Counter
	BlocksCommitted Counter
	ChargeAmount    Histogram

	// Block metrics
	ActionsBlocked Counter

	// Reconciliation metrics
	MetersReconciled Counter
	ReconcileDrift   Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Conversation metrics
		ConversationsOpened: factory.Counter("tollgate.conversation.opened"),
		MessagesPosted:      factory.Counter("tollgate.message.posted"),

		// Charge metrics
		ChargesRecorded: factory.Counter("tollgate.charge.recorded"),
		ContactCharges:  factory.Counter("tollgate.charge.contact"),
		BlocksCommitted: factory.Counter("tollgate.charge.blocks"),
		ChargeAmount:    factory.Histogram("tollgate.charge.amount"),

		// Block metrics
		ActionsBlocked: factory.Counter("tollgate.gate.blocked"),

		// Reconciliation metrics
		MetersReconciled: factory.Counter("tollgate.meter.reconciled"),
		ReconcileDrift:   factory.Histogram("tollgate.meter.drift"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Conversation hooks
// ──────────────────────────────────────────────────

// OnConversationOpened implements plugin.OnConversationOpened.
func (m *MetricsExtension) OnConversationOpened(_ context.Context, _ interface{}) error {
	m.ConversationsOpened.Inc()
	return nil
}

// OnMessagePosted implements plugin.OnMessagePosted.
func (m *MetricsExtension) OnMessagePosted(_ context.Context, _ interface{}) error {
	m.MessagesPosted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Charge hooks
// ──────────────────────────────────────────────────

// OnChargeRecorded implements plugin.OnChargeRecorded.
func (m *MetricsExtension) OnChargeRecorded(_ context.Context, receipt interface{}) error {
	m.ChargesRecorded.Inc()
	if r, ok := receipt.(*charge.Receipt); ok {
		m.ChargeAmount.Observe(float64(r.Amount.Int64()))
	}
	return nil
}

// OnContactCharged implements plugin.OnContactCharged.
func (m *MetricsExtension) OnContactCharged(_ context.Context, _, _ string, _ int64) error {
	m.ContactCharges.Inc()
	return nil
}

// OnBlockCommitted implements plugin.OnBlockCommitted.
func (m *MetricsExtension) OnBlockCommitted(_ context.Context, _, _ string, _, _ int64) error {
	m.BlocksCommitted.Inc()
	return nil
}

// OnInsufficientTokens implements plugin.OnInsufficientTokens.
func (m *MetricsExtension) OnInsufficientTokens(_ context.Context, _, _ string, _ int64) error {
	m.ActionsBlocked.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnReconciled implements plugin.OnReconciled.
func (m *MetricsExtension) OnReconciled(_ context.Context, _, _ string, before, after int64) error {
	m.MetersReconciled.Inc()
	drift := after - before
	if drift < 0 {
		drift = -drift
	}
	m.ReconcileDrift.Observe(float64(drift))
	return nil
}
