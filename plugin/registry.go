package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onConversationOpened []OnConversationOpened
	onMessagePosted      []OnMessagePosted
	onChargeRecorded     []OnChargeRecorded
	onContactCharged     []OnContactCharged
	onBlockCommitted     []OnBlockCommitted
	onInsufficientTokens []OnInsufficientTokens
	onEvaluated          []OnEvaluated
	onReconciled         []OnReconciled
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnConversationOpened); ok {
		r.onConversationOpened = append(r.onConversationOpened, v)
	}
	if v, ok := p.(OnMessagePosted); ok {
		r.onMessagePosted = append(r.onMessagePosted, v)
	}
	if v, ok := p.(OnChargeRecorded); ok {
		r.onChargeRecorded = append(r.onChargeRecorded, v)
	}
	if v, ok := p.(OnContactCharged); ok {
		r.onContactCharged = append(r.onContactCharged, v)
	}
	if v, ok := p.(OnBlockCommitted); ok {
		r.onBlockCommitted = append(r.onBlockCommitted, v)
	}
	if v, ok := p.(OnInsufficientTokens); ok {
		r.onInsufficientTokens = append(r.onInsufficientTokens, v)
	}
	if v, ok := p.(OnEvaluated); ok {
		r.onEvaluated = append(r.onEvaluated, v)
	}
	if v, ok := p.(OnReconciled); ok {
		r.onReconciled = append(r.onReconciled, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnConversationOpened)(nil)).Elem(), "OnConversationOpened")
	checkInterface(reflect.TypeOf((*OnMessagePosted)(nil)).Elem(), "OnMessagePosted")
	checkInterface(reflect.TypeOf((*OnChargeRecorded)(nil)).Elem(), "OnChargeRecorded")
	checkInterface(reflect.TypeOf((*OnContactCharged)(nil)).Elem(), "OnContactCharged")
	checkInterface(reflect.TypeOf((*OnBlockCommitted)(nil)).Elem(), "OnBlockCommitted")
	checkInterface(reflect.TypeOf((*OnInsufficientTokens)(nil)).Elem(), "OnInsufficientTokens")
	checkInterface(reflect.TypeOf((*OnEvaluated)(nil)).Elem(), "OnEvaluated")
	checkInterface(reflect.TypeOf((*OnReconciled)(nil)).Elem(), "OnReconciled")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, gate interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, gate)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitConversationOpened calls OnConversationOpened for all plugins that implement it.
func (r *Registry) EmitConversationOpened(ctx context.Context, conv interface{}) {
	r.mu.RLock()
	plugins := r.onConversationOpened
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnConversationOpened(ctx, conv)
		}); err != nil {
			r.logger.Warn("plugin OnConversationOpened failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMessagePosted calls OnMessagePosted for all plugins that implement it.
func (r *Registry) EmitMessagePosted(ctx context.Context, msg interface{}) {
	r.mu.RLock()
	plugins := r.onMessagePosted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMessagePosted(ctx, msg)
		}); err != nil {
			r.logger.Warn("plugin OnMessagePosted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitChargeRecorded calls OnChargeRecorded for all plugins that implement it.
func (r *Registry) EmitChargeRecorded(ctx context.Context, receipt interface{}) {
	r.mu.RLock()
	plugins := r.onChargeRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnChargeRecorded(ctx, receipt)
		}); err != nil {
			r.logger.Warn("plugin OnChargeRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitContactCharged calls OnContactCharged for all plugins that implement it.
func (r *Registry) EmitContactCharged(ctx context.Context, actorID, campaignID string, amount int64) {
	r.mu.RLock()
	plugins := r.onContactCharged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnContactCharged(ctx, actorID, campaignID, amount)
		}); err != nil {
			r.logger.Warn("plugin OnContactCharged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBlockCommitted calls OnBlockCommitted for all plugins that implement it.
func (r *Registry) EmitBlockCommitted(ctx context.Context, actorID, conversationID string, paidBlocks, amount int64) {
	r.mu.RLock()
	plugins := r.onBlockCommitted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBlockCommitted(ctx, actorID, conversationID, paidBlocks, amount)
		}); err != nil {
			r.logger.Warn("plugin OnBlockCommitted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInsufficientTokens calls OnInsufficientTokens for all plugins that implement it.
func (r *Registry) EmitInsufficientTokens(ctx context.Context, actorID, scope string, required int64) {
	r.mu.RLock()
	plugins := r.onInsufficientTokens
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientTokens(ctx, actorID, scope, required)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientTokens failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEvaluated calls OnEvaluated for all plugins that implement it.
func (r *Registry) EmitEvaluated(ctx context.Context, outcome interface{}) {
	r.mu.RLock()
	plugins := r.onEvaluated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEvaluated(ctx, outcome)
		}); err != nil {
			r.logger.Warn("plugin OnEvaluated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReconciled calls OnReconciled for all plugins that implement it.
func (r *Registry) EmitReconciled(ctx context.Context, actorID, conversationID string, before, after int64) {
	r.mu.RLock()
	plugins := r.onReconciled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReconciled(ctx, actorID, conversationID, before, after)
		}); err != nil {
			r.logger.Warn("plugin OnReconciled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the gate pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
