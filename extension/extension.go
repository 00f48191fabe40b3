// Package extension provides the Forge extension adapter for Tollgate.
//
// It implements the forge.Extension interface to integrate Tollgate
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tollgate" or
// "tollgate" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	tollgate "github.com/xraph/tollgate"
	"github.com/xraph/tollgate/policy"
	"github.com/xraph/tollgate/store"
	"github.com/xraph/tollgate/store/memory"
	"github.com/xraph/tollgate/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tollgate"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Token-metered access-control engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Tollgate as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	engine   *tollgate.Gate
	store    store.Store
	gateOpts []tollgate.Option
}

// New creates a new Tollgate Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Gate instance.
// This is nil until Register is called.
func (e *Extension) Engine() *tollgate.Gate { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the gate engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build gate options from resolved config.
	opts := e.buildGateOpts()

	eng := tollgate.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*tollgate.Gate, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tollgate: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tollgate: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildGateOpts constructs tollgate.Option values from the resolved config.
func (e *Extension) buildGateOpts() []tollgate.Option {
	opts := make([]tollgate.Option, 0, len(e.gateOpts)+2)

	opts = append(opts, tollgate.WithPolicy(policy.Policy{
		FreeLimit:   e.config.FreeLimit,
		BlockSize:   e.config.BlockSize,
		BlockCost:   types.TokensOf(e.config.BlockCost),
		ContactCost: types.TokensOf(e.config.ContactCost),
	}))

	if e.config.OpeningBalance > 0 {
		opts = append(opts, tollgate.WithOpeningBalance(types.TokensOf(e.config.OpeningBalance)))
	}

	// Append any pass-through gate options.
	opts = append(opts, e.gateOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tollgate: configuration is required but not found in config files; " +
				"ensure 'extensions.tollgate' or 'tollgate' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tollgate: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("opening_balance", e.config.OpeningBalance),
		forge.F("free_limit", e.config.FreeLimit),
		forge.F("block_size", e.config.BlockSize),
		forge.F("block_cost", e.config.BlockCost),
		forge.F("contact_cost", e.config.ContactCost),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.tollgate" first (namespaced pattern).
	if cm.IsSet("extensions.tollgate") {
		if err := cm.Bind("extensions.tollgate", &cfg); err == nil {
			e.Logger().Debug("tollgate: loaded config from file",
				forge.F("key", "extensions.tollgate"),
			)
			return cfg, true
		}
		e.Logger().Warn("tollgate: failed to bind extensions.tollgate config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "tollgate" key.
	if cm.IsSet("tollgate") {
		if err := cm.Bind("tollgate", &cfg); err == nil {
			e.Logger().Debug("tollgate: loaded config from file",
				forge.F("key", "tollgate"),
			)
			return cfg, true
		}
		e.Logger().Warn("tollgate: failed to bind tollgate config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.OpeningBalance == 0 {
		cfg.OpeningBalance = defaults.OpeningBalance
	}
	if cfg.FreeLimit == 0 {
		cfg.FreeLimit = defaults.FreeLimit
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = defaults.BlockSize
	}
	if cfg.BlockCost == 0 {
		cfg.BlockCost = defaults.BlockCost
	}
	if cfg.ContactCost == 0 {
		cfg.ContactCost = defaults.ContactCost
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.OpeningBalance == 0 && programmaticConfig.OpeningBalance != 0 {
		yamlConfig.OpeningBalance = programmaticConfig.OpeningBalance
	}
	if yamlConfig.FreeLimit == 0 && programmaticConfig.FreeLimit != 0 {
		yamlConfig.FreeLimit = programmaticConfig.FreeLimit
	}
	if yamlConfig.BlockSize == 0 && programmaticConfig.BlockSize != 0 {
		yamlConfig.BlockSize = programmaticConfig.BlockSize
	}
	if yamlConfig.BlockCost == 0 && programmaticConfig.BlockCost != 0 {
		yamlConfig.BlockCost = programmaticConfig.BlockCost
	}
	if yamlConfig.ContactCost == 0 && programmaticConfig.ContactCost != 0 {
		yamlConfig.ContactCost = programmaticConfig.ContactCost
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
