package extension

import (
	"github.com/xraph/grove"

	tollgate "github.com/xraph/tollgate"
	"github.com/xraph/tollgate/plugin"
	"github.com/xraph/tollgate/store"
	"github.com/xraph/tollgate/store/postgres"
	"github.com/xraph/tollgate/store/sqlite"
)

// Option configures the Tollgate Forge extension.
type Option func(*Extension)

// WithStore sets the store for the gate engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithSQLite sets the store to a SQLite backend over the given grove DB.
func WithSQLite(db *grove.DB) Option {
	return func(e *Extension) {
		e.store = sqlite.New(db)
	}
}

// WithPostgres sets the store to a PostgreSQL backend over the given grove DB.
func WithPostgres(db *grove.DB) Option {
	return func(e *Extension) {
		e.store = postgres.New(db)
	}
}

// WithGateOption passes a tollgate.Option through to the underlying engine.
func WithGateOption(opt tollgate.Option) Option {
	return func(e *Extension) {
		e.gateOpts = append(e.gateOpts, opt)
	}
}

// WithPlugin registers a tollgate plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.gateOpts = append(e.gateOpts, tollgate.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithOpeningBalance sets the token balance granted at enrollment.
func WithOpeningBalance(tokens int64) Option {
	return func(e *Extension) { e.config.OpeningBalance = tokens }
}
