package extension

// Config holds the Tollgate extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tollgate" or "tollgate" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// OpeningBalance is the token balance granted at enrollment (default: 200).
	OpeningBalance int64 `json:"opening_balance" mapstructure:"opening_balance" yaml:"opening_balance"`

	// FreeLimit is the number of free messages per conversation (default: 5).
	FreeLimit int64 `json:"free_limit" mapstructure:"free_limit" yaml:"free_limit"`

	// BlockSize is the number of messages bought per paid block (default: 3).
	BlockSize int64 `json:"block_size" mapstructure:"block_size" yaml:"block_size"`

	// BlockCost is the token price of one message block (default: 5).
	BlockCost int64 `json:"block_cost" mapstructure:"block_cost" yaml:"block_cost"`

	// ContactCost is the one-time token price of contacting a vendor on a
	// campaign (default: 50).
	ContactCost int64 `json:"contact_cost" mapstructure:"contact_cost" yaml:"contact_cost"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OpeningBalance: 200,
		FreeLimit:      5,
		BlockSize:      3,
		BlockCost:      5,
		ContactCost:    50,
	}
}
