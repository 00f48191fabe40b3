package tollgate

import "github.com/xraph/tollgate/types"

// Re-export common types for convenience so users don't have to import types package.

// Tokens is re-exported from types package.
type Tokens = types.Tokens

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Tokens constructors
var (
	TokensOf   = types.TokensOf
	ZeroTokens = types.ZeroTokens
	SumTokens  = types.SumTokens
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
