// Package types provides common types used across Tollgate.
package types

import (
	"database/sql/driver"
	"fmt"
)

// Tokens represents a quantity of the marketplace credit unit.
// All arithmetic is integer-only. Balances are never negative; negative
// values only appear as intermediate results (e.g. a shortfall).
type Tokens int64

// TokensOf converts a raw integer into a Tokens value.
func TokensOf(n int64) Tokens { return Tokens(n) }

// ZeroTokens is the empty balance.
const ZeroTokens Tokens = 0

// Arithmetic operations

// Add returns t + other.
func (t Tokens) Add(other Tokens) Tokens { return t + other }

// Subtract returns t - other. The result may be negative; callers that
// need a balance must check CanAfford first.
func (t Tokens) Subtract(other Tokens) Tokens { return t - other }

// Multiply returns t scaled by qty.
func (t Tokens) Multiply(qty int64) Tokens { return t * Tokens(qty) }

// Comparison methods

// IsZero reports whether the amount is zero.
func (t Tokens) IsZero() bool { return t == 0 }

// IsPositive reports whether the amount is greater than zero.
func (t Tokens) IsPositive() bool { return t > 0 }

// IsNegative reports whether the amount is less than zero.
func (t Tokens) IsNegative() bool { return t < 0 }

// CanAfford reports whether a balance of t covers the given cost.
func (t Tokens) CanAfford(cost Tokens) bool { return t >= cost }

// Shortfall returns how many tokens are missing to cover cost,
// or zero when the balance is sufficient.
func (t Tokens) Shortfall(cost Tokens) Tokens {
	if t >= cost {
		return 0
	}
	return cost - t
}

// Int64 returns the raw integer amount.
func (t Tokens) Int64() int64 { return int64(t) }

// String returns a human-readable representation, e.g. "50 tokens".
func (t Tokens) String() string {
	if t == 1 || t == -1 {
		return fmt.Sprintf("%d token", int64(t))
	}
	return fmt.Sprintf("%d tokens", int64(t))
}

// Value implements driver.Valuer for database storage.
func (t Tokens) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan implements sql.Scanner for database retrieval.
func (t *Tokens) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case int64:
		*t = Tokens(v)
		return nil
	case int:
		*t = Tokens(v)
		return nil
	default:
		return fmt.Errorf("tokens: cannot scan %T into Tokens", src)
	}
}

// SumTokens calculates the sum of multiple Tokens values.
func SumTokens(values ...Tokens) Tokens {
	var total Tokens
	for _, v := range values {
		total += v
	}
	return total
}
