package policy

import "github.com/xraph/tollgate/types"

// Kind classifies a billing decision.
type Kind string

const (
	// KindFree means the action proceeds with no charge.
	KindFree Kind = "free"
	// KindCharge means a charge must be confirmed before the action proceeds.
	KindCharge Kind = "charge"
)

// Decision is the outcome of evaluating an action against the policy.
// A Decision carries no side effects; executing the charge is the
// coordinator's job.
type Decision struct {
	Kind Kind         `json:"kind"`
	Cost types.Tokens `json:"cost"`
}

// Free reports whether the action requires no charge.
func (d Decision) Free() bool { return d.Kind == KindFree }

// ChargeRequired reports whether a charge must be confirmed first.
func (d Decision) ChargeRequired() bool { return d.Kind == KindCharge }

func free() Decision { return Decision{Kind: KindFree} }

func charge(cost types.Tokens) Decision { return Decision{Kind: KindCharge, Cost: cost} }
