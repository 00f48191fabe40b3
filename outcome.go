package tollgate

import (
	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/conversation"
	"github.com/xraph/tollgate/policy"
	"github.com/xraph/tollgate/types"
)

// State is a phase of the gate's evaluation machine. Each evaluation walks
// Idle → Evaluating → {Charging → Charged | Blocked} → Proceeding → Idle,
// and the visited phases are recorded on the Outcome.
type State string

const (
	StateIdle       State = "idle"
	StateEvaluating State = "evaluating"
	StateCharging   State = "charging"
	StateCharged    State = "charged"
	StateBlocked    State = "blocked"
	StateProceeding State = "proceeding"
)

// Status is the terminal result of an evaluation.
type Status string

const (
	// StatusProceeded means the action was allowed and performed.
	StatusProceeded Status = "proceeded"

	// StatusBlocked means the action was refused for lack of tokens.
	// Nothing was charged and no counters moved.
	StatusBlocked Status = "blocked"
)

// Outcome is the final result of a gate evaluation. It is complete on
// return: either the action happened (Proceeded with Message or
// Conversation populated) or it was blocked with the shortfall detail.
type Outcome struct {
	Status   Status          `json:"status"`
	Decision policy.Decision `json:"decision"`

	// Path records the machine states the evaluation passed through.
	Path []State `json:"path"`

	// Receipt is set when a charge was confirmed during this evaluation.
	Receipt *charge.Receipt `json:"receipt,omitempty"`

	// Message is set by EvaluateSend when the message was posted.
	Message *conversation.Message `json:"message,omitempty"`

	// Conversation is the conversation the evaluation acted on.
	Conversation *conversation.Conversation `json:"conversation,omitempty"`

	// Shortfall is how many tokens were missing when Status is blocked.
	Shortfall types.Tokens `json:"shortfall,omitempty"`
}

// Proceeded reports whether the action was allowed and performed.
func (o *Outcome) Proceeded() bool { return o.Status == StatusProceeded }

// Blocked reports whether the action was refused for lack of tokens.
func (o *Outcome) Blocked() bool { return o.Status == StatusBlocked }

// Charged reports whether this evaluation confirmed a charge.
func (o *Outcome) Charged() bool { return o.Receipt != nil }

func (o *Outcome) push(s State) {
	o.Path = append(o.Path, s)
}
