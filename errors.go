package tollgate

import (
	"errors"
	"fmt"

	"github.com/xraph/tollgate/charge"
	"github.com/xraph/tollgate/wallet"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tollgate: not found")
	ErrAlreadyExists = errors.New("tollgate: already exists")
	ErrInvalidInput  = errors.New("tollgate: invalid input")

	// Gate errors
	ErrEvaluationInFlight = errors.New("tollgate: evaluation already in flight for this key")
	ErrNotParticipant     = errors.New("tollgate: actor is not a party to this conversation")
	ErrSendFailed         = errors.New("tollgate: message send failed after charge; manual retry is free")

	// Conversation errors
	ErrConversationNotFound = errors.New("tollgate: conversation not found")
	ErrMessageNotFound      = errors.New("tollgate: message not found")

	// Meter errors
	ErrMeterConflict = errors.New("tollgate: concurrent meter update lost; re-read and retry")

	// Store errors
	ErrStoreNotReady     = errors.New("tollgate: store not ready")
	ErrStoreClosed       = errors.New("tollgate: store is closed")
	ErrTransactionFailed = errors.New("tollgate: transaction failed")
	ErrMigrationFailed   = errors.New("tollgate: migration failed")
)

// Ledger and coordinator sentinels, re-exported from their owning packages
// so callers can classify every engine error through this package.
var (
	ErrInsufficientTokens = wallet.ErrInsufficientTokens
	ErrLedgerUnavailable  = wallet.ErrLedgerUnavailable
	ErrAccountNotFound    = wallet.ErrAccountNotFound
	ErrChargeInFlight     = charge.ErrChargeInFlight
	ErrInvalidAmount      = charge.ErrInvalidAmount
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tollgate: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsInsufficient returns true if the error means the actor cannot afford
// the charge. User-recoverable: block the action and offer a top-up.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientTokens)
}

// IsInFlight returns true if the error means a duplicate trigger was
// structurally suppressed rather than billed twice.
func IsInFlight(err error) bool {
	return errors.Is(err, ErrChargeInFlight) ||
		errors.Is(err, ErrEvaluationInFlight)
}

// IsRetryable returns true if the error is temporary and the same billing
// event can be retried safely (nothing was committed).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable) ||
		errors.Is(err, ErrMeterConflict) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
