package audithook

// Action constants for audit events.
const (
	// Conversation actions
	ActionConversationOpened = "conversation.opened"
	ActionMessagePosted      = "message.posted"

	// Charge actions
	ActionChargeRecorded     = "charge.recorded"
	ActionContactCharged     = "charge.contact"
	ActionBlockCommitted     = "charge.block_committed"
	ActionInsufficientTokens = "charge.insufficient"

	// Meter actions
	ActionMeterReconciled = "meter.reconciled"
)

// Resource constants for audit events.
const (
	ResourceConversation = "conversation"
	ResourceMessage      = "message"
	ResourceCharge       = "charge"
	ResourceMeter        = "meter"
	ResourceWallet       = "wallet"
)

// Category constants for audit events.
const (
	CategoryBilling   = "billing"
	CategoryMessaging = "messaging"
	CategoryMetering  = "metering"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
