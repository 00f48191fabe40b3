// Package tollgate provides a composable token-metered access-control engine
// for Go applications.
//
// Tollgate is designed as a library, not a service. Import it directly into
// your Go application to gate actions in a two-sided marketplace behind token
// charges. It provides:
//
//   - A pure billing policy: a free message allowance, then paid blocks
//   - Exactly-once charging with an in-flight guard and receipt journal
//   - One-time contact fees per (actor, campaign), idempotent on repeat
//   - Counter reconciliation against the authoritative message history
//   - Pluggable token ledgers and conversation backends
//   - Lifecycle hooks via the plugin registry
//
// # Quick Start
//
// Create a gate instance with your preferred store:
//
//	import (
//	    "github.com/xraph/tollgate"
//	    "github.com/xraph/tollgate/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create gate
//	g := tollgate.New(store)
//
//	// Start the gate (runs migrations, initializes plugins)
//	if err := g.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer g.Stop()
//
// # Core Concepts
//
// Actors enroll once and receive an opening token balance:
//
//	account, err := g.Enroll(ctx, actorID)
//
// Contact is the paid front door. An influencer pays the contact fee once
// per campaign; the conversation opens only after the charge confirms:
//
//	out, err := g.EvaluateContact(ctx, sess, campaignID, vendorID)
//	if out.Proceeded() {
//	    // out.Conversation is open
//	}
//
// Sends are metered. The first messages in a conversation are free; past
// the allowance, each block of further messages costs tokens:
//
//	out, err := g.EvaluateSend(ctx, sess, convID, "hello")
//	switch {
//	case out.Proceeded():
//	    // out.Message was posted; out.Receipt is set if a block was bought
//	case out.Blocked():
//	    // out.Shortfall tokens missing; offer a top-up
//	}
//
// # Billing Guarantees
//
// Every charge resolves exactly once. Duplicate triggers for the same
// billing event are refused structurally (ErrChargeInFlight,
// ErrEvaluationInFlight) rather than billed twice. Transient ledger
// failures commit nothing, so a retry is always safe. Counters only
// advance after the side effect they meter is durable, and the sent count
// is re-derived from the message history before every billing decision.
//
// All token amounts use integer arithmetic. The Tokens type is a whole
// token count; there are no fractional tokens.
//
// # Integration
//
// Tollgate integrates with the Forgery ecosystem:
//
//   - Forge: extension adapter with DI registration and YAML config
//   - Grove: SQLite and PostgreSQL store backends with migrations
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	act_01h2xcejqtf2nbrexx3vqjhp41   // Actor ID
//	conv_01h2xcejqtf2nbrexx3vqjhp41  // Conversation ID
//	chg_01h455vb4pex5vsknk084sn02q   // Charge ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package tollgate
