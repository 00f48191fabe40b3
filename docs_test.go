package tollgate_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/xraph/tollgate"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/session"
	"github.com/xraph/tollgate/store/memory"
	"github.com/xraph/tollgate/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the gate
		g := tollgate.New(store,
			tollgate.WithLogger(slog.Default()),
		)

		// Start the engine
		ctx := context.Background()
		if err := g.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer g.Stop()

		// Enroll an influencer and a vendor
		influencerID := id.NewActorID()
		vendorID := id.NewActorID()
		campaignID := id.NewCampaignID()

		account, err := g.Enroll(ctx, influencerID)
		if err != nil {
			t.Fatal(err)
		}
		if account.Balance != types.TokensOf(200) {
			t.Errorf("opening balance = %v, want 200", account.Balance)
		}
		if _, err := g.Enroll(ctx, vendorID); err != nil {
			t.Fatal(err)
		}

		// Log both actors in
		sessions := session.NewManager()
		influencer, err := sessions.Login(influencerID, session.RoleInfluencer)
		if err != nil {
			t.Fatal(err)
		}
		vendor, err := sessions.Login(vendorID, session.RoleVendor)
		if err != nil {
			t.Fatal(err)
		}

		// First contact costs the contact fee and opens the conversation
		out, err := g.EvaluateContact(ctx, influencer, campaignID, vendorID)
		if err != nil {
			t.Fatal(err)
		}
		if !out.Proceeded() || out.Conversation == nil {
			t.Fatalf("contact did not proceed: %+v", out)
		}
		if !out.Charged() {
			t.Error("first contact should be charged")
		}
		convID := out.Conversation.ID

		// Messages inside the free allowance cost nothing
		out, err = g.EvaluateSend(ctx, influencer, convID, "hi, love the campaign brief")
		if err != nil {
			t.Fatal(err)
		}
		if !out.Proceeded() || out.Charged() {
			t.Errorf("first message should be free, got %+v", out)
		}

		// Vendor replies are always free
		out, err = g.EvaluateSend(ctx, vendor, convID, "thanks, let's talk rates")
		if err != nil {
			t.Fatal(err)
		}
		if !out.Proceeded() || out.Charged() {
			t.Errorf("vendor reply should be free, got %+v", out)
		}

		// Balance reflects only the contact fee so far
		balance, err := g.Balance(ctx, influencerID)
		if err != nil {
			t.Fatal(err)
		}
		want := types.TokensOf(200).Subtract(g.Policy().ContactCost)
		if balance != want {
			t.Errorf("balance = %v, want %v", balance, want)
		}
	})

	// Test the policy example from the package docs
	t.Run("PolicyExample", func(t *testing.T) {
		store := memory.New()
		g := tollgate.New(store)
		ctx := context.Background()
		if err := g.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer g.Stop()

		p := g.Policy()
		if p.FreeLimit != 5 || p.BlockSize != 3 {
			t.Errorf("default policy = %+v", p)
		}

		// Past the free allowance, every BlockSize-th message buys a block
		for sent, wantBlocks := range map[int64]int64{0: 0, 5: 0, 6: 1, 8: 1, 9: 2} {
			if got := p.RequiredBlocks(sent); got != wantBlocks {
				t.Errorf("RequiredBlocks(%d) = %d, want %d", sent, got, wantBlocks)
			}
		}
	})
}

// ExampleGate_EvaluateSend demonstrates the send evaluation flow.
func ExampleGate_EvaluateSend() {
	store := memory.New()
	g := tollgate.New(store)
	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		panic(err)
	}
	defer g.Stop()

	influencerID := id.NewActorID()
	vendorID := id.NewActorID()
	if _, err := g.Enroll(ctx, influencerID); err != nil {
		panic(err)
	}

	sessions := session.NewManager()
	sess, _ := sessions.Login(influencerID, session.RoleInfluencer)

	out, err := g.EvaluateContact(ctx, sess, id.NewCampaignID(), vendorID)
	if err != nil {
		panic(err)
	}

	out, err = g.EvaluateSend(ctx, sess, out.Conversation.ID, "hello")
	if err != nil {
		panic(err)
	}
	fmt.Println(out.Status)
	// Output: proceeded
}
