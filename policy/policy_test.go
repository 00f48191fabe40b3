package policy

import (
	"testing"

	"github.com/xraph/tollgate/types"
)

func TestRequiredBlocks(t *testing.T) {
	p := Default() // FreeLimit=5, BlockSize=3

	tests := []struct {
		sent int64
		want int64
	}{
		{0, 0},
		{3, 0},
		{5, 0},
		{6, 1}, // first chargeable message opens the first block
		{7, 1},
		{8, 1},
		{9, 2},
		{10, 2},
		{11, 2},
		{14, 3},
	}

	for _, tt := range tests {
		if got := p.RequiredBlocks(tt.sent); got != tt.want {
			t.Errorf("RequiredBlocks(%d): got %d, want %d", tt.sent, got, tt.want)
		}
	}
}

// TestMessageBoundary walks a full send sequence and checks where charges
// fall: messages 1-5 free, 6 charged, 7-8 free, 9 charged, 10-11 free, 12 charged.
func TestMessageBoundary(t *testing.T) {
	p := Default()

	var paidBlocks int64
	var charges []int64

	for msg := int64(1); msg <= 12; msg++ {
		sentBefore := msg - 1
		d := p.ForMessage(sentBefore, paidBlocks)
		if d.ChargeRequired() {
			if d.Cost != p.BlockCost {
				t.Errorf("message %d: charge cost %s, want %s", msg, d.Cost, p.BlockCost)
			}
			charges = append(charges, msg)
			paidBlocks++ // simulate confirmed charge
		}
	}

	want := []int64{6, 9, 12}
	if len(charges) != len(want) {
		t.Fatalf("charged at messages %v, want %v", charges, want)
	}
	for i := range want {
		if charges[i] != want[i] {
			t.Fatalf("charged at messages %v, want %v", charges, want)
		}
	}

	// Total charges must equal RequiredBlocks of the final count.
	if got := p.RequiredBlocks(12); got != int64(len(charges)) {
		t.Errorf("RequiredBlocks(12)=%d but %d charges were issued", got, len(charges))
	}
}

func TestForMessageAlreadyPaidBlock(t *testing.T) {
	p := Default()

	// Block for messages 6-8 already purchased: message 6 retry is free.
	d := p.ForMessage(5, 1)
	if !d.Free() {
		t.Errorf("expected free retry when block already paid, got %+v", d)
	}
}

func TestForContact(t *testing.T) {
	p := Default()

	d := p.ForContact(false)
	if !d.ChargeRequired() || d.Cost != p.ContactCost {
		t.Errorf("fresh contact: got %+v, want charge of %s", d, p.ContactCost)
	}

	d = p.ForContact(true)
	if !d.Free() {
		t.Errorf("repeat contact: got %+v, want free", d)
	}
}

func TestFreeRemaining(t *testing.T) {
	p := Default()

	tests := []struct {
		sent int64
		want int64
	}{
		{0, 5},
		{4, 1},
		{5, 0},
		{9, 0},
	}

	for _, tt := range tests {
		if got := p.FreeRemaining(tt.sent); got != tt.want {
			t.Errorf("FreeRemaining(%d): got %d, want %d", tt.sent, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Policy
		wantErr bool
	}{
		{"default", Default(), false},
		{"zero block size", Policy{FreeLimit: 5, BlockSize: 0, BlockCost: 5, ContactCost: 50}, true},
		{"negative free limit", Policy{FreeLimit: -1, BlockSize: 3, BlockCost: 5, ContactCost: 50}, true},
		{"negative block cost", Policy{FreeLimit: 5, BlockSize: 3, BlockCost: types.Tokens(-1), ContactCost: 50}, true},
		{"negative contact cost", Policy{FreeLimit: 5, BlockSize: 3, BlockCost: 5, ContactCost: types.Tokens(-1)}, true},
		{"free marketplace", Policy{FreeLimit: 0, BlockSize: 1, BlockCost: 0, ContactCost: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate: err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}
