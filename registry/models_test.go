package registry

import (
	"testing"

	"github.com/xraph/streams/id"
)

func TestCompute(t *testing.T) {
	records := []*Record{
		{Network: "neo", DepositAmount: 1200, ClaimedAmount: 200},
		{Network: "neo", DepositAmount: 4975, ClaimedAmount: 4975},
		{Network: "evm", DepositAmount: 999, ClaimedAmount: 0},
	}

	got := Compute("neo", records)
	want := Totals{Network: "neo", NumRoutes: 2, TotalRouted: 6175, CurrentActiveTotal: 1000}
	if got != want {
		t.Errorf("Compute = %+v, want %+v", got, want)
	}

	if empty := Compute("sol", records); empty.NumRoutes != 0 || empty.TotalRouted != 0 {
		t.Errorf("unexpected totals for unknown network: %+v", empty)
	}
}

func TestKindOf(t *testing.T) {
	if k, ok := KindOf(id.NewRouteID()); !ok || k != KindLinear {
		t.Errorf("route ID: got %q, %v", k, ok)
	}
	if k, ok := KindOf(id.NewInvoiceID()); !ok || k != KindInvoice {
		t.Errorf("invoice ID: got %q, %v", k, ok)
	}
	if _, ok := KindOf(id.NewEventID()); ok {
		t.Error("event IDs are not routes")
	}
}
