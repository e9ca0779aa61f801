package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/streams/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"RouteID", id.NewRouteID, "route_"},
		{"InvoiceID", id.NewInvoiceID, "inv_"},
		{"EventID", id.NewEventID, "evt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"RouteID", id.NewRouteID, id.ParseRouteID},
		{"InvoiceID", id.NewInvoiceID, id.ParseInvoiceID},
		{"EventID", id.NewEventID, id.ParseEventID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseRouteID rejects inv_", id.NewInvoiceID().String(), id.ParseRouteID},
		{"ParseInvoiceID rejects evt_", id.NewEventID().String(), id.ParseInvoiceID},
		{"ParseEventID rejects route_", id.NewRouteID().String(), id.ParseEventID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestIs(t *testing.T) {
	r := id.NewRouteID()
	if !r.Is(id.PrefixRoute) {
		t.Error("route ID should report the route prefix")
	}
	if r.Is(id.PrefixInvoice) {
		t.Error("route ID should not report the invoice prefix")
	}
	if id.Nil.Is(id.PrefixRoute) {
		t.Error("nil ID has no prefix")
	}
}

func TestCompare(t *testing.T) {
	a := id.NewRouteID()
	b := id.NewRouteID()
	if a.Compare(b) == 0 || a.Compare(b) != -b.Compare(a) {
		t.Errorf("expected a strict order between %q and %q", a, b)
	}
	if a.Compare(a) != 0 {
		t.Error("an ID must compare equal to itself")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewInvoiceID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !empty.IsNil() {
		t.Error("expected nil after unmarshaling empty text")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewRouteID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}
	if fromBytes.String() != original.String() {
		t.Errorf("mismatch: %q != %q", fromBytes.String(), original.String())
	}

	var scannedNil id.ID
	if err := scannedNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scannedNil.IsNil() {
		t.Error("expected nil after scan of nil")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
