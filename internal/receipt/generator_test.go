package receipt

import (
	"reflect"
	"testing"
	"time"

	"parcelhub-sync-agent/internal/model"
)

var testPayload = model.ShipmentPayload{
	SenderName:    "Asha Mrema",
	SenderPhone:   "+255700000001",
	ReceiverName:  "Juma Kessy",
	ReceiverPhone: "+255700000002",
	Destination:   "Arusha",
	Route:         "DAR-ARK",
	Vehicle:       "T 123 ABC",
	Size:          "normal",
	PaymentMethod: "cash",
	Amount:        15000,
}

var testContext = Context{
	LocalID:     "offline_1700000000000_ab12cd",
	ServedBy:    "agent01",
	CompanyName: "ParcelHub",
	OfficeName:  "Dar es Salaam HQ",
	CreatedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
}

func TestGenerateIsDeterministic(t *testing.T) {
	first := Generate(testPayload, testContext, nil)
	second := Generate(testPayload, testContext, nil)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("same payload and context produced different receipts")
	}
}

func TestReceiptNumberDerivation(t *testing.T) {
	tests := []struct {
		localID string
		want    string
	}{
		{"offline_1700000000000_ab12cd", "0_AB12CD"},
		{"short", "SHORT"},
	}
	for _, tt := range tests {
		if got := ReceiptNumber(tt.localID); got != tt.want {
			t.Errorf("ReceiptNumber(%q) = %q, want %q", tt.localID, got, tt.want)
		}
	}
}

func TestPackageTokenDerivation(t *testing.T) {
	if got := PackageToken("offline_1700000000000_ab12cd"); got != "AB12CD" {
		t.Fatalf("PackageToken = %q, want AB12CD", got)
	}
}

func TestDefaultLayoutContent(t *testing.T) {
	lines := Generate(testPayload, testContext, nil)

	if len(lines) == 0 {
		t.Fatal("no lines rendered")
	}
	if lines[0].Text != "ParcelHub" || lines[0].Size != SizeBig || !lines[0].Bold {
		t.Fatalf("unexpected header line: %+v", lines[0])
	}

	byPrefix := map[string]Line{}
	for _, l := range lines {
		if l.Prefix != "" {
			byPrefix[l.Prefix] = l
		}
	}
	if got := byPrefix["Date: "].Text; got != "14/03/2026 09:30" {
		t.Fatalf("date line = %q", got)
	}
	if got := byPrefix["Receipt No: "].Text; got != "0_AB12CD" {
		t.Fatalf("receipt number line = %q", got)
	}
	if got := byPrefix["Token: "].Text; got != "AB12CD" {
		t.Fatalf("token line = %q", got)
	}
	if got := byPrefix["Amount: "].Text; got != "15000" {
		t.Fatalf("amount line = %q", got)
	}
	if got := byPrefix["Vehicle: "].Text; got != "T 123 ABC" {
		t.Fatalf("vehicle line = %q", got)
	}
}

func TestDefaultLayoutOmitsEmptyOptionalLines(t *testing.T) {
	p := testPayload
	p.Vehicle = ""
	p.PaymentMethod = ""

	lines := Generate(p, testContext, nil)
	for _, l := range lines {
		if l.Prefix == "Vehicle: " || l.Prefix == "Paid via: " {
			t.Fatalf("optional line rendered for empty field: %+v", l)
		}
	}
}

func TestTemplateLayoutDrivesRendering(t *testing.T) {
	tpl := &Template{Lines: []TemplateLine{
		{Literal: "*** KARIBU ***", Size: SizeBig, Bold: true},
		{Var: "receiver_name", Prefix: "Kwa: "},
		{Var: "amount", Size: SizeBig},
		{Var: "no_such_var"},
	}}

	lines := Generate(testPayload, testContext, tpl)
	if len(lines) != 4 {
		t.Fatalf("expected 4 template lines, got %d", len(lines))
	}
	if lines[0].Text != "*** KARIBU ***" || !lines[0].Bold {
		t.Fatalf("literal line mismatch: %+v", lines[0])
	}
	if lines[1].Text != "Juma Kessy" || lines[1].Prefix != "Kwa: " {
		t.Fatalf("variable line mismatch: %+v", lines[1])
	}
	// Unset size defaults to normal.
	if lines[1].Size != SizeNormal {
		t.Fatalf("expected default size, got %s", lines[1].Size)
	}
	// Unknown variables render empty, never error.
	if lines[3].Text != "" {
		t.Fatalf("unknown var rendered %q", lines[3].Text)
	}
}

func TestEmptyTemplateFallsBackToDefault(t *testing.T) {
	withNil := Generate(testPayload, testContext, nil)
	withEmpty := Generate(testPayload, testContext, &Template{})

	if !reflect.DeepEqual(withNil, withEmpty) {
		t.Fatal("empty template should render the default layout")
	}
}
