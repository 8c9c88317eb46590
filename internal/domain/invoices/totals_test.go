package invoices

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCalculate(t *testing.T) {
	items := []LineItem{
		{Name: "Design", Quantity: 2, UnitPrice: FromFloat(100), TaxPercent: 10},
		{Name: "Consulting", Quantity: 1.5, UnitPrice: FromFloat(80)},
		{Name: "Rounding", Quantity: 3, UnitPrice: FromFloat(0.33), TaxPercent: 7.5},
	}

	out, totals := Calculate(items)

	if out[0].Total != 20000 || out[1].Total != 12000 || out[2].Total != 99 {
		t.Fatalf("unexpected item totals %d %d %d", out[0].Total, out[1].Total, out[2].Total)
	}
	// 10% of 200.00 plus 7.5% of 0.99 (0.07425 rounds to 0.07).
	if totals.TaxTotal != 2007 {
		t.Fatalf("expected tax 2007 cents, got %d", totals.TaxTotal)
	}
	if totals.Subtotal != 32099 {
		t.Fatalf("expected subtotal 32099 cents, got %d", totals.Subtotal)
	}
	if totals.Total != totals.Subtotal+totals.TaxTotal {
		t.Fatalf("total must equal subtotal plus tax")
	}
	if items[0].Total != 0 {
		t.Fatalf("input slice must not be modified")
	}
}

func TestCalculateEmpty(t *testing.T) {
	out, totals := Calculate(nil)
	if len(out) != 0 || totals != (Totals{}) {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestTermDays(t *testing.T) {
	cases := map[string]struct {
		days int
		ok   bool
	}{
		"Net 15":         {15, true},
		"net30":          {30, true},
		"Due on receipt": {0, true},
		"whenever":       {0, false},
	}
	for terms, want := range cases {
		days, ok := termDays(terms)
		if days != want.days || ok != want.ok {
			t.Errorf("termDays(%q) = %d,%v want %d,%v", terms, days, ok, want.days, want.ok)
		}
	}

	base := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	if got := dueDateFor(base, "Net 15"); !got.Equal(base.AddDate(0, 0, 15)) {
		t.Fatalf("unexpected due date %s", got)
	}
	if got := dueDateFor(base, "custom"); !got.Equal(base) {
		t.Fatalf("unknown terms should keep invoice date, got %s", got)
	}
}

func TestCentsJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Cents `json:"a"`
		B Cents `json:"b"`
	}{A: 22000, B: 1250})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":220,"b":12.5}` {
		t.Fatalf("unexpected json %s", b)
	}

	var v struct {
		A Cents `json:"a"`
		B Cents `json:"b"`
		C Cents `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":19.999,"b":"42.10","c":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != 2000 || v.B != 4210 || v.C != 0 {
		t.Fatalf("unexpected decoded values %+v", v)
	}

	if err := json.Unmarshal([]byte(`{"a":"abc"}`), &v); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}

func TestLineItemJSONAcceptsNumericStrings(t *testing.T) {
	var item LineItem
	if err := json.Unmarshal([]byte(`{"name":"Hours","quantity":"10","unitPrice":"12.50","taxPercent":" 7.5 "}`), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.Quantity != 10 || item.UnitPrice != 1250 || item.TaxPercent != 7.5 {
		t.Fatalf("unexpected item %+v", item)
	}

	if err := json.Unmarshal([]byte(`{"name":"Hours","quantity":1.5,"unitPrice":100,"taxPercent":null}`), &item); err != nil {
		t.Fatalf("unmarshal numbers: %v", err)
	}
	if item.Quantity != 1.5 || item.UnitPrice != 10000 {
		t.Fatalf("unexpected item %+v", item)
	}

	if err := json.Unmarshal([]byte(`{"name":"Hours","quantity":"ten"}`), &item); err == nil {
		t.Fatalf("expected error for non-numeric quantity")
	}
}

func TestCalculateAtBoundsStaysPositive(t *testing.T) {
	items := make([]LineItem, maxItems)
	for i := range items {
		items[i] = LineItem{Name: "max", Quantity: maxQuantity, UnitPrice: maxUnitPrice, TaxPercent: 100}
	}
	_, totals := Calculate(items)

	wantSubtotal := Cents(maxItems) * Cents(maxQuantity) * maxUnitPrice
	if totals.Subtotal != wantSubtotal || totals.Total != 2*wantSubtotal {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.Total <= 0 {
		t.Fatalf("total wrapped: %d", totals.Total)
	}
}
