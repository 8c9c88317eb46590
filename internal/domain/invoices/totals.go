package invoices

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Totals is the derived money summary of an invoice.
type Totals struct {
	Subtotal Cents
	TaxTotal Cents
	Total    Cents
}

// Calculate fills in each item's total and sums the invoice amounts. The returned slice is a
// copy; items is left untouched.
func Calculate(items []LineItem) ([]LineItem, Totals) {
	out := make([]LineItem, len(items))
	var t Totals
	for i, item := range items {
		lineTotal := Cents(math.Round(float64(item.UnitPrice) * item.Quantity))
		lineTax := Cents(math.Round(float64(lineTotal) * item.TaxPercent / 100))

		item.Total = lineTotal
		out[i] = item

		t.Subtotal += lineTotal
		t.TaxTotal += lineTax
	}
	t.Total = t.Subtotal + t.TaxTotal
	return out, t
}

func (inv *Invoice) recalculate() {
	items, totals := Calculate(inv.Items)
	inv.Items = items
	inv.Subtotal = totals.Subtotal
	inv.TaxTotal = totals.TaxTotal
	inv.Total = totals.Total
}

var netTermsPattern = regexp.MustCompile(`(?i)^net\s*(\d{1,3})$`)

// termDays extracts N from payment terms of the form "Net N". Terms such as "Due on receipt"
// yield zero days; anything unrecognised reports ok=false.
func termDays(terms string) (days int, ok bool) {
	terms = strings.TrimSpace(terms)
	if strings.EqualFold(terms, "due on receipt") {
		return 0, true
	}
	m := netTermsPattern.FindStringSubmatch(terms)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func dueDateFor(invoiceDate time.Time, terms string) time.Time {
	days, ok := termDays(terms)
	if !ok {
		return invoiceDate
	}
	return invoiceDate.AddDate(0, 0, days)
}
