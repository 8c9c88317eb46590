package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/invoicegen/platform/internal/domain/invoices"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `plain`, stripFences("  plain \n"))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":{"b":2}}`, extractJSON(`Sure! {"a":{"b":2}} hope that helps`, '{', '}'))
	assert.Equal(t, `["x","y"]`, extractJSON("```\n[\"x\",\"y\"]\n```", '[', ']'))
	assert.Equal(t, `nothing`, extractJSON("nothing", '{', '}'))
}

func TestParseInsights(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseInsights(`["a", " ", "b"]`))
	assert.Equal(t, []string{"first", "second", "third"}, parseInsights("1. first\n2) second\n\n* third"))
}

func TestFingerprint(t *testing.T) {
	base := invoices.Summary{TotalInvoices: 2, TotalPaid: 100, LastUpdated: time.Unix(10, 0)}
	same := base
	changed := base
	changed.TotalOutstanding = 5

	assert.Equal(t, fingerprint(base), fingerprint(same))
	assert.NotEqual(t, fingerprint(base), fingerprint(changed))
}
