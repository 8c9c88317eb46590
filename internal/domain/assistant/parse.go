package assistant

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/invoicegen/platform/internal/domain/invoices"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// stripFences returns the body of the first markdown code fence, or s trimmed when there is none.
func stripFences(s string) string {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}

// extractJSON narrows model output to the span from the first `first` byte to the last `last` byte.
func extractJSON(s string, first, last byte) string {
	s = stripFences(s)
	start := strings.IndexByte(s, first)
	end := strings.LastIndexByte(s, last)
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

var bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// parseInsights reads a JSON array of strings, falling back to one insight per bullet line.
func parseInsights(out string) []string {
	var list []string
	if err := json.Unmarshal([]byte(extractJSON(out, '[', ']')), &list); err == nil {
		return compact(list)
	}

	var lines []string
	for _, line := range strings.Split(stripFences(out), "\n") {
		line = bulletPattern.ReplaceAllString(line, "")
		lines = append(lines, strings.Trim(line, ` "`))
	}
	return compact(lines)
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// fingerprint changes whenever the figures fed to the insights prompt change.
func fingerprint(sum invoices.Summary) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(sum.TotalInvoices))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(sum.PaidInvoices))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(sum.OverdueInvoices))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(int64(sum.TotalPaid), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(int64(sum.TotalOutstanding), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(sum.LastUpdated.UnixNano(), 10))
	for _, inv := range sum.Recent {
		b.WriteByte('|')
		b.WriteString(inv.ID)
	}
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}
