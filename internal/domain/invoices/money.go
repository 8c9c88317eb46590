package invoices

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cents is a monetary amount in minor units. On the wire it is a decimal number of major units
// so 22000 encodes as 220 and 1250 as 12.5.
type Cents int64

// FromFloat converts major units to Cents, rounding half away from zero.
func FromFloat(v float64) Cents {
	return Cents(math.Round(v * 100))
}

// Float returns the amount in major units.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// String formats the amount with two decimals.
func (c Cents) String() string {
	return strconv.FormatFloat(c.Float(), 'f', 2, 64)
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(c.Float(), 'f', -1, 64)), nil
}

func (c *Cents) UnmarshalJSON(data []byte) error {
	v, ok, err := decodeNumber(data)
	if err != nil || !ok {
		return err
	}
	*c = FromFloat(v)
	return nil
}

// looseFloat is a float64 that also decodes from a numeric string.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	v, ok, err := decodeNumber(data)
	if err != nil || !ok {
		return err
	}
	*f = looseFloat(v)
	return nil
}

// decodeNumber reads a JSON number or a string holding one. ok is false for null.
func decodeNumber(data []byte) (v float64, ok bool, err error) {
	if string(data) == "null" {
		return 0, false, nil
	}
	if err := json.Unmarshal(data, &v); err == nil {
		return v, true, nil
	}
	// Form inputs sometimes post numbers as strings.
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, false, fmt.Errorf("expected a number: %w", err)
	}
	v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, fmt.Errorf("expected a number, got %q", s)
	}
	return v, true, nil
}
