package collector

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// parseNumber decodes a JSON number or numeric string.
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// firstNumber returns the first candidate field holding a positive number.
func firstNumber(item map[string]json.RawMessage, candidates ...string) (float64, string, bool) {
	for _, key := range candidates {
		if v, ok := parseNumber(item[key]); ok && v > 0 {
			return v, key, true
		}
	}
	return 0, "", false
}

// millisThreshold separates second from millisecond epoch timestamps.
const millisThreshold = 10_000_000_000

func epochTime(v float64) time.Time {
	if v > millisThreshold {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}
