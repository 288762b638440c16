package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"CryptoLens/internal/model"
)

const (
	DefaultTimeframe = model.TF1h
	DefaultLimit     = 100
	MaxLimit         = 1000
	DefaultHistory   = 20
	MaxHistory       = 500
)

// Validator checks query parameters before they reach the pipeline.
type Validator struct {
	supported map[string]bool
}

// NewValidator accepts the supported bases quoted in a USD stablecoin.
func NewValidator() *Validator {
	v := &Validator{supported: map[string]bool{}}
	for _, p := range model.SupportedPairs() {
		v.supported[p.Base] = true
	}
	return v
}

func sanitize(input string) string {
	input = strings.TrimSpace(input)
	input = strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		return r
	}, input)
	if len(input) > 32 {
		input = input[:32]
	}
	return input
}

// ValidatePair parses and checks a pair such as BTC/USDT or btc-usdt.
func (v *Validator) ValidatePair(raw string) (model.AssetPair, error) {
	raw = sanitize(raw)
	if raw == "" {
		return model.AssetPair{}, errors.New("pair parameter is required")
	}
	pair, err := model.ParsePair(raw)
	if err != nil {
		return model.AssetPair{}, err
	}
	if !v.supported[pair.Base] {
		return model.AssetPair{}, fmt.Errorf("unsupported asset %q", pair.Base)
	}
	if !pair.QuoteIsUSD() {
		return model.AssetPair{}, fmt.Errorf("unsupported quote %q: want a USD stablecoin", pair.Quote)
	}
	return pair, nil
}

// ValidateTimeframe defaults to DefaultTimeframe when raw is empty.
func (v *Validator) ValidateTimeframe(raw string) (model.Timeframe, error) {
	raw = sanitize(raw)
	if raw == "" {
		return DefaultTimeframe, nil
	}
	return model.ParseTimeframe(raw)
}

// ValidateLimit parses limit within [1, max], defaulting to def.
func (v *Validator) ValidateLimit(raw string, def, max int) (int, error) {
	raw = sanitize(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer, got %q", raw)
	}
	if n < 1 || n > max {
		return 0, fmt.Errorf("limit must be between 1 and %d, got %d", max, n)
	}
	return n, nil
}

// ValidateSeriesRequest validates the common pair/timeframe/limit triple.
func (v *Validator) ValidateSeriesRequest(pairRaw, tfRaw, limitRaw string) (model.AssetPair, model.Timeframe, int, error) {
	pair, err := v.ValidatePair(pairRaw)
	if err != nil {
		return model.AssetPair{}, "", 0, err
	}
	tf, err := v.ValidateTimeframe(tfRaw)
	if err != nil {
		return model.AssetPair{}, "", 0, err
	}
	limit, err := v.ValidateLimit(limitRaw, DefaultLimit, MaxLimit)
	if err != nil {
		return model.AssetPair{}, "", 0, err
	}
	return pair, tf, limit, nil
}
