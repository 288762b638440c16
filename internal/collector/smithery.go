package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"CryptoLens/internal/model"
)

const DefaultSmitheryURL = "https://smithery.ai/server/@truss44/mcp-crypto-price/get_crypto_price"

var smitheryIntervals = map[model.Timeframe]string{
	model.TF15m: "15min",
	model.TF1h:  "1h",
	model.TF4h:  "4h",
	model.TF1d:  "1d",
	model.TF1w:  "1w",
}

// SmitheryProvider queries an MCP crypto price tool that returns full OHLCV rows.
type SmitheryProvider struct {
	URL    string
	Client *http.Client
}

func NewSmitheryProvider(endpoint string, client *http.Client) *SmitheryProvider {
	if endpoint == "" {
		endpoint = DefaultSmitheryURL
	}
	return &SmitheryProvider{URL: endpoint, Client: client}
}

func (p *SmitheryProvider) Name() string { return "smithery" }

type smitheryRequest struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
}

var smitheryFields = []string{"timestamp", "open", "high", "low", "close", "volume"}

func (p *SmitheryProvider) Fetch(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error) {
	interval, ok := smitheryIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("smithery: unsupported timeframe %s", tf)
	}
	body, err := json.Marshal(smitheryRequest{Symbol: pair.Symbol(), Interval: interval, Limit: limit})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var raw json.RawMessage
	if err := doJSON(ctx, p.Client, req, &raw); err != nil {
		return nil, fmt.Errorf("smithery fetch: %w", err)
	}
	items, err := smitheryItems(raw)
	if err != nil {
		return nil, fmt.Errorf("smithery: %w", err)
	}

	bars := make([]model.PriceBar, 0, len(items))
	for _, item := range items {
		vals := make([]float64, len(smitheryFields))
		complete := true
		for i, f := range smitheryFields {
			v, ok := parseNumber(item[f])
			if !ok {
				complete = false
				break
			}
			vals[i] = v
		}
		if !complete {
			continue
		}
		bars = append(bars, model.PriceBar{
			Timestamp: epochTime(vals[0]),
			Open:      vals[1],
			High:      vals[2],
			Low:       vals[3],
			Close:     vals[4],
			Volume:    vals[5],
		})
	}

	bars, err = normalize(bars, limit)
	if err != nil {
		return nil, fmt.Errorf("smithery: %w", err)
	}
	return &model.PriceSeries{
		Pair:      pair,
		Timeframe: tf,
		Source:    p.Name(),
		FetchedAt: time.Now(),
		Bars:      bars,
	}, nil
}

// smitheryItems accepts either a bare array or {"data": [...]}.
func smitheryItems(raw json.RawMessage) ([]map[string]json.RawMessage, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Data []map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return wrapped.Data, nil
}
