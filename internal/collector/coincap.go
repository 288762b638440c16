package collector

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CryptoLens/internal/model"

	"github.com/shopspring/decimal"
)

const DefaultCoinCapURL = "https://api.coincap.io/v2"

var coinCapIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binance-coin",
	"XRP":  "xrp",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"SHIB": "shiba-inu",
}

// coinCapPlan is the native interval fetched for a timeframe. When the native
// interval is finer, the bars are resampled up to the timeframe.
type coinCapPlan struct {
	interval string
	step     time.Duration
}

var coinCapPlans = map[model.Timeframe]coinCapPlan{
	model.TF15m: {"m15", 15 * time.Minute},
	model.TF1h:  {"h1", time.Hour},
	model.TF4h:  {"h2", 2 * time.Hour}, // no h4
	model.TF1d:  {"d1", 24 * time.Hour},
	model.TF1w:  {"d1", 24 * time.Hour}, // no weekly interval
}

// CoinCapProvider reads close-only price history from CoinCap.
type CoinCapProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Synth   *Synthesizer
	Now     func() time.Time
}

func NewCoinCapProvider(baseURL, apiKey string, client *http.Client) *CoinCapProvider {
	if baseURL == "" {
		baseURL = DefaultCoinCapURL
	}
	return &CoinCapProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  client,
		Synth:   NewSynthesizer(time.Now().UnixNano()),
		Now:     time.Now,
	}
}

func (p *CoinCapProvider) Name() string { return "coincap" }

type coinCapHistory struct {
	Data []struct {
		PriceUSD decimal.Decimal `json:"priceUsd"`
		Time     int64           `json:"time"`
	} `json:"data"`
}

func (p *CoinCapProvider) Fetch(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error) {
	id, ok := coinCapIDs[pair.Base]
	if !ok || !pair.QuoteIsUSD() {
		return nil, fmt.Errorf("coincap %s: %w", pair, ErrUnsupportedPair)
	}
	plan, ok := coinCapPlans[tf]
	if !ok {
		return nil, fmt.Errorf("coincap: unsupported timeframe %s", tf)
	}

	// One extra bucket so a partial first bucket can be dropped by the trim.
	end := p.Now()
	start := end.Add(-time.Duration(limit+1) * tf.Duration())
	q := url.Values{
		"interval": {plan.interval},
		"start":    {strconv.FormatInt(start.UnixMilli(), 10)},
		"end":      {strconv.FormatInt(end.UnixMilli(), 10)},
	}
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/assets/%s/history?%s", p.BaseURL, id, q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	var hist coinCapHistory
	if err := doJSON(ctx, p.Client, req, &hist); err != nil {
		return nil, fmt.Errorf("coincap fetch: %w", err)
	}
	if len(hist.Data) == 0 {
		return nil, fmt.Errorf("coincap: %w", ErrEmptyPayload)
	}

	bars := make([]model.PriceBar, 0, len(hist.Data))
	for _, pt := range hist.Data {
		price, _ := pt.PriceUSD.Float64()
		if price <= 0 {
			continue
		}
		bars = append(bars, p.Synth.Bar(time.UnixMilli(pt.Time).UTC(), price, 0))
	}

	bars, err = normalize(bars, 0)
	if err != nil {
		return nil, fmt.Errorf("coincap: %w", err)
	}
	if plan.step != tf.Duration() {
		log.Printf("[INFO] coincap: resampling %s bars into %s", plan.interval, tf)
		bars = resample(bars, tf)
	}
	bars, err = normalize(bars, limit)
	if err != nil {
		return nil, fmt.Errorf("coincap: %w", err)
	}
	return &model.PriceSeries{
		Pair:      pair,
		Timeframe: tf,
		Source:    p.Name(),
		FetchedAt: end,
		Bars:      bars,
	}, nil
}
