package collector

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CryptoLens/internal/model"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"SHIB": "shiba-inu",
}

// CoinGecko picks granularity from the requested window: 5-minute points
// up to 1 day, hourly up to 90 days, daily beyond.
const (
	geckoFiveMinuteDays = 1
	geckoHourlyDays     = 90
)

// CoinGeckoProvider reads market_chart closes and volumes from CoinGecko.
type CoinGeckoProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Synth   *Synthesizer
	Now     func() time.Time
}

func NewCoinGeckoProvider(baseURL, apiKey string, client *http.Client) *CoinGeckoProvider {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGeckoProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  client,
		Synth:   NewSynthesizer(time.Now().UnixNano()),
		Now:     time.Now,
	}
}

func (p *CoinGeckoProvider) Name() string { return "coingecko" }

type geckoChart struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// geckoPlan returns the days parameter and the native step it yields.
func geckoPlan(tf model.Timeframe, limit int) (days int, step time.Duration) {
	window := time.Duration(limit+1) * tf.Duration()
	days = int(math.Ceil(window.Hours() / 24))
	if days < 1 {
		days = 1
	}
	switch {
	case tf == model.TF15m && days <= geckoFiveMinuteDays:
		return days, 5 * time.Minute
	case tf.Duration() < 24*time.Hour && days <= geckoHourlyDays:
		// Below 2 days the API answers with 5-minute points.
		if days < 2 {
			days = 2
		}
		return days, time.Hour
	}
	return days, 24 * time.Hour
}

func (p *CoinGeckoProvider) Fetch(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error) {
	id, ok := coinGeckoIDs[pair.Base]
	if !ok {
		return nil, fmt.Errorf("coingecko %s: %w", pair, ErrUnsupportedPair)
	}
	vs := strings.ToLower(pair.Quote)
	if pair.QuoteIsUSD() {
		vs = "usd"
	}

	days, step := geckoPlan(tf, limit)
	if step > tf.Duration() {
		log.Printf("[WARN] coingecko: %s window of %d days only available at %s granularity", tf, days, step)
	}
	q := url.Values{"vs_currency": {vs}, "days": {strconv.Itoa(days)}}
	if step == 24*time.Hour {
		q.Set("interval", "daily")
	}
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/coins/%s/market_chart?%s", p.BaseURL, id, q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if p.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", p.APIKey)
	}

	var chart geckoChart
	if err := doJSON(ctx, p.Client, req, &chart); err != nil {
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}
	if len(chart.Prices) == 0 {
		return nil, fmt.Errorf("coingecko: %w", ErrEmptyPayload)
	}

	bars := make([]model.PriceBar, 0, len(chart.Prices))
	for i, pt := range chart.Prices {
		var volume float64
		if i < len(chart.TotalVolumes) {
			volume = chart.TotalVolumes[i][1]
		}
		bars = append(bars, p.Synth.Bar(epochTime(pt[0]), pt[1], volume))
	}

	bars, err = normalize(bars, 0)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	if step < tf.Duration() {
		bars = resample(bars, tf)
	}
	bars, err = normalize(bars, limit)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	return &model.PriceSeries{
		Pair:      pair,
		Timeframe: tf,
		Source:    p.Name(),
		FetchedAt: p.Now(),
		Bars:      bars,
	}, nil
}
