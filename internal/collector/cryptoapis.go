package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CryptoLens/internal/model"
)

const DefaultCryptoAPIsURL = "https://rest.cryptoapis.io/v2"

// rateFields are tried in order when reading a rate from data.item.
var rateFields = []string{"rate", "price", "value", "lastRate"}

// BackupPrices is the last-resort USD price table used when enabled.
var BackupPrices = map[string]float64{
	"BTC":  67000,
	"ETH":  3200,
	"SOL":  165,
	"BNB":  560,
	"XRP":  0.61,
	"ADA":  0.45,
	"DOGE": 0.15,
	"SHIB": 0.000027,
}

var cryptoAPIsAssetIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
	"USDC": "usd-coin",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "xrp",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"SHIB": "shiba-inu",
}

// CryptoAPIsProvider is the primary provider. The API only exposes a spot
// exchange rate, so the series is synthesized around it.
type CryptoAPIsProvider struct {
	BaseURL       string
	APIKey        string
	UseBackupRate bool
	Client        *http.Client
	Synth         *Synthesizer
	Now           func() time.Time
}

func NewCryptoAPIsProvider(baseURL, apiKey string, useBackup bool, client *http.Client) *CryptoAPIsProvider {
	if baseURL == "" {
		baseURL = DefaultCryptoAPIsURL
	}
	return &CryptoAPIsProvider{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		APIKey:        apiKey,
		UseBackupRate: useBackup,
		Client:        client,
		Synth:         NewSynthesizer(time.Now().UnixNano()),
		Now:           time.Now,
	}
}

func (p *CryptoAPIsProvider) Name() string { return "cryptoapis" }

type cryptoAPIsResponse struct {
	Data struct {
		Item map[string]json.RawMessage `json:"item"`
	} `json:"data"`
}

func (p *CryptoAPIsProvider) Fetch(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error) {
	if p.APIKey == "" && !p.UseBackupRate {
		return nil, fmt.Errorf("cryptoapis: %w", ErrNotConfigured)
	}
	source := p.Name()
	rate, err := p.rate(ctx, pair)
	if err != nil {
		backup, ok := BackupPrices[pair.Base]
		if !p.UseBackupRate || !ok || !pair.QuoteIsUSD() {
			return nil, fmt.Errorf("cryptoapis: %w", err)
		}
		log.Printf("[WARN] cryptoapis: %v, using backup price %s=%g", err, pair.Base, backup)
		rate = backup
		source += " (backup)"
	}

	bars, err := normalize(p.Synth.Series(rate, p.Now(), tf, limit), limit)
	if err != nil {
		return nil, fmt.Errorf("cryptoapis: %w", err)
	}
	return &model.PriceSeries{
		Pair:      pair,
		Timeframe: tf,
		Source:    source,
		FetchedAt: p.Now(),
		Bars:      bars,
	}, nil
}

// rate tries the three rate endpoints in order.
func (p *CryptoAPIsProvider) rate(ctx context.Context, pair model.AssetPair) (float64, error) {
	if p.APIKey == "" {
		return 0, ErrNotConfigured
	}

	q := url.Values{"context": {"cryptolens"}, "assetPairFrom": {pair.Base}, "assetPairTo": {pair.Quote}}
	r1, err1 := p.itemRate(ctx, "/market-data/exchange-rates/by-asset-symbols?"+q.Encode())
	if err1 == nil {
		return r1, nil
	}

	q = url.Values{"context": {"cryptolens"}, "assetIdFrom": {assetID(pair.Base)}, "assetIdTo": {assetID(pair.Quote)}}
	r2, err2 := p.itemRate(ctx, "/market-data/exchange-rates/by-assets-ids?"+q.Encode())
	if err2 == nil {
		return r2, nil
	}

	r3, err3 := p.assetPrice(ctx, pair)
	if err3 == nil {
		return r3, nil
	}
	return 0, fmt.Errorf("by-symbols: %v; by-ids: %v; asset: %v", err1, err2, err3)
}

func assetID(symbol string) string {
	if id, ok := cryptoAPIsAssetIDs[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

func (p *CryptoAPIsProvider) itemRate(ctx context.Context, path string) (float64, error) {
	req, err := http.NewRequest(http.MethodGet, p.BaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.APIKey)

	var resp cryptoAPIsResponse
	if err := doJSON(ctx, p.Client, req, &resp); err != nil {
		return 0, err
	}
	rate, _, ok := firstNumber(resp.Data.Item, rateFields...)
	if !ok {
		return 0, fmt.Errorf("no rate field in item (tried %s)", strings.Join(rateFields, ", "))
	}
	return rate, nil
}

// assetPrice reads the USD price of the base asset and converts it into the
// quote asset when the quote is not USD.
func (p *CryptoAPIsProvider) assetPrice(ctx context.Context, pair model.AssetPair) (float64, error) {
	base, err := p.itemRate(ctx, "/market-data/assets/assetSymbol/"+url.PathEscape(pair.Base))
	if err != nil {
		return 0, err
	}
	if pair.QuoteIsUSD() {
		return base, nil
	}
	quote, err := p.itemRate(ctx, "/market-data/assets/assetSymbol/"+url.PathEscape(pair.Quote))
	if err != nil {
		return 0, fmt.Errorf("quote asset: %w", err)
	}
	return base / quote, nil
}
