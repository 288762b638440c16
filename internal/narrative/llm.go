package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"CryptoLens/internal/model"
)

// Chat completion defaults.
const (
	DefaultEndpoint    = "https://api.deepseek.com/v1/chat/completions"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 30 * time.Second

	// PromptCloses is how many recent closes go into the prompt.
	PromptCloses = 30
)

// ErrEmptyCompletion is returned when the model answers with no content.
var ErrEmptyCompletion = errors.New("empty completion")

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTP        *http.Client
}

// NewClient fills unset fields with the DeepSeek defaults.
func NewClient(endpoint, apiKey, modelName string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		Model:       modelName,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		HTTP:        &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API status %d: %s", resp.StatusCode, string(raw))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

type promptClose struct {
	Timestamp string  `json:"timestamp"`
	Close     float64 `json:"close"`
}

// BuildPrompt renders the indicator snapshot and the latest closes.
func BuildPrompt(series *model.PriceSeries, r model.IndicatorResult) string {
	closes := []promptClose{}
	var pair, tf string
	if series != nil {
		pair, tf = series.Pair.String(), string(series.Timeframe)
		for _, b := range series.Tail(PromptCloses).Bars {
			closes = append(closes, promptClose{Timestamp: b.Timestamp.UTC().Format("2006-01-02 15:04:05"), Close: b.Close})
		}
	}
	history, _ := json.Marshal(closes)

	var b strings.Builder
	b.WriteString("You are a professional cryptocurrency technical analyst. Analyse the data below.\n\n")
	fmt.Fprintf(&b, "Pair: %s\nTimeframe: %s\n\n", pair, tf)
	b.WriteString("Indicators:\n")
	fmt.Fprintf(&b, "- Price: %s\n", FormatPrice(r.Price))
	fmt.Fprintf(&b, "- Trend: %s (strength %.2f)\n", r.Trend, r.TrendStrength)
	fmt.Fprintf(&b, "- MA20: %s, MA50: %s\n", FormatPrice(r.MA20), FormatPrice(r.MA50))
	fmt.Fprintf(&b, "- Bollinger bands: %s / %s\n", FormatPrice(r.LowerBand), FormatPrice(r.UpperBand))
	fmt.Fprintf(&b, "- RSI(14): %.2f\n", r.RSI)
	fmt.Fprintf(&b, "- Liquidity: %s\n", r.Liquidity)
	fmt.Fprintf(&b, "- Support: %s, resistance: %s\n", FormatPrice(r.NearSupport), FormatPrice(r.NearResistance))
	fmt.Fprintf(&b, "- Rule-based recommendation: %s\n\n", r.Recommendation)
	fmt.Fprintf(&b, "Recent closes:\n%s\n\n", history)
	b.WriteString("Cover market structure, liquidity, key support and resistance, a likely price range and a trading suggestion. Answer in English markdown.")
	return b.String()
}

// Narrator prefers the LLM and falls back to the template.
type Narrator struct {
	LLM Completer // nil disables the LLM

	OnFallback func(err error)
}

// Narrate returns the commentary and whether the template was used.
func (n *Narrator) Narrate(ctx context.Context, series *model.PriceSeries, r model.IndicatorResult) (string, bool) {
	var pair model.AssetPair
	var tf model.Timeframe
	if series != nil {
		pair, tf = series.Pair, series.Timeframe
	}
	template := Format(Build(pair, tf, r))

	if n == nil || n.LLM == nil {
		return template, true
	}
	text, err := n.LLM.Complete(ctx, BuildPrompt(series, r))
	if err != nil {
		log.Printf("[WARN] LLM narrative failed for %s %s, using template: %v", pair, tf, err)
		if n.OnFallback != nil {
			n.OnFallback(err)
		}
		return template, true
	}
	return text, false
}
