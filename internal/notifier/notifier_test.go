package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoLens/internal/model"
	"CryptoLens/internal/watchlist"
)

var btcUSDT = model.AssetPair{Base: "BTC", Quote: "USDT"}

func newTestNotifier(url string) *TelegramNotifier {
	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = url
	tn.backoff = func(int) time.Duration { return time.Millisecond }
	return tn
}

func TestSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).Send(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendSplitsLongMessages(t *testing.T) {
	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		texts = append(texts, p["text"].(string))
		mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	line := strings.Repeat("x", 99)
	long := strings.TrimSuffix(strings.Repeat(line+"\n", 60), "\n")
	require.NoError(t, newTestNotifier(srv.URL).Send(context.Background(), long))

	require.Len(t, texts, 2)
	for _, txt := range texts {
		assert.LessOrEqual(t, len(txt), MaxMessageLen)
	}
	assert.Equal(t, long, texts[0]+"\n"+texts[1])
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, splitMessage("abcdefghij", 4))
	assert.Equal(t, []string{"ab", "cd"}, splitMessage("ab\ncd", 4))
	// "é" is two bytes and must not be cut in half.
	assert.Equal(t, []string{"aé", "é"}, splitMessage("aéé", 4))
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 3))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendWithRetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
	assert.Contains(t, err.Error(), "status 500")
}

func TestSendWithRetryPermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
	}))
	defer srv.Close()

	err := newTestNotifier(srv.URL).SendWithRetry(context.Background(), "<b>", 3)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Bad Request: can't parse entities", apiErr.Description)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryDelay(t *testing.T) {
	tn := NewTelegramNotifier("TOKEN", "42", "")
	assert.Equal(t, 7*time.Second, tn.retryDelay(0, &APIError{Status: 429, RetryAfter: 7 * time.Second}))
	assert.Equal(t, 4*time.Second, tn.retryDelay(2, &APIError{Status: 500}))
	assert.Equal(t, time.Second, tn.retryDelay(0, errors.New("conn reset")))
}

func TestStartPolling(t *testing.T) {
	var (
		mu       sync.Mutex
		replies  []map[string]any
		polled   atomic.Int32
		received = make(chan struct{}, 1)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			switch polled.Add(1) {
			case 1:
				assert.Equal(t, "0", r.URL.Query().Get("offset"))
				w.Write([]byte(`{"ok":false,"description":"Conflict"}`))
			case 2:
				assert.Equal(t, "0", r.URL.Query().Get("offset"))
				w.Write([]byte(`{"ok":true,"result":[` +
					`{"update_id":6,"message":{"text":"/refresh","chat":{"id":99}}},` +
					`{"update_id":7,"message":{"text":" /status ","chat":{"id":42}}},` +
					`{"update_id":8}]}`))
			default:
				assert.Equal(t, "9", r.URL.Query().Get("offset"))
				<-r.Context().Done()
			}
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var p map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			mu.Lock()
			replies = append(replies, p)
			mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
			received <- struct{}{}
		}
	}))
	defer srv.Close()

	tn := newTestNotifier(srv.URL)
	tn.pollBackoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(cmd string) string { return "got " + cmd })
		close(done)
	}()

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	assert.Eventually(t, func() bool { return polled.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, replies, 1)
	assert.Equal(t, "got /status", replies[0]["text"])
	assert.Equal(t, "42", replies[0]["chat_id"])
}

func TestFormatAnalysis(t *testing.T) {
	r := model.IndicatorResult{
		Price: 50000, MA20: 49000, MA50: 47000, UpperBand: 52000, LowerBand: 46000,
		Trend: model.TrendBullish, TrendStrength: 0.8, RSI: 55.3,
		NearSupport: 48000, NearResistance: 52000,
		Recommendation: model.RecBuy, TrendReady: true,
		Timestamp: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC),
	}
	msg := FormatAnalysis(btcUSDT, model.TF1h, "coingecko", r)

	assert.Contains(t, msg, "<b>BTC/USDT 1h</b> | 2024-01-02 03:00")
	assert.Contains(t, msg, "MA20: $49000.00 | MA50: $47000.00")
	assert.Contains(t, msg, "RSI(14): 55.3")
	assert.Contains(t, msg, "🟢 <b>Recommendation:</b> BUY")
	assert.Contains(t, msg, "source: coingecko")

	r.TrendReady = false
	assert.NotContains(t, FormatAnalysis(btcUSDT, model.TF1h, "", r), "MA20")
}

func TestFormatChangeAlert(t *testing.T) {
	r := model.IndicatorResult{Price: 0.5, RSI: 75, Trend: model.TrendBullish, Recommendation: model.RecSell}
	msg := FormatChangeAlert(model.AssetPair{Base: "ADA", Quote: "USDT"}, model.TF4h, model.RecBuy, r)
	assert.Contains(t, msg, "ADA/USDT 4h")
	assert.Contains(t, msg, "BUY → 🔴 SELL")
	assert.Contains(t, msg, "$0.5000")
}

func TestFormatDigest(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Contains(t, FormatDigest(nil, now), "Watchlist is empty")

	msg := FormatDigest([]watchlist.Entry{
		{Pair: btcUSDT, Timeframe: model.TF1d, Recommendation: model.RecNeutral, Price: 61000, RSI: 50, Trend: model.TrendBearish},
	}, now)
	assert.Contains(t, msg, "2024-03-01 09:00")
	assert.Contains(t, msg, "⚪ BTC/USDT 1d: $61000.00, RSI 50.0, bearish")
}

func TestFormatNarrativeEscapes(t *testing.T) {
	assert.Equal(t, "<pre>a &lt; b &amp; c</pre>", FormatNarrative("a < b & c"))
}
