package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"CryptoLens/internal/model"
	"CryptoLens/internal/narrative"
	"CryptoLens/internal/watchlist"
)

var recEmoji = map[model.Recommendation]string{
	model.RecBuy:     "🟢",
	model.RecSell:    "🔴",
	model.RecNeutral: "⚪",
}

// FormatAnalysis formats a single analysis into a Telegram message.
func FormatAnalysis(pair model.AssetPair, tf model.Timeframe, source string, r model.IndicatorResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>%s %s</b> | %s\n\n", html.EscapeString(pair.String()), tf, r.Timestamp.UTC().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Price: %s\n", narrative.FormatPrice(r.Price)))
	if r.TrendReady {
		b.WriteString(fmt.Sprintf("MA20: %s | MA50: %s\n", narrative.FormatPrice(r.MA20), narrative.FormatPrice(r.MA50)))
		b.WriteString(fmt.Sprintf("Bands: %s ~ %s\n", narrative.FormatPrice(r.LowerBand), narrative.FormatPrice(r.UpperBand)))
	}
	b.WriteString(fmt.Sprintf("Trend: %s (%.2f)\n", r.Trend, r.TrendStrength))
	b.WriteString(fmt.Sprintf("RSI(14): %.1f\n", r.RSI))
	b.WriteString(fmt.Sprintf("Support: %s | Resistance: %s\n\n", narrative.FormatPrice(r.NearSupport), narrative.FormatPrice(r.NearResistance)))

	b.WriteString(fmt.Sprintf("%s <b>Recommendation:</b> %s\n", recEmoji[r.Recommendation], strings.ToUpper(string(r.Recommendation))))
	if source != "" {
		b.WriteString(fmt.Sprintf("<i>source: %s</i>\n", html.EscapeString(source)))
	}
	return b.String()
}

// FormatChangeAlert announces a recommendation change on a watched pair.
func FormatChangeAlert(pair model.AssetPair, tf model.Timeframe, previous model.Recommendation, r model.IndicatorResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔔 <b>Signal change</b> | %s %s\n\n", html.EscapeString(pair.String()), tf))
	b.WriteString(fmt.Sprintf("%s → %s %s\n", strings.ToUpper(string(previous)), recEmoji[r.Recommendation], strings.ToUpper(string(r.Recommendation))))
	b.WriteString(fmt.Sprintf("Price: %s | RSI: %.1f | Trend: %s\n", narrative.FormatPrice(r.Price), r.RSI, r.Trend))
	return b.String()
}

// FormatDigest summarizes the watchlist.
func FormatDigest(entries []watchlist.Entry, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Watchlist digest</b> | %s\n\n", now.UTC().Format("2006-01-02 15:04")))
	if len(entries) == 0 {
		b.WriteString("Watchlist is empty or not refreshed yet.")
		return b.String()
	}
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s %s %s: %s, RSI %.1f, %s\n",
			recEmoji[e.Recommendation], html.EscapeString(e.Pair.String()), e.Timeframe,
			narrative.FormatPrice(e.Price), e.RSI, e.Trend))
	}
	return b.String()
}

// FormatNarrative wraps free text for HTML parse mode.
func FormatNarrative(text string) string {
	return "<pre>" + html.EscapeString(text) + "</pre>"
}
