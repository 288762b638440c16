package narrative

import (
	"fmt"
	"strings"

	"CryptoLens/internal/model"
)

// Format assembles the narrative into markdown prose.
func Format(n Narrative) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("## %s %s market summary\n\n", n.Pair, n.Timeframe))
	b.WriteString(fmt.Sprintf("Overall sentiment: **%s** (confidence: %s, %.2f)\n\n",
		n.Sentiment, n.ConfidenceLabel, n.Confidence))
	b.WriteString("### Observations\n")
	for _, o := range n.Observations {
		b.WriteString("- " + o + "\n")
	}
	b.WriteString(fmt.Sprintf("\n### Outlook\n%s\n\n", n.Outlook))
	b.WriteString(fmt.Sprintf("Recommendation: **%s**\n", strings.ToUpper(string(n.Recommendation))))
	return b.String()
}

// FormatConsensus renders a multi-timeframe consensus report.
func FormatConsensus(pair model.AssetPair, c model.Consensus) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("## %s multi-timeframe consensus\n\n", pair))
	if len(c.Views) == 0 {
		b.WriteString("No timeframe had enough data.\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Direction: **%s**, agreement %s (%.1f%%)\n", c.Direction, c.Strength, c.Score))
	aligned := make([]string, len(c.Aligned))
	for i, tf := range c.Aligned {
		aligned[i] = string(tf)
	}
	b.WriteString(fmt.Sprintf("Aligned timeframes: %s\n\n", strings.Join(aligned, ", ")))
	for _, v := range c.Views {
		b.WriteString(fmt.Sprintf("- **%s**: %s (strength %.2f), RSI %.1f, %s, confidence %.1f\n",
			v.Timeframe, v.Trend, v.TrendStrength, v.RSI, v.Recommendation, v.Confidence))
	}
	return b.String()
}
