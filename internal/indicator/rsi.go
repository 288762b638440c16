package indicator

import "math"

// NeutralRSI is reported whenever RSI is undefined.
const NeutralRSI = 50.0

// RSISeries computes the Wilder-smoothed RSI for every bar. Entries before
// index period are undefined and hold NeutralRSI, as does any bar whose
// average loss is zero.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = NeutralRSI
	}
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	// Initial average gain/loss over the first `period` changes
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

// RSI returns the latest RSI value and whether enough data existed.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return NeutralRSI, false
	}
	s := RSISeries(closes, period)
	return s[len(s)-1], true
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return NeutralRSI
	}
	v := 100.0 - 100.0/(1.0+avgGain/avgLoss)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NeutralRSI
	}
	return v
}
