package indicators

import "math"

const (
	DefaultRSIPeriod = 14

	// NeutralRSI is returned when the series is too short to compute a
	// meaningful value. Cold-start symbols score as neutral instead of
	// failing the pipeline.
	NeutralRSI = 50.0
)

// RSI computes a Wilder-style relative strength index over the last `period`
// deltas of the close series.
//
// The function is total: fewer than period+1 closes yields NeutralRSI, and a
// zero average loss yields 100 rather than dividing by zero.
func RSI(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period+1 {
		return NeutralRSI
	}

	var gainSum, lossSum float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum += math.Abs(change)
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
