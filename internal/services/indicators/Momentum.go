package indicators

const DefaultMomentumPeriod = 10

// Momentum returns the percentage change between the latest close and the
// close `period` samples back.
//
// Total: a series shorter than `period`, or a non-positive reference close,
// yields 0 (no momentum) instead of an error.
func Momentum(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period {
		return 0
	}

	ref := closes[len(closes)-period]
	if ref <= 0 {
		return 0
	}

	return (closes[len(closes)-1] - ref) / ref * 100
}
