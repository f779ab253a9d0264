package indicators

// VolatilityBand returns the lower and upper bands around price at the given
// fractional distance. Callers pick the side that matches the trade
// direction: for a long, stop at the lower band and target at the upper;
// inverted for a short.
func VolatilityBand(price, pct float64) (lower, upper float64) {
	return price * (1 - pct), price * (1 + pct)
}

// ClampBand bounds a value to [lo, hi].
func ClampBand(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
