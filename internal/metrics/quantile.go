package metrics

import "math"

// quantileLinear returns the p-quantile of sorted data, interpolating
// linearly between the order statistics around position (n-1)*p.
func quantileLinear(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	a, b := sorted[i], sorted[i+1]
	t := h - lo
	if math.IsInf(b-a, 0) {
		return a*(1-t) + b*t
	}
	// interpolate from the nearer endpoint to keep results monotone in t
	if t >= 0.5 {
		return b - (b-a)*(1-t)
	}
	return a + (b-a)*t
}
