// Package numeric provides the small pure-math primitives shared by the
// estimator and controller. Every function is deterministic and allocation
// free.
package numeric

import "math"

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sigmoid is the logistic function 1/(1+exp(-k*(x-mid))).
func Sigmoid(x, mid, k float64) float64 {
	return 1.0 / (1.0 + math.Exp(-k*(x-mid)))
}

// Gaussian is exp(-((x-mu)^2)/(2*sigma^2)). A non-positive sigma yields 0
// rather than a division blowup.
func Gaussian(x, mu, sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	d := x - mu
	return math.Exp(-(d * d) / (2 * sigma * sigma))
}

// ExpDecay is exp(-k*x).
func ExpDecay(x, k float64) float64 {
	return math.Exp(-k * x)
}
