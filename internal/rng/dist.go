package rng

import "gonum.org/v1/gonum/stat/distuv"

// Normal maps a uniform variate in (0, 1) to a standard normal via the
// inverse CDF.
func Normal(u float64) float64 {
	return distuv.UnitNormal.Quantile(u)
}

// PoissonInv maps a uniform variate to a Poisson count with the given mean
// by walking the CDF. The mean here is intensity times the step width, so it
// stays small and the walk terminates after a handful of iterations.
func PoissonInv(mean, u float64) float64 {
	if mean <= 0 {
		return 0
	}
	dist := distuv.Poisson{Lambda: mean}
	for k := 0.0; ; k++ {
		if u <= dist.CDF(k) {
			return k
		}
	}
}
