package optimizer

import "math"

// welchTStatistic computes Welch's t-statistic for two independent samples
// given only their summary statistics (mean, variance, count). The primary
// promotion gate stays the min-trials + delta rule; a rollback
// recommendation additionally requires this test to agree the active
// variant is really worse, not just noisily worse.
func welchTStatistic(mean1 float64, var1 float64, n1 int, mean2 float64, var2 float64, n2 int) float64 {
	if n1 < 2 || n2 < 2 {
		return 0
	}
	se := math.Sqrt(var1/float64(n1) + var2/float64(n2))
	if se == 0 {
		return 0
	}
	return (mean1 - mean2) / se
}

// welchDegreesOfFreedom computes the Welch-Satterthwaite approximation for
// degrees of freedom, needed to compare the t-statistic against a critical
// value.
func welchDegreesOfFreedom(var1 float64, n1 int, var2 float64, n2 int) float64 {
	if n1 < 2 || n2 < 2 {
		return 1
	}
	a := var1 / float64(n1)
	b := var2 / float64(n2)
	num := (a + b) * (a + b)
	den := (a*a)/float64(n1-1) + (b*b)/float64(n2-1)
	if den == 0 {
		return 1
	}
	return num / den
}

// criticalT95 is a coarse lookup of the two-tailed 95% critical t-value by
// degrees of freedom, sufficient for the rollback gate.
func criticalT95(df float64) float64 {
	switch {
	case df < 2:
		return 12.71
	case df < 5:
		return 2.78
	case df < 10:
		return 2.26
	case df < 20:
		return 2.09
	case df < 30:
		return 2.05
	case df < 60:
		return 2.00
	default:
		return 1.98
	}
}

// SuccessRateSignificantlyLower reports whether variant 1's success rate is
// significantly lower than variant 2's at roughly the 95% confidence level,
// treating each outcome as a Bernoulli trial (variance = p(1-p)).
func SuccessRateSignificantlyLower(rate1 float64, n1 int, rate2 float64, n2 int) bool {
	if n1 < 2 || n2 < 2 {
		return false
	}
	var1 := rate1 * (1 - rate1)
	var2 := rate2 * (1 - rate2)
	t := welchTStatistic(rate1, var1, n1, rate2, var2, n2)
	df := welchDegreesOfFreedom(var1, n1, var2, n2)
	return t < -criticalT95(df)
}
