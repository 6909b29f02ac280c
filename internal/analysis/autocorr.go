// Package analysis provides the ensemble statistics applied to recorded
// observable series: integrated autocorrelation times, effective sample
// sizes, bootstrap resampling errors and summary records.
package analysis

import (
	"fmt"
)

// sokalWindowFactor stops the autocorrelation sum once the window exceeds
// this multiple of the running estimate, per Sokal's automatic windowing.
const sokalWindowFactor = 6.0

// autocovariance computes the lag-t autocovariance around the given mean
func autocovariance(values []float64, mean float64, lag int) float64 {
	n := len(values)
	sum := 0.0
	for i := 0; i < n-lag; i++ {
		sum += (values[i] - mean) * (values[i+lag] - mean)
	}
	return sum / float64(n-lag)
}

// IntegratedAutocorrelationTime estimates tau_int of a series with Sokal's
// self-consistent window. An uncorrelated series yields 0.5, the convention
// in which the corrected variance of the mean is 2*tau*var/n. The estimate
// is clamped below at 0.5.
func IntegratedAutocorrelationTime(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0.5
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	c0 := autocovariance(values, mean, 0)
	if c0 == 0 {
		return 0.5
	}

	tau := 0.5
	for t := 1; t < n; t++ {
		tau += autocovariance(values, mean, t) / c0
		if float64(t) >= sokalWindowFactor*tau {
			break
		}
	}
	if tau < 0.5 {
		tau = 0.5
	}
	return tau
}

// EffectiveSampleSize converts a series length into the number of
// statistically independent samples it carries
func EffectiveSampleSize(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return float64(len(values)) / (2 * IntegratedAutocorrelationTime(values))
}

// validateSeries rejects series too short for the requested statistic
func validateSeries(values []float64, min int) error {
	if len(values) < min {
		return fmt.Errorf("series has %d values, need at least %d", len(values), min)
	}
	return nil
}
