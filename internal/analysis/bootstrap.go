package analysis

import (
	"fmt"
	"math/rand"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultBootstrapReplicas balances estimator stability against cost
const DefaultBootstrapReplicas = 1000

// BootstrapStdError estimates the standard error of the series mean by
// resampling with replacement. The seed fixes the resampling stream, so the
// estimate is reproducible.
func BootstrapStdError(values []float64, replicas int, seed int64) (float64, error) {
	if err := validateSeries(values, 2); err != nil {
		return 0, err
	}
	if replicas < 2 {
		return 0, fmt.Errorf("bootstrap needs at least 2 replicas, got %d", replicas)
	}

	rng := rand.New(rand.NewSource(seed))
	n := len(values)
	resample := make([]float64, n)
	means := make([]float64, replicas)
	for r := 0; r < replicas; r++ {
		for i := range resample {
			resample[i] = values[rng.Intn(n)]
		}
		mean, err := stats.Mean(resample)
		if err != nil {
			return 0, err
		}
		means[r] = mean
	}

	stdErr, err := stats.StandardDeviationSample(means)
	if err != nil {
		return 0, err
	}
	return stdErr, nil
}

// NormalCI returns the normal-approximation confidence interval around mean
// for the given standard error and confidence level in (0,1)
func NormalCI(mean, stdErr, confidence float64) (float64, float64) {
	z := distuv.UnitNormal.Quantile(0.5 + confidence/2)
	return mean - z*stdErr, mean + z*stdErr
}
