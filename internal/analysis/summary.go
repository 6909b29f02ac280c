package analysis

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"mlhmc/domain/run"
)

// Summarize computes the full deterministic statistics record for one
// observable series. The standard error is the naive error inflated by the
// integrated autocorrelation time, sqrt(2*tau*var/n), so correlated chains
// report honest uncertainties.
func Summarize(name string, values []float64) (run.ObservableSummary, error) {
	if err := validateSeries(values, 2); err != nil {
		return run.ObservableSummary{}, err
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return run.ObservableSummary{}, err
	}
	variance, err := stats.SampleVariance(values)
	if err != nil {
		return run.ObservableSummary{}, err
	}

	n := float64(len(values))
	tau := IntegratedAutocorrelationTime(values)

	return run.ObservableSummary{
		Name:             name,
		Samples:          len(values),
		Mean:             mean,
		StdError:         math.Sqrt(2 * tau * variance / n),
		Variance:         variance,
		AutocorrTime:     tau,
		EffectiveSamples: n / (2 * tau),
	}, nil
}

// SummarizeAll maps Summarize over a set of named series in name order;
// the first failure aborts
func SummarizeAll(series map[string][]float64) ([]run.ObservableSummary, error) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]run.ObservableSummary, 0, len(names))
	for _, name := range names {
		s, err := Summarize(name, series[name])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
