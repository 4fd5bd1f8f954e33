// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

// Detector is the common interface for all anomaly detection algorithms.
type Detector interface {
	// Fit trains the detector on a batch.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Predict returns anomaly scores for the given samples.
	// Scores are in [0, 1] where higher values indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// PredictOne returns the anomaly score for a single sample.
	PredictOne(sample []float64) (float64, error)

	// DecisionFunction returns threshold-relative scores.
	// Lower is more anomalous; negative values are outliers.
	DecisionFunction(data [][]float64) ([]float64, error)

	// Threshold returns the anomaly score above which a sample is an outlier.
	Threshold() float64
}

// Config holds common configuration for detectors.
type Config struct {
	// Contamination is the expected proportion of anomalies in training data.
	Contamination float64
	// RandomSeed for reproducibility.
	RandomSeed int64
	// Trees is the ensemble size for tree-based detectors.
	Trees int
	// MaxSamples is the per-tree subsample size for tree-based detectors.
	MaxSamples int
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Contamination: 0.1,
		RandomSeed:    42,
		Trees:         100,
		MaxSamples:    256,
	}
}
