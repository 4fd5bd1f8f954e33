// Package scoring fits an anomaly detector over a transaction batch and derives
// per-record fraud predictions, bounded risk scores and batch statistics.
//
// Risk scores are batch-relative: the detector's decision values (lower means
// more anomalous) are rescaled so the most anomalous record of the batch scores
// 100 and the most normal scores 0.
package scoring

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/hed1ad/fraudscope/pkg/detectors"
	"github.com/hed1ad/fraudscope/pkg/detectors/iforest"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

// MaxRiskScore is the score of the most anomalous record in a batch.
const MaxRiskScore = 100

var (
	// ErrEmptyTable is returned when scoring a table with no records.
	ErrEmptyTable = errors.New("empty table")
	// ErrInvalidContamination is returned for a contamination outside (0, 0.5].
	ErrInvalidContamination = errors.New("contamination must be in (0, 0.5]")
	// ErrDegenerateBatch is returned when no feature varies across a multi-record batch.
	ErrDegenerateBatch = errors.New("every feature has zero variance")
	// ErrNonFinite is returned when a feature or model score is NaN or infinite.
	ErrNonFinite = errors.New("non-finite value")
	// ErrNotScored is returned when quality is requested for an unscored table.
	ErrNotScored = errors.New("table has not been scored")
)

// ScoringError reports a failed scoring run.
type ScoringError struct {
	// Op is the pipeline step that failed: validate, fit, score.
	Op  string
	Err error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring %s: %v", e.Op, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// DetectorFactory builds a fresh detector for one scoring run.
type DetectorFactory func(cfg detectors.Config) detectors.Detector

// Scorer holds model configuration only; each call fits its own detector.
type Scorer struct {
	cfg         detectors.Config
	newDetector DetectorFactory
	log         logrus.FieldLogger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithTrees sets the forest size.
func WithTrees(n int) Option {
	return func(s *Scorer) {
		s.cfg.Trees = n
	}
}

// WithMaxSamples sets the per-tree subsample size.
func WithMaxSamples(n int) Option {
	return func(s *Scorer) {
		s.cfg.MaxSamples = n
	}
}

// WithSeed sets the model seed.
func WithSeed(seed int64) Option {
	return func(s *Scorer) {
		s.cfg.RandomSeed = seed
	}
}

// WithDetector replaces the Isolation Forest with another detector.
// The detector's DecisionFunction must treat lower values as more anomalous.
func WithDetector(f DetectorFactory) Option {
	return func(s *Scorer) {
		s.newDetector = f
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scorer) {
		s.log = l
	}
}

// New creates a Scorer.
func New(opts ...Option) *Scorer {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Scorer{
		cfg: detectors.DefaultConfig(),
		newDetector: func(cfg detectors.Config) detectors.Detector {
			return iforest.FromConfig(cfg)
		},
		log: discard,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// FitAndScore fits a fresh detector on table, writes PredictedFraud and RiskScore
// into every record in place, and returns the same table with its statistics.
// Labels are never shown to the detector.
func (s *Scorer) FitAndScore(table *txn.Table, contamination float64) (*txn.Table, Stats, error) {
	if !(contamination > 0 && contamination <= 0.5) {
		return nil, Stats{}, &ScoringError{Op: "validate", Err: fmt.Errorf("%w: got %v", ErrInvalidContamination, contamination)}
	}

	data, err := featureMatrix(table)
	if err != nil {
		return nil, Stats{}, &ScoringError{Op: "validate", Err: err}
	}

	cfg := s.cfg
	cfg.Contamination = contamination
	det := s.newDetector(cfg)

	if err := det.Fit(data); err != nil {
		return nil, Stats{}, &ScoringError{Op: "fit", Err: err}
	}

	decisions, err := det.DecisionFunction(data)
	if err != nil {
		return nil, Stats{}, &ScoringError{Op: "score", Err: err}
	}
	if len(decisions) != len(data) {
		return nil, Stats{}, &ScoringError{Op: "score", Err: fmt.Errorf("detector returned %d scores for %d records", len(decisions), len(data))}
	}
	for i, d := range decisions {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, Stats{}, &ScoringError{Op: "score", Err: fmt.Errorf("%w: record %d", ErrNonFinite, i)}
		}
	}

	risks := RiskScores(decisions)
	for i := range table.Records {
		r := &table.Records[i]
		r.PredictedFraud = 0
		if decisions[i] < 0 {
			r.PredictedFraud = 1
		}
		r.RiskScore = risks[i]
	}
	table.Scored = true

	stats := ComputeStats(table)

	s.log.WithFields(logrus.Fields{
		"records":         stats.Total,
		"contamination":   contamination,
		"threshold":       det.Threshold(),
		"predicted_fraud": stats.PredictedFraud,
		"actual_fraud":    stats.ActualFraud,
	}).Info("batch scored")

	return table, stats, nil
}

// RiskScores maps decision values to integers in [0, MaxRiskScore].
// The minimum decision maps to MaxRiskScore and the maximum to 0.
// A batch with a single distinct decision value scores 0 throughout.
func RiskScores(decisions []float64) []int {
	out := make([]int, len(decisions))
	if len(decisions) == 0 {
		return out
	}

	lo, hi := decisions[0], decisions[0]
	for _, d := range decisions[1:] {
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	if hi == lo {
		return out
	}

	span := hi - lo
	for i, d := range decisions {
		v := int(math.Floor((hi - d) / span * MaxRiskScore))
		out[i] = min(max(v, 0), MaxRiskScore)
	}
	return out
}

// featureMatrix validates the batch and returns its model input.
func featureMatrix(table *txn.Table) ([][]float64, error) {
	if table.Len() == 0 {
		return nil, ErrEmptyTable
	}

	data := table.FeatureMatrix()
	width := len(table.Schema.Features) + 2
	for i, row := range data {
		if len(row) != width {
			return nil, fmt.Errorf("%w: record %d has %d features, want %d", iforest.ErrDimension, i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: record %d feature %d", ErrNonFinite, i, j)
			}
		}
	}

	if len(data) > 1 && !varies(data) {
		return nil, ErrDegenerateBatch
	}

	return data, nil
}

func varies(data [][]float64) bool {
	for j := range data[0] {
		for _, row := range data[1:] {
			if row[j] != data[0][j] {
				return true
			}
		}
	}
	return false
}
