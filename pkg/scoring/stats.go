package scoring

import (
	"fmt"

	"github.com/hed1ad/fraudscope/pkg/txn"
)

// Stats summarizes one scored batch.
type Stats struct {
	Total          int `json:"total_transactions"`
	ActualFraud    int `json:"actual_fraud"`
	PredictedFraud int `json:"predicted_fraud"`

	// Rates are percentages of Total.
	ActualFraudRate    float64 `json:"actual_fraud_rate"`
	PredictedFraudRate float64 `json:"predicted_fraud_rate"`

	AvgAmount float64 `json:"avg_amount"`
}

// ComputeStats derives the summary from a table. An empty table yields zeros.
func ComputeStats(t *txn.Table) Stats {
	var (
		s   Stats
		sum float64
	)

	s.Total = t.Len()
	if s.Total == 0 {
		return s
	}

	for _, r := range t.Records {
		if r.IsFraud() {
			s.ActualFraud++
		}
		if r.IsFlagged() {
			s.PredictedFraud++
		}
		sum += r.Amount
	}

	total := float64(s.Total)
	s.ActualFraudRate = float64(s.ActualFraud) / total * 100
	s.PredictedFraudRate = float64(s.PredictedFraud) / total * 100
	s.AvgAmount = sum / total

	return s
}

// Quality compares predictions with ground-truth labels.
type Quality struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`

	// Precision is TruePositives over max(predicted fraud, 1), in percent.
	Precision float64 `json:"precision"`

	// Recall is TruePositives over actual fraud, in percent.
	// It is only meaningful when RecallApplicable is set.
	Recall           float64 `json:"recall"`
	RecallApplicable bool    `json:"recall_applicable"`
}

// RecallString renders recall or "n/a" when the batch holds no actual fraud.
func (q Quality) RecallString() string {
	if !q.RecallApplicable {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", q.Recall)
}

// ComputeQuality derives confusion counts, precision and recall from a scored table.
func ComputeQuality(t *txn.Table) (Quality, error) {
	var q Quality
	if t == nil || !t.Scored {
		return q, ErrNotScored
	}

	var predicted, actual int
	for _, r := range t.Records {
		switch {
		case r.IsFraud() && r.IsFlagged():
			q.TruePositives++
		case !r.IsFraud() && r.IsFlagged():
			q.FalsePositives++
		case r.IsFraud() && !r.IsFlagged():
			q.FalseNegatives++
		}
		if r.IsFlagged() {
			predicted++
		}
		if r.IsFraud() {
			actual++
		}
	}

	q.Precision = float64(q.TruePositives) / float64(max(predicted, 1)) * 100
	if actual > 0 {
		q.Recall = float64(q.TruePositives) / float64(actual) * 100
		q.RecallApplicable = true
	}

	return q, nil
}
