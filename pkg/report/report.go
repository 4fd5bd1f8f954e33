// Package report renders scoring results for terminals and machine consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/hed1ad/fraudscope/pkg/scoring"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

// Summary is the rendered view of one run.
type Summary struct {
	Stats   scoring.Stats   `json:"stats"`
	Quality scoring.Quality `json:"quality"`
}

// Money formats an amount with two decimal places, rounding half away from zero.
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Percent formats a percentage with two decimal places.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// WriteText prints the summary as an aligned table.
func WriteText(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	rows := [][2]string{
		{"Total transactions", fmt.Sprint(s.Stats.Total)},
		{"Actual fraud", fmt.Sprintf("%d (%s)", s.Stats.ActualFraud, Percent(s.Stats.ActualFraudRate))},
		{"Predicted fraud", fmt.Sprintf("%d (%s)", s.Stats.PredictedFraud, Percent(s.Stats.PredictedFraudRate))},
		{"Average amount", Money(s.Stats.AvgAmount)},
		{"True positives", fmt.Sprint(s.Quality.TruePositives)},
		{"False positives", fmt.Sprint(s.Quality.FalsePositives)},
		{"False negatives", fmt.Sprint(s.Quality.FalseNegatives)},
		{"Precision", Percent(s.Quality.Precision)},
		{"Recall", recall(s.Quality)},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// WriteJSON prints the summary as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// TopRisk returns up to n records ordered by descending risk score.
// Ties keep batch order.
func TopRisk(t *txn.Table, n int) []txn.Record {
	records := append([]txn.Record(nil), t.Records...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RiskScore > records[j].RiskScore
	})
	if n >= 0 && n < len(records) {
		records = records[:n]
	}
	return records
}

// WriteTop prints records as a risk-ranked table.
func WriteTop(w io.Writer, records []txn.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	if _, err := fmt.Fprintln(tw, "Rank\tTime\tAmount\tRisk\tPredicted\tActual\t"); err != nil {
		return err
	}
	for i, r := range records {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t\n",
			i+1, decimal.NewFromFloat(r.Time).String(), Money(r.Amount), r.RiskScore,
			label(r.IsFlagged()), label(r.IsFraud())); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func recall(q scoring.Quality) string {
	if !q.RecallApplicable {
		return q.RecallString()
	}
	return Percent(q.Recall)
}

func label(fraud bool) string {
	if fraud {
		return "fraud"
	}
	return "-"
}
