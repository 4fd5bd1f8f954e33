// Package txn defines the labeled transaction table consumed by the scoring pipeline.
package txn

import "fmt"

// DefaultFeatureCount is the number of anonymized features in the reference dataset.
const DefaultFeatureCount = 28

// Derived column names appended by the scorer.
const (
	ColumnPredictedFraud = "PredictedFraud"
	ColumnRiskScore      = "RiskScore"
)

// Schema names the columns of a transaction source.
type Schema struct {
	// TimeColumn holds the timestamp-like numeric field.
	TimeColumn string
	// AmountColumn holds the monetary amount.
	AmountColumn string
	// LabelColumn holds the ground-truth fraud label (0 or 1).
	LabelColumn string
	// Features lists the anonymized feature columns in model order.
	Features []string
}

// DefaultSchema returns the schema of the public credit card dataset.
func DefaultSchema() Schema {
	features := make([]string, DefaultFeatureCount)
	for i := range features {
		features[i] = fmt.Sprintf("V%d", i+1)
	}
	return Schema{
		TimeColumn:   "Time",
		AmountColumn: "Amount",
		LabelColumn:  "Class",
		Features:     features,
	}
}

// FeatureNames returns the model input layout: time, amount, then anonymized features.
func (s Schema) FeatureNames() []string {
	names := make([]string, 0, len(s.Features)+2)
	names = append(names, s.TimeColumn, s.AmountColumn)
	return append(names, s.Features...)
}

// Columns returns every raw column: the feature layout followed by the label.
func (s Schema) Columns() []string {
	return append(s.FeatureNames(), s.LabelColumn)
}

// Record is a single labeled transaction.
type Record struct {
	Time   float64
	Amount float64
	V      []float64
	Class  int

	// Derived by the scorer.
	PredictedFraud int
	RiskScore      int
}

// Features returns the record's model input vector.
func (r Record) Features() []float64 {
	out := make([]float64, 0, len(r.V)+2)
	out = append(out, r.Time, r.Amount)
	return append(out, r.V...)
}

// IsFraud reports whether the ground-truth label marks the record as fraud.
func (r Record) IsFraud() bool {
	return r.Class == 1
}

// IsFlagged reports whether the scorer predicted fraud for the record.
func (r Record) IsFlagged() bool {
	return r.PredictedFraud == 1
}

// Table is an ordered set of records sharing one schema.
type Table struct {
	Schema  Schema
	Records []Record

	// Scored is set once PredictedFraud and RiskScore are populated.
	Scored bool
}

// NewTable creates a table over the given records.
func NewTable(schema Schema, records []Record) *Table {
	return &Table{Schema: schema, Records: records}
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// FeatureMatrix returns one feature vector per record, in record order.
func (t *Table) FeatureMatrix() [][]float64 {
	data := make([][]float64, len(t.Records))
	for i, r := range t.Records {
		data[i] = r.Features()
	}
	return data
}

// Clone returns a deep copy so callers can score independently.
func (t *Table) Clone() *Table {
	records := make([]Record, len(t.Records))
	for i, r := range t.Records {
		r.V = append([]float64(nil), r.V...)
		records[i] = r
	}
	schema := t.Schema
	schema.Features = append([]string(nil), t.Schema.Features...)
	return &Table{Schema: schema, Records: records, Scored: t.Scored}
}

// Filter returns a new table holding the records for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := &Table{Schema: t.Schema, Scored: t.Scored}
	for _, r := range t.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}
