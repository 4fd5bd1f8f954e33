// Package txntest generates synthetic transaction tables for tests and demos.
package txntest

import (
	"math/rand"
	"os"
	"path/filepath"

	"github.com/hed1ad/fraudscope/pkg/io/csv"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

// Generate returns n records in the default schema.
// Roughly fraudRate of them are labeled fraud and drawn from a shifted,
// wider distribution with large amounts.
func Generate(n int, fraudRate float64, seed int64) *txn.Table {
	rng := rand.New(rand.NewSource(seed))
	schema := txn.DefaultSchema()

	records := make([]txn.Record, n)
	for i := range records {
		fraud := rng.Float64() < fraudRate

		r := txn.Record{
			Time: float64(i) * 12.5,
			V:    make([]float64, len(schema.Features)),
		}
		if fraud {
			r.Class = 1
			r.Amount = 2000 + rng.Float64()*8000
			for j := range r.V {
				r.V[j] = 4 + rng.NormFloat64()*3
			}
		} else {
			r.Amount = 5 + rng.Float64()*195
			for j := range r.V {
				r.V[j] = rng.NormFloat64()
			}
		}
		records[i] = r
	}

	return txn.NewTable(schema, records)
}

// WriteFile writes table as CSV into dir and returns the file path.
func WriteFile(dir, name string, table *txn.Table) (string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	w := csv.NewWriter(f, table.Schema)
	if err := w.WriteAll(table); err != nil {
		f.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return path, nil
}
