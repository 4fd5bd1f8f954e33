package csv

import (
	"encoding/csv"
	"io"
	"strconv"

	tio "github.com/hed1ad/fraudscope/pkg/io"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

var _ tio.Writer = (*Writer)(nil)

// Writer serializes enriched transaction tables.
// Raw columns come first in schema order, followed by the derived columns.
type Writer struct {
	w      *csv.Writer
	closer io.Closer
	schema txn.Schema

	wroteHeader bool
	buf         []string
}

// NewWriter creates a writer for records following the given schema.
// If out implements io.Closer it is closed by Close.
func NewWriter(out io.Writer, schema txn.Schema) *Writer {
	w := &Writer{
		w:      csv.NewWriter(out),
		schema: schema,
	}
	if c, ok := out.(io.Closer); ok {
		w.closer = c
	}
	return w
}

// Header returns the exported column names.
func (w *Writer) Header() []string {
	return append(w.schema.Columns(), txn.ColumnPredictedFraud, txn.ColumnRiskScore)
}

// Write outputs a single record, emitting the header first if needed.
func (w *Writer) Write(r txn.Record) error {
	if !w.wroteHeader {
		if err := w.w.Write(w.Header()); err != nil {
			return err
		}
		w.wroteHeader = true
	}

	w.buf = w.buf[:0]
	for _, f := range r.Features() {
		w.buf = append(w.buf, strconv.FormatFloat(f, 'g', -1, 64))
	}
	w.buf = append(w.buf,
		strconv.Itoa(r.Class),
		strconv.Itoa(r.PredictedFraud),
		strconv.Itoa(r.RiskScore),
	)
	return w.w.Write(w.buf)
}

// WriteAll outputs every record of the table and flushes.
func (w *Writer) WriteAll(t *txn.Table) error {
	for _, r := range t.Records {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	if !w.wroteHeader {
		if err := w.w.Write(w.Header()); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes buffered rows and releases resources.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
