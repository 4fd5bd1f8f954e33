// Package csv provides CSV reading and writing for transaction tables.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	tio "github.com/hed1ad/fraudscope/pkg/io"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

var _ tio.Reader = (*Reader)(nil)

var (
	// ErrMissingColumn is returned when the header lacks a schema column.
	ErrMissingColumn = errors.New("missing column")
	// ErrInvalidValue is returned when a cell cannot be used as a feature or label.
	ErrInvalidValue = errors.New("invalid value")
)

// ParseError reports the position of a malformed cell.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader reads transaction tables from CSV files.
type Reader struct {
	file   *os.File
	reader *csv.Reader
	schema txn.Schema

	headers []string
	index   map[string]int
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithSchema sets the column layout expected in the header.
func WithSchema(s txn.Schema) Option {
	return func(r *Reader) {
		r.schema = s
	}
}

// NewReader opens filename and validates its header against the schema.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := newReader(file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file

	return r, nil
}

// NewStreamReader reads a table from an arbitrary stream.
func NewStreamReader(in io.Reader, opts ...Option) (*Reader, error) {
	return newReader(in, opts...)
}

func newReader(in io.Reader, opts ...Option) (*Reader, error) {
	r := &Reader{
		reader: csv.NewReader(in),
		schema: txn.DefaultSchema(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.reader.ReuseRecord = true

	headers, err := r.reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no header row", ErrMissingColumn)
	}
	if err != nil {
		return nil, err
	}
	r.headers = append([]string(nil), headers...)

	r.index = make(map[string]int, len(headers))
	for i, h := range r.headers {
		r.index[strings.TrimSpace(h)] = i
	}
	for _, col := range r.schema.Columns() {
		if _, ok := r.index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read returns all rows as a transaction table.
// Any malformed row fails the whole read.
func (r *Reader) Read() (*txn.Table, error) {
	table := txn.NewTable(r.schema, nil)

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := r.reader.FieldPos(0)
		row, err := r.parseRow(record, line)
		if err != nil {
			return nil, err
		}
		table.Records = append(table.Records, row)
	}

	return table, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// parseRow converts a CSV record into a transaction using the header index.
func (r *Reader) parseRow(record []string, line int) (txn.Record, error) {
	var (
		row txn.Record
		err error
	)

	if row.Time, err = r.float(record, r.schema.TimeColumn, line); err != nil {
		return row, err
	}
	if row.Amount, err = r.float(record, r.schema.AmountColumn, line); err != nil {
		return row, err
	}

	row.V = make([]float64, len(r.schema.Features))
	for i, col := range r.schema.Features {
		if row.V[i], err = r.float(record, col, line); err != nil {
			return row, err
		}
	}

	label, err := r.float(record, r.schema.LabelColumn, line)
	if err != nil {
		return row, err
	}
	if label != 0 && label != 1 {
		return row, &ParseError{Line: line, Column: r.schema.LabelColumn,
			Err: fmt.Errorf("%w: label %v is not 0 or 1", ErrInvalidValue, label)}
	}
	row.Class = int(label)

	return row, nil
}

func (r *Reader) float(record []string, col string, line int) (float64, error) {
	i := r.index[col]
	if i >= len(record) {
		return 0, &ParseError{Line: line, Column: col, Err: fmt.Errorf("%w: short row", ErrInvalidValue)}
	}

	val := strings.Trim(strings.TrimSpace(record[i]), "'")
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, &ParseError{Line: line, Column: col, Err: fmt.Errorf("%w: %q", ErrInvalidValue, record[i])}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ParseError{Line: line, Column: col, Err: fmt.Errorf("%w: non-finite %q", ErrInvalidValue, record[i])}
	}
	return f, nil
}
