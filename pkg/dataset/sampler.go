// Package dataset loads labeled transaction tables and draws seeded subsamples.
package dataset

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	tio "github.com/hed1ad/fraudscope/pkg/io"
	"github.com/hed1ad/fraudscope/pkg/io/csv"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

// DefaultSeed matches the seed used by the scorer so a run is reproducible end to end.
const DefaultSeed = 42

var (
	// ErrInvalidSampleSize is returned for a non-positive sample size.
	ErrInvalidSampleSize = errors.New("sample size must be positive")
	// ErrEmptyDataset is returned when the source holds no records.
	ErrEmptyDataset = errors.New("dataset has no records")
	// ErrMissingColumn is returned when the source lacks a schema column.
	ErrMissingColumn = csv.ErrMissingColumn
	// ErrInvalidValue is returned for unparseable, missing or non-finite cells.
	ErrInvalidValue = csv.ErrInvalidValue
)

// LoadError reports that a source could not be turned into a table.
type LoadError struct {
	Path string
	// Line is the 1-based source line of the offending row, or 0.
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Opener opens a transaction source laid out as schema.
type Opener func(path string, schema txn.Schema) (tio.Reader, error)

// OpenCSV opens a CSV file with a header row.
func OpenCSV(path string, schema txn.Schema) (tio.Reader, error) {
	return csv.NewReader(path, csv.WithSchema(schema))
}

// Sampler reads a transaction source and returns a fixed-size random subsample.
type Sampler struct {
	seed   int64
	schema txn.Schema
	open   Opener
	log    logrus.FieldLogger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithSeed sets the sampling seed.
func WithSeed(seed int64) Option {
	return func(s *Sampler) {
		s.seed = seed
	}
}

// WithSchema sets the expected column layout.
func WithSchema(schema txn.Schema) Option {
	return func(s *Sampler) {
		s.schema = schema
	}
}

// WithOpener replaces the CSV source reader.
func WithOpener(open Opener) Option {
	return func(s *Sampler) {
		s.open = open
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Sampler) {
		s.log = l
	}
}

// New creates a Sampler with the given options.
func New(opts ...Option) *Sampler {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Sampler{
		seed:   DefaultSeed,
		schema: txn.DefaultSchema(),
		open:   OpenCSV,
		log:    discard,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Seed returns the sampling seed.
func (s *Sampler) Seed() int64 {
	return s.seed
}

// Load reads path and returns min(sampleSize, rows) records drawn without replacement.
// All failures are returned as *LoadError.
func (s *Sampler) Load(path string, sampleSize int) (*txn.Table, error) {
	if sampleSize <= 0 {
		return nil, &LoadError{Path: path, Err: errors.Wrapf(ErrInvalidSampleSize, "got %d", sampleSize)}
	}

	r, err := s.open(path, s.schema)
	if err != nil {
		return nil, newLoadError(path, err)
	}
	defer r.Close()

	full, err := r.Read()
	if err != nil {
		return nil, newLoadError(path, err)
	}

	sample, err := s.Sample(full, sampleSize)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"path":        path,
		"rows":        full.Len(),
		"sample_size": sample.Len(),
		"seed":        s.seed,
	}).Debug("dataset sampled")

	return sample, nil
}

// Sample draws min(sampleSize, full.Len()) records from full without replacement.
// The same seed, input and size always produce the same records in the same order.
func (s *Sampler) Sample(full *txn.Table, sampleSize int) (*txn.Table, error) {
	if sampleSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidSampleSize, "got %d", sampleSize)
	}

	n := full.Len()
	if n == 0 {
		return nil, ErrEmptyDataset
	}
	if sampleSize > n {
		sampleSize = n
	}

	rng := rand.New(rand.NewSource(s.seed))
	indices := rng.Perm(n)[:sampleSize]

	records := make([]txn.Record, sampleSize)
	for i, idx := range indices {
		records[i] = full.Records[idx]
	}

	return txn.NewTable(full.Schema, records), nil
}

// Load samples path with the default sampler.
func Load(path string, sampleSize int) (*txn.Table, error) {
	return New().Load(path, sampleSize)
}

func newLoadError(path string, err error) *LoadError {
	le := &LoadError{Path: path, Err: err}

	var perr *csv.ParseError
	if errors.As(err, &perr) {
		le.Line = perr.Line
	}

	return le
}
