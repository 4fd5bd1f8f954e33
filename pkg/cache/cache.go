// Package cache memoizes sampled transaction tables by source, sample size and seed.
//
// The cache sits in front of the dataset sampler; it is never consulted by the
// scoring pipeline itself. Every hit hands out a private copy so a scorer can
// augment it in place.
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hed1ad/fraudscope/pkg/dataset"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

// Key identifies one sampled table.
type Key struct {
	Path       string
	SampleSize int
	Seed       int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Path, k.SampleSize, k.Seed)
}

// Store persists sampled tables for the lifetime of the process or a TTL.
type Store interface {
	// Get returns the table for key and whether it was found.
	Get(ctx context.Context, key Key) (*txn.Table, bool, error)
	// Set stores table under key.
	Set(ctx context.Context, key Key, table *txn.Table) error
}

// MemoryStore keeps tables in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[Key]*txn.Table
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[Key]*txn.Table)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key Key) (*txn.Table, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[key]
	if !ok {
		return nil, false, nil
	}
	return t.Clone(), true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key Key, table *txn.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tables[key] = table.Clone()
	return nil
}

// Len returns the number of cached tables.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}

// Loader serves sampled tables from a Store, falling back to the sampler.
type Loader struct {
	sampler *dataset.Sampler
	store   Store
	log     logrus.FieldLogger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) LoaderOption {
	return func(c *Loader) {
		c.log = l
	}
}

// NewLoader wraps sampler with store. A nil store disables caching.
func NewLoader(sampler *dataset.Sampler, store Store, opts ...LoaderOption) *Loader {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	l := &Loader{
		sampler: sampler,
		store:   store,
		log:     discard,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the sample of path, cached under path, sampleSize and the sampler's seed.
// Store failures are logged and treated as misses; sampler failures are returned
// unchanged so callers still see *dataset.LoadError.
func (l *Loader) Load(ctx context.Context, path string, sampleSize int) (*txn.Table, error) {
	if l.store == nil {
		return l.sampler.Load(path, sampleSize)
	}

	key := Key{Path: path, SampleSize: sampleSize, Seed: l.sampler.Seed()}
	log := l.log.WithField("key", key.String())

	table, ok, err := l.store.Get(ctx, key)
	switch {
	case err != nil:
		log.WithError(err).Warn("cache read failed")
	case ok:
		log.Debug("cache hit")
		return table, nil
	}

	table, err = l.sampler.Load(path, sampleSize)
	if err != nil {
		return nil, err
	}

	if err := l.store.Set(ctx, key, table); err != nil {
		log.WithError(err).Warn("cache write failed")
	} else {
		log.Debug("cache filled")
	}

	return table, nil
}

func encode(table *txn.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(table); err != nil {
		return nil, errors.Wrap(err, "encode table")
	}
	return buf.Bytes(), nil
}

func decode(b []byte) (*txn.Table, error) {
	var table txn.Table
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&table); err != nil {
		return nil, errors.Wrap(err, "decode table")
	}
	return &table, nil
}
