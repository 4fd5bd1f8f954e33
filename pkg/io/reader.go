// Package io provides input/output utilities for transaction tables.
package io

import "github.com/hed1ad/fraudscope/pkg/txn"

// Reader is the interface for reading transaction tables from various sources.
type Reader interface {
	// Read returns the complete dataset.
	Read() (*txn.Table, error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing scored transaction tables.
type Writer interface {
	// Write outputs a single record.
	Write(r txn.Record) error

	// WriteAll outputs every record of the table.
	WriteAll(t *txn.Table) error

	// Close flushes and releases resources.
	Close() error
}
