package kv

import (
	"time"

	"github.com/charlesng35/typedkv/internal/database"
	"github.com/charlesng35/typedkv/pkg/codec"
)

// DatabaseConfig is aliased so callers outside this module can fill in
// Config.Database without importing an internal package.
type DatabaseConfig = database.Config

// MaxKeyLength bounds keys to the key column size shared by every supported
// database.
const MaxKeyLength = 255

// DefaultBatchSize is the batch size PutMany falls back to when the caller
// passes zero.
const DefaultBatchSize = 1000

// Entry is one persisted key/value row together with its write timestamps.
type Entry struct {
	Key       string
	Value     any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pair is one key/value input to PutMany.
type Pair struct {
	Key   string
	Value any
}

// ScanOptions shape a prefix scan. The zero value scans every matching key in
// ascending order.
type ScanOptions struct {
	Limit      int
	Offset     int
	Descending bool
}

// TypeInfo reports the value type a store was constructed with and the column
// class its wire form is persisted as.
type TypeInfo struct {
	ValueType codec.Type     `json:"value_type"`
	Affinity  codec.Affinity `json:"affinity"`
}
