package kv

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/typedkv/internal/database"
	"github.com/charlesng35/typedkv/pkg/codec"
	kverrors "github.com/charlesng35/typedkv/pkg/errors"
	"github.com/charlesng35/typedkv/pkg/logger"
	"github.com/charlesng35/typedkv/pkg/metrics"
	"github.com/charlesng35/typedkv/pkg/validator"
)

// Config describes one store: a database, a table inside it and the value
// type every entry in that table is encoded with.
type Config struct {
	Database database.Config `json:"database"`
	Table    string          `json:"table" validate:"required,tablename"`
	Type     codec.Type      `json:"type"`

	// Logger overrides the global logger; mainly useful in tests.
	Logger *zap.Logger `json:"-"`
}

// Store is a typed key-value table. The connection and the schema are
// created lazily on the first operation; Close releases the connection and a
// later operation reopens it.
//
// A store assumes a single logical writer per table. Composite operations
// (Add's existence check, TTL eviction during reads) are separate statements
// and race under concurrent writers.
type Store struct {
	cfg   Config
	codec codec.Codec
	log   *zap.Logger

	mu       sync.Mutex
	db       *gorm.DB
	ready    bool
	keyCol   string
	valueCol string
}

// New validates the configuration and returns an unconnected store.
func New(cfg Config) (*Store, error) {
	if err := validator.ValidateStruct(cfg); err != nil {
		return nil, kverrors.NewInvalidArgument(fmt.Sprintf("store config: %v", err))
	}

	c, err := codec.New(cfg.Type)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.WithTable(cfg.Table)
	}

	return &Store{cfg: cfg, codec: c, log: log}, nil
}

// ValueType reports the value type the store encodes with.
func (s *Store) ValueType() codec.Type {
	return s.codec.Type()
}

// TypeInfo reports the declared value type and its storage affinity.
func (s *Store) TypeInfo() TypeInfo {
	return TypeInfo{ValueType: s.codec.Type(), Affinity: s.codec.Affinity()}
}

// Table reports the table name the store writes to.
func (s *Store) Table() string {
	return s.cfg.Table
}

// Close releases the underlying connection. The store stays usable; the next
// operation reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	err := database.Close(s.db)
	s.db = nil
	s.ready = false
	metrics.OpenStores.Dec()

	if err != nil {
		return kverrors.Wrap(err, "close store")
	}
	return nil
}

// conn returns the live connection, opening it and creating the schema on
// first use after construction or Close.
func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return s.db, nil
	}

	db, err := database.Open(s.cfg.Database)
	if err != nil {
		return nil, kverrors.Wrap(err, "open database")
	}

	if err := s.initialise(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	s.db = db
	s.ready = true
	metrics.OpenStores.Inc()
	s.log.Debug("store initialised",
		zap.String("driver", db.Dialector.Name()),
		zap.String("value_type", s.codec.Type().String()))

	return db, nil
}

func (s *Store) initialise(ctx context.Context, db *gorm.DB) error {
	// KEY is reserved in MySQL, so raw conditions go through dialect-quoted
	// identifiers.
	s.keyCol = quoteIdent(db, "key")
	s.valueCol = quoteIdent(db, "value")

	ddl, err := createTableSQL(db, s.cfg.Table, s.codec.Affinity())
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return kverrors.Wrap(err, fmt.Sprintf("create table %s", s.cfg.Table))
	}

	return s.ensureCatalog(ctx, db)
}

var valueColumnTypes = map[string]map[codec.Affinity]string{
	"sqlite": {
		codec.AffinityText:    "TEXT",
		codec.AffinityBlob:    "BLOB",
		codec.AffinityInteger: "INTEGER",
		codec.AffinityReal:    "REAL",
	},
	"postgres": {
		codec.AffinityText:    "TEXT",
		codec.AffinityBlob:    "BYTEA",
		codec.AffinityInteger: "BIGINT",
		codec.AffinityReal:    "DOUBLE PRECISION",
	},
	"mysql": {
		codec.AffinityText:    "LONGTEXT",
		codec.AffinityBlob:    "LONGBLOB",
		codec.AffinityInteger: "BIGINT",
		codec.AffinityReal:    "DOUBLE",
	},
}

var keyColumnTypes = map[string]string{
	"sqlite":   "TEXT",
	"postgres": "VARCHAR(255)",
	"mysql":    "VARCHAR(255)",
}

var timeColumnTypes = map[string]string{
	"sqlite":   "DATETIME",
	"postgres": "TIMESTAMPTZ",
	"mysql":    "DATETIME(3)",
}

func createTableSQL(db *gorm.DB, table string, affinity codec.Affinity) (string, error) {
	dialect := db.Dialector.Name()

	valueType, ok := valueColumnTypes[dialect][affinity]
	if !ok {
		return "", kverrors.NewInvalidArgument(fmt.Sprintf("dialect %q has no column type for affinity %s", dialect, affinity))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s %s PRIMARY KEY, %s %s, created_at %s NOT NULL, updated_at %s NOT NULL)",
		table,
		quoteIdent(db, "key"), keyColumnTypes[dialect],
		quoteIdent(db, "value"), valueType,
		timeColumnTypes[dialect], timeColumnTypes[dialect],
	), nil
}

func quoteIdent(db *gorm.DB, name string) string {
	var sb strings.Builder
	db.Dialector.QuoteTo(&sb, name)
	return sb.String()
}

func validateKey(key string) error {
	if key == "" {
		return kverrors.NewInvalidArgument("key must not be empty")
	}
	if len(key) > MaxKeyLength {
		return kverrors.NewInvalidArgument(fmt.Sprintf("key exceeds %d bytes", MaxKeyLength))
	}
	return nil
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// instrument returns a completion callback recording the operation counter
// and latency histogram for one call.
func (s *Store) instrument(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.StoreOperations.WithLabelValues(s.cfg.Table, op, result).Inc()
		metrics.OperationLatency.WithLabelValues(s.cfg.Table, op).Observe(time.Since(start).Seconds())
	}
}
