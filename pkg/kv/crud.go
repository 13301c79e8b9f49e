package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	kverrors "github.com/charlesng35/typedkv/pkg/errors"
	"github.com/charlesng35/typedkv/pkg/metrics"
)

// Put upserts the entry for key. An existing row keeps its created_at; value
// and updated_at are refreshed. The write is committed before Put returns.
func (s *Store) Put(ctx context.Context, key string, value any) (err error) {
	done := s.instrument("put")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if err = validateKey(key); err != nil {
		return err
	}

	wire, err := s.codec.Encode(value)
	if err != nil {
		return err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	row := map[string]any{
		"key":        key,
		"value":      wire,
		"created_at": now,
		"updated_at": now,
	}

	err = db.WithContext(ctx).Table(s.cfg.Table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(row).Error
	if err != nil {
		return kverrors.Wrap(err, fmt.Sprintf("put %q", key))
	}
	return nil
}

// Get returns the decoded value for key, or found == false when the key is
// absent. With ttl > 0 an entry older than ttl is deleted as a side effect
// and reported absent; that read is the only eviction trigger.
func (s *Store) Get(ctx context.Context, key string, ttl time.Duration) (any, bool, error) {
	entry, found, err := s.GetEntry(ctx, key, ttl)
	if err != nil || !found {
		return nil, found, err
	}
	return entry.Value, true, nil
}

// GetEntry behaves like Get but returns the entry with its timestamps.
func (s *Store) GetEntry(ctx context.Context, key string, ttl time.Duration) (entry *Entry, found bool, err error) {
	done := s.instrument("get")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if err = validateKey(key); err != nil {
		return nil, false, err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, false, err
	}

	var row map[string]any
	err = db.WithContext(ctx).Table(s.cfg.Table).
		Where(s.keyCol+" = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kverrors.Wrap(err, fmt.Sprintf("read %q", key))
	}

	entry, err = s.decodeRow(row)
	if err != nil {
		return nil, false, err
	}

	if ttl > 0 && time.Now().UTC().Sub(entry.CreatedAt) > ttl {
		if _, err = s.deleteKey(ctx, db, key); err != nil {
			return nil, false, err
		}
		metrics.ExpiredReads.WithLabelValues(s.cfg.Table).Inc()
		s.log.Debug("expired entry evicted", zap.String("key", key))
		return nil, false, nil
	}

	return entry, true, nil
}

// Add inserts the entry only if key is absent; a present key fails with the
// key-exists error. The existence check and the insert are separate
// statements, which is safe under this store's single-writer assumption.
func (s *Store) Add(ctx context.Context, key string, value any) (err error) {
	done := s.instrument("add")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if err = validateKey(key); err != nil {
		return err
	}

	wire, err := s.codec.Encode(value)
	if err != nil {
		return err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	exists, err := s.hasKey(ctx, db, key)
	if err != nil {
		return err
	}
	if exists {
		return kverrors.ErrKeyExists.WithMessage(fmt.Sprintf("key %q already exists", key))
	}

	now := time.Now().UTC()
	err = db.WithContext(ctx).Table(s.cfg.Table).Create(map[string]any{
		"key":        key,
		"value":      wire,
		"created_at": now,
		"updated_at": now,
	}).Error
	if err != nil {
		return kverrors.Wrap(err, fmt.Sprintf("add %q", key))
	}
	return nil
}

// Delete removes the entry and reports whether a row was actually removed.
func (s *Store) Delete(ctx context.Context, key string) (removed bool, err error) {
	done := s.instrument("delete")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if err = validateKey(key); err != nil {
		return false, err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	return s.deleteKey(ctx, db, key)
}

// Has probes for key without decoding the value. TTL is ignored; an expired
// but unevicted entry still reports true.
func (s *Store) Has(ctx context.Context, key string) (found bool, err error) {
	done := s.instrument("has")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if err = validateKey(key); err != nil {
		return false, err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	return s.hasKey(ctx, db, key)
}

// Clear removes every entry in the table.
func (s *Store) Clear(ctx context.Context) (err error) {
	done := s.instrument("clear")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	res := db.WithContext(ctx).Exec("DELETE FROM " + s.cfg.Table)
	if res.Error != nil {
		return kverrors.Wrap(res.Error, "clear table")
	}

	s.log.Info("table cleared", zap.Int64("removed", res.RowsAffected))
	return nil
}

// Count returns the number of entries in the table, expired ones included.
func (s *Store) Count(ctx context.Context) (n int64, err error) {
	done := s.instrument("count")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	if err = db.WithContext(ctx).Table(s.cfg.Table).Count(&n).Error; err != nil {
		return 0, kverrors.Wrap(err, "count entries")
	}
	return n, nil
}

func (s *Store) hasKey(ctx context.Context, db *gorm.DB, key string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Table(s.cfg.Table).
		Where(s.keyCol+" = ?", key).Count(&n).Error
	if err != nil {
		return false, kverrors.Wrap(err, fmt.Sprintf("probe %q", key))
	}
	return n > 0, nil
}

func (s *Store) deleteKey(ctx context.Context, db *gorm.DB, key string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.cfg.Table, s.keyCol), key)
	if res.Error != nil {
		return false, kverrors.Wrap(res.Error, fmt.Sprintf("delete %q", key))
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) decodeRow(row map[string]any) (*Entry, error) {
	value, err := s.codec.Decode(row["value"])
	if err != nil {
		return nil, err
	}

	created, err := columnTime(row["created_at"])
	if err != nil {
		return nil, kverrors.Wrap(err, "parse created_at")
	}
	updated, err := columnTime(row["updated_at"])
	if err != nil {
		return nil, kverrors.Wrap(err, "parse updated_at")
	}

	return &Entry{
		Key:       columnString(row["key"]),
		Value:     value,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func columnString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// columnTime tolerates drivers that return timestamps as text.
func columnTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
