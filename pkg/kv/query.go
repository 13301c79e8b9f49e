package kv

import (
	"context"
	"fmt"
	"strings"

	"github.com/charlesng35/typedkv/pkg/codec"
	kverrors "github.com/charlesng35/typedkv/pkg/errors"
)

// Keys lists every key in the table in storage scan order.
func (s *Store) Keys(ctx context.Context) (keys []string, err error) {
	done := s.instrument("keys")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	if err = db.WithContext(ctx).Table(s.cfg.Table).Pluck("key", &keys).Error; err != nil {
		return nil, kverrors.Wrap(err, "list keys")
	}
	return keys, nil
}

// GetAll returns every entry decoded, keyed by entry key. Ordering is the
// storage scan order; TTL is not consulted.
func (s *Store) GetAll(ctx context.Context) (map[string]any, error) {
	return s.getBounded(ctx, "get_all", 0)
}

// GetMany returns up to limit entries in storage scan order.
func (s *Store) GetMany(ctx context.Context, limit int) (map[string]any, error) {
	if limit <= 0 {
		return nil, kverrors.NewInvalidArgument("limit must be positive")
	}
	return s.getBounded(ctx, "get_many", limit)
}

func (s *Store) getBounded(ctx context.Context, op string, limit int) (out map[string]any, err error) {
	done := s.instrument(op)
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	q := db.WithContext(ctx).Table(s.cfg.Table)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []map[string]any
	if err = q.Find(&rows).Error; err != nil {
		return nil, kverrors.Wrap(err, "enumerate entries")
	}

	out = make(map[string]any, len(rows))
	for _, row := range rows {
		entry, decodeErr := s.decodeRow(row)
		if decodeErr != nil {
			return nil, decodeErr
		}
		out[entry.Key] = entry.Value
	}
	return out, nil
}

// FindByValue returns the keys whose stored value matches. Exact matching
// compares the encoded wire form. Fuzzy matching (exact == false) is a
// literal substring search on the serialized text and is only available for
// text-affinity stores (TEXT and JSON).
func (s *Store) FindByValue(ctx context.Context, value any, exact bool) (keys []string, err error) {
	done := s.instrument("find_by_value")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if !exact && s.codec.Affinity() != codec.AffinityText {
		return nil, kverrors.ErrUnsupportedOperation.WithMessage(fmt.Sprintf(
			"fuzzy search is not available for %s stores", s.codec.Type()))
	}

	wire, err := s.codec.Encode(value)
	if err != nil {
		return nil, err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	q := db.WithContext(ctx).Table(s.cfg.Table)
	if exact {
		q = q.Where(s.valueCol+" = ?", wire)
	} else {
		probe := columnString(wire)
		q = q.Where(s.valueCol+" LIKE ? ESCAPE '!'", "%"+escapeLike(probe)+"%")
	}

	if err = q.Pluck("key", &keys).Error; err != nil {
		return nil, kverrors.Wrap(err, "search by value")
	}
	return keys, nil
}

// FindByCondition scans the whole table, decodes every value and returns the
// entries the predicate accepts. O(n); unsuitable for large tables.
func (s *Store) FindByCondition(ctx context.Context, predicate func(any) bool) (out map[string]any, err error) {
	done := s.instrument("find_by_condition")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if predicate == nil {
		return nil, kverrors.NewInvalidArgument("predicate must not be nil")
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err = db.WithContext(ctx).Table(s.cfg.Table).Find(&rows).Error; err != nil {
		return nil, kverrors.Wrap(err, "scan entries")
	}

	out = make(map[string]any)
	for _, row := range rows {
		entry, decodeErr := s.decodeRow(row)
		if decodeErr != nil {
			return nil, decodeErr
		}
		if predicate(entry.Value) {
			out[entry.Key] = entry.Value
		}
	}
	return out, nil
}

// ScanPrefix returns the entries whose keys start with prefix, bounded by
// the half-open interval [prefix, prefix+0xFF) on the ordered key column.
// Results are ordered by key, ascending unless ScanOptions.Descending.
func (s *Store) ScanPrefix(ctx context.Context, prefix string, opts ScanOptions) (entries []Entry, err error) {
	done := s.instrument("scan_prefix")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if prefix == "" {
		return nil, kverrors.NewInvalidArgument("prefix must not be empty; use GetAll to enumerate the whole table")
	}
	if opts.Offset > 0 && opts.Limit <= 0 {
		return nil, kverrors.NewInvalidArgument("offset requires a limit")
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}

	q := db.WithContext(ctx).Table(s.cfg.Table).
		Where(s.keyCol+" >= ? AND "+s.keyCol+" < ?", prefix, prefix+"\xff").
		Order(s.keyCol + " " + direction)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var rows []map[string]any
	if err = q.Find(&rows).Error; err != nil {
		return nil, kverrors.Wrap(err, fmt.Sprintf("scan prefix %q", prefix))
	}

	entries = make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry, decodeErr := s.decodeRow(row)
		if decodeErr != nil {
			return nil, decodeErr
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// escapeLike neutralises LIKE wildcards so fuzzy matching is a literal
// substring search. '!' is the escape character in the generated clause.
func escapeLike(s string) string {
	replacer := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return replacer.Replace(s)
}
