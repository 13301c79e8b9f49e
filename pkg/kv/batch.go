package kv

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	kverrors "github.com/charlesng35/typedkv/pkg/errors"
)

// PutMany upserts pairs in fixed-size batches, each committed independently.
// A failure partway through leaves earlier batches applied; there is no
// cross-batch atomicity. Encoding failures inside one batch are aggregated
// and abort before that batch writes.
func (s *Store) PutMany(ctx context.Context, pairs []Pair, batchSize int) (err error) {
	done := s.instrument("put_many")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if len(pairs) == 0 {
		return nil
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}

	for start := 0; start < len(pairs); start += batchSize {
		end := min(start+batchSize, len(pairs))

		now := time.Now().UTC()
		rows := make([]map[string]any, 0, end-start)
		var encodeErr error
		for _, pair := range pairs[start:end] {
			if keyErr := validateKey(pair.Key); keyErr != nil {
				encodeErr = multierr.Append(encodeErr, keyErr)
				continue
			}
			wire, wireErr := s.codec.Encode(pair.Value)
			if wireErr != nil {
				encodeErr = multierr.Append(encodeErr, fmt.Errorf("key %q: %w", pair.Key, wireErr))
				continue
			}
			rows = append(rows, map[string]any{
				"key":        pair.Key,
				"value":      wire,
				"created_at": now,
				"updated_at": now,
			})
		}
		if encodeErr != nil {
			return encodeErr
		}

		err = db.WithContext(ctx).Table(s.cfg.Table).Clauses(upsert).Create(rows).Error
		if err != nil {
			return kverrors.Wrap(err, fmt.Sprintf("write batch at offset %d", start))
		}
	}

	s.log.Debug("batch write complete",
		zap.Int("pairs", len(pairs)), zap.Int("batch_size", batchSize))
	return nil
}

// DeleteMany removes the given keys in one statement and returns the number
// of rows actually removed. An empty key list is a no-op.
func (s *Store) DeleteMany(ctx context.Context, keys []string) (removed int64, err error) {
	done := s.instrument("delete_many")
	defer func() { done(err) }()
	ctx = ensuredContext(ctx)

	if len(keys) == 0 {
		return 0, nil
	}

	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	res := db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s IN ?", s.cfg.Table, s.keyCol), keys)
	if res.Error != nil {
		return 0, kverrors.Wrap(res.Error, "delete keys")
	}
	return res.RowsAffected, nil
}
