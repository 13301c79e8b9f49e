// Package memo caches function results in a typed key-value store. A wrapped
// function looks its arguments up before running and writes fresh results
// back, so repeated calls with equal arguments hit storage instead of
// recomputing.
package memo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/typedkv/pkg/codec"
	kverrors "github.com/charlesng35/typedkv/pkg/errors"
	"github.com/charlesng35/typedkv/pkg/kv"
	"github.com/charlesng35/typedkv/pkg/logger"
	"github.com/charlesng35/typedkv/pkg/metrics"
)

// Backend is the storage surface a memoized function caches through.
// *kv.Store satisfies it.
type Backend interface {
	Get(ctx context.Context, key string, ttl time.Duration) (any, bool, error)
	Put(ctx context.Context, key string, value any) error
}

// valueTyped is implemented by backends that know their value type. Wrap
// rejects such a backend unless it stores JSON documents, because cached
// results are serialized as JSON.
type valueTyped interface {
	ValueType() codec.Type
}

// Config tunes a memoized function.
type Config struct {
	// TTL bounds the age of a usable cache entry. Zero means entries
	// never expire.
	TTL time.Duration
	// Prefix namespaces cache keys. Defaults to "memo".
	Prefix string
	// Name identifies the function inside the cache key and in metrics.
	// Required, and must be stable across processes for the cache to be
	// shared.
	Name string
	// Logger overrides the package logger.
	Logger *zap.Logger
}

// Wrap returns a memoized version of fn. Results are cached under a key
// derived from the prefix, the function name and the JSON form of the
// argument. Cache trouble never breaks the call: an argument that cannot be
// keyed or a failed read falls through to fn, and a failed write is logged
// and dropped. Errors returned by fn are not cached.
func Wrap[A, R any](backend Backend, cfg Config, fn func(context.Context, A) (R, error)) (func(context.Context, A) (R, error), error) {
	if backend == nil {
		return nil, kverrors.NewInvalidArgument("backend must not be nil")
	}
	if fn == nil {
		return nil, kverrors.NewInvalidArgument("fn must not be nil")
	}
	if cfg.Name == "" {
		return nil, kverrors.NewInvalidArgument("memoized functions need a name")
	}
	if typed, ok := backend.(valueTyped); ok && typed.ValueType() != codec.TypeJSON {
		return nil, kverrors.ErrUnsupportedOperation.WithMessage(fmt.Sprintf(
			"memoization needs a json store, not %s", typed.ValueType()))
	}

	if cfg.Prefix == "" {
		cfg.Prefix = "memo"
	}
	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("memo")
	}

	return func(ctx context.Context, arg A) (R, error) {
		var zero R

		key, err := cacheKey(cfg.Prefix, cfg.Name, arg)
		if err != nil {
			metrics.MemoLookups.WithLabelValues(cfg.Name, "bypass").Inc()
			log.Warn("cache key construction failed, calling through", zap.Error(err))
			return fn(ctx, arg)
		}

		cached, found, err := backend.Get(ctx, key, cfg.TTL)
		if err != nil {
			metrics.MemoLookups.WithLabelValues(cfg.Name, "bypass").Inc()
			log.Warn("cache read failed, calling through",
				zap.String("key", key), zap.Error(err))
			return fn(ctx, arg)
		}
		if found {
			result, decodeErr := materialize[R](cached)
			if decodeErr == nil {
				metrics.MemoLookups.WithLabelValues(cfg.Name, "hit").Inc()
				return result, nil
			}
			log.Debug("cached value does not fit the result type, recomputing",
				zap.String("key", key), zap.Error(decodeErr))
		}

		metrics.MemoLookups.WithLabelValues(cfg.Name, "miss").Inc()
		result, err := fn(ctx, arg)
		if err != nil {
			return zero, err
		}
		if putErr := backend.Put(ctx, key, result); putErr != nil {
			log.Warn("cache write failed", zap.String("key", key), zap.Error(putErr))
		}
		return result, nil
	}, nil
}

// cacheKey builds "<prefix>:<name>:<json args>". Payloads that would push
// the key past the storage limit are folded into a digest so distinct
// arguments keep distinct keys.
func cacheKey(prefix, name string, arg any) (string, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return "", kverrors.NewUnsupportedValue(fmt.Sprintf("argument is not serializable: %v", err))
	}

	key := prefix + ":" + name + ":" + string(raw)
	if len(key) <= kv.MaxKeyLength {
		return key, nil
	}

	digest := sha256.Sum256(raw)
	key = prefix + ":" + name + ":sha256:" + hex.EncodeToString(digest[:])
	if len(key) > kv.MaxKeyLength {
		key = key[:kv.MaxKeyLength]
	}
	return key, nil
}

// materialize re-types a decoded JSON document into R by round-tripping it
// through its serialized form.
func materialize[R any](value any) (R, error) {
	var out R
	raw, err := json.Marshal(value)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
