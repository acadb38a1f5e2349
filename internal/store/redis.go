package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	apierrors "vidgate/internal/errors"
	"vidgate/pkg/contracts/domain"
)

// Redis keeps the collection in one hash: one field per normalized license
// key, each value a JSON record. It implements VersionedStore with
// WATCH/MULTI on the hash.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// OpenRedis parses a redis:// URL and returns a store. No connection is made
// until the first call.
func OpenRedis(url, key string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), key), nil
}

// Load reads every field of the hash.
func (r *Redis) Load(ctx context.Context) (Collection, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Collection{}, fmt.Errorf("redis hgetall %s: %v: %w", r.key, err, apierrors.ErrNetwork)
	}

	c := Collection{Records: make([]domain.LicenseRecord, 0, len(fields))}
	for field, raw := range fields {
		var rec domain.LicenseRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return Collection{}, fmt.Errorf("decode license %s: %v: %w", field, err, apierrors.ErrNetwork)
		}
		c.Records = append(c.Records, rec)
	}
	sortRecords(c.Records)
	return c, nil
}

// Save replaces the hash in one MULTI block.
func (r *Redis) Save(ctx context.Context, c Collection) error {
	values := make([]interface{}, 0, 2*len(c.Records))
	for _, rec := range c.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode license: %w", err)
		}
		values = append(values, domain.NormalizeKey(rec.Key), string(payload))
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace %s: %v: %w", r.key, err, apierrors.ErrNetwork)
	}
	return nil
}

// UpdateIfUnchanged implements VersionedStore. The WATCH covers the whole
// hash, so a concurrent write to any license also reports a conflict.
func (r *Redis) UpdateIfUnchanged(ctx context.Context, key string, expectedVersion uint64, rec domain.LicenseRecord) (uint64, error) {
	field := domain.NormalizeKey(key)
	var version uint64

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, r.key, field).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("update %s: %w", field, apierrors.ErrInvalidLicense)
		}
		if err != nil {
			return fmt.Errorf("redis hget %s: %v: %w", field, err, apierrors.ErrNetwork)
		}

		var current domain.LicenseRecord
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return fmt.Errorf("decode license %s: %v: %w", field, err, apierrors.ErrNetwork)
		}
		if current.Version != expectedVersion {
			version = current.Version
			return fmt.Errorf("update %s: stored version %d, expected %d: %w", field, current.Version, expectedVersion, apierrors.ErrConflict)
		}

		next := rec.Clone()
		next.Version = expectedVersion + 1
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode license: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, field, string(payload))
			return nil
		})
		if err != nil {
			return err
		}
		version = next.Version
		return nil
	}

	err := r.client.Watch(ctx, txf, r.key)
	switch {
	case err == nil:
		return version, nil
	case errors.Is(err, redis.TxFailedErr):
		return version, fmt.Errorf("update %s: watched hash changed: %w", field, apierrors.ErrConflict)
	case errors.Is(err, apierrors.ErrConflict), errors.Is(err, apierrors.ErrInvalidLicense), errors.Is(err, apierrors.ErrNetwork):
		return version, err
	default:
		return version, fmt.Errorf("redis update %s: %v: %w", field, err, apierrors.ErrNetwork)
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
