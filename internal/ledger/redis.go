package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"entrypass/internal/pass"
)

var _ Store = &RedisStore{}

const (
	fieldPayload     = "payload"
	fieldCheckInTime = "checkInTime"
)

// RedisStore keeps one hash per pass. The check-in time is written with
// HSETNX so the first writer wins.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a store under keys starting with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "entrypass"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) passKey(id string) string { return s.prefix + ":pass:" + id }
func (s *RedisStore) indexKey() string         { return s.prefix + ":passes" }
func (s *RedisStore) processedKey() string     { return s.prefix + ":processed" }

// Put writes the pass hash and its index entry in one MULTI/EXEC, so a pass
// is either listed and readable or absent.
func (s *RedisStore) Put(ctx context.Context, rec pass.Record) error {
	data, err := json.Marshal(rec.Payload)
	if err != nil {
		return NewFailedToWriteError("Failed to encode pass", err)
	}

	key := s.passKey(rec.ID)
	fields := []any{fieldPayload, data}
	if rec.CheckedIn && rec.CheckInTime != nil {
		fields = append(fields, fieldCheckInTime, formatTime(*rec.CheckInTime))
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return NewPassAlreadyExistsError(rec.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields...)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{
				Score:  float64(rec.Timestamp.UnixMilli()),
				Member: rec.ID,
			})
			return nil
		})
		return err
	}, key)

	var ledgerErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ledgerErr):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return NewPassAlreadyExistsError(rec.ID)
	default:
		return NewFailedToWriteError(fmt.Sprintf("Failed to write pass %q", rec.ID), err)
	}
}

func (s *RedisStore) Get(ctx context.Context, id string) (pass.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.passKey(id)).Result()
	if err != nil {
		return pass.Record{}, NewFailedToFetchError(fmt.Sprintf("Failed to read pass %q", id), err)
	}
	if len(fields) == 0 {
		return pass.Record{}, NewPassNotFoundError(id)
	}
	return decodeRedisRecord(id, fields)
}

func (s *RedisStore) CheckIn(ctx context.Context, id string, at time.Time) (pass.Record, error) {
	exists, err := s.client.HExists(ctx, s.passKey(id), fieldPayload).Result()
	if err != nil {
		return pass.Record{}, NewFailedToFetchError(fmt.Sprintf("Failed to read pass %q", id), err)
	}
	if !exists {
		return pass.Record{}, NewPassNotFoundError(id)
	}

	won, err := s.client.HSetNX(ctx, s.passKey(id), fieldCheckInTime, formatTime(at)).Result()
	if err != nil {
		return pass.Record{}, NewFailedToWriteError(fmt.Sprintf("Failed to check in pass %q", id), err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return pass.Record{}, err
	}
	if !won {
		return rec, NewAlreadyCheckedInError(id)
	}
	return rec, nil
}

func (s *RedisStore) List(ctx context.Context) ([]pass.Record, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, NewFailedToFetchError("Failed to list passes", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.passKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, NewFailedToFetchError("Failed to list passes", err)
	}

	out := make([]pass.Record, 0, len(ids))
	for i, id := range ids {
		rec, err := decodeRedisRecord(id, cmds[i].Val())
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, email string) error {
	if err := s.client.SAdd(ctx, s.processedKey(), email).Err(); err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to mark %q processed", email), err)
	}
	return nil
}

func (s *RedisStore) IsProcessed(ctx context.Context, email string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.processedKey(), email).Result()
	if err != nil {
		return false, NewFailedToFetchError(fmt.Sprintf("Failed to look up %q", email), err)
	}
	return ok, nil
}

func (s *RedisStore) ProcessedCount(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.processedKey()).Result()
	if err != nil {
		return 0, NewFailedToFetchError("Failed to count processed emails", err)
	}
	return int(n), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeRedisRecord(id string, fields map[string]string) (pass.Record, error) {
	raw, ok := fields[fieldPayload]
	if !ok {
		return pass.Record{}, NewPassNotFoundError(id)
	}

	var p pass.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return pass.Record{}, NewFailedToFetchError(fmt.Sprintf("Corrupt pass %q", id), err)
	}

	rec := pass.NewRecord(p)
	if v, ok := fields[fieldCheckInTime]; ok {
		at, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return pass.Record{}, NewFailedToFetchError(fmt.Sprintf("Corrupt check-in time on pass %q", id), err)
		}
		rec.CheckedIn = true
		rec.CheckInTime = &at
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
