package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/genqueue/pkg/models"
	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// RedisStore implements Store using go-redis/v9. Retention is enforced by key
// expiry; updates run as optimistic WATCH/MULTI transactions and keep the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a new RedisStore from a Redis URL.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts), ttl: ttl, now: time.Now}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Put(ctx context.Context, job *models.Job) error {
	remaining := job.CreatedAt.Add(s.ttl).Sub(s.now())
	if remaining <= 0 {
		// Already outside its window: reads must treat it as unknown.
		return nil
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := s.client.Set(ctx, JobKey(job.ID), data, remaining).Err(); err != nil {
		return fmt.Errorf("put job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	data, err := s.client.Get(ctx, JobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, id uuid.UUID, fn func(*models.Job) error) (*models.Job, error) {
	key := JobKey(id)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		var updated models.Job
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			if err := json.Unmarshal(data, &updated); err != nil {
				return fmt.Errorf("decode job: %w", err)
			}

			if err := fn(&updated); err != nil {
				return err
			}

			out, err := json.Marshal(&updated)
			if err != nil {
				return fmt.Errorf("encode job: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, key, out, redis.SetArgs{KeepTTL: true})
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}

	return nil, fmt.Errorf("update job %s: %w", id, redis.TxFailedErr)
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, JobKey(id)).Err(); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
