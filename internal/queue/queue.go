// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package queue distributes file names to worker processes through a
// Redis list.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/metrics"
)

// Sentinel marks the end of the queue for one consumer.
const Sentinel = ""

// DefaultKey is the Redis list used when none is configured.
const DefaultKey = "emtf-tree:files"

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// PollTimeout bounds each BLPOP so a cancelled feed notices within
	// this time. Redis counts whole seconds.
	PollTimeout time.Duration
}

// Queue is a FIFO of file names in a Redis list.
type Queue struct {
	client *redis.Client
	key    string
	poll   time.Duration
	logger zerolog.Logger
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg Config) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	q := NewWithClient(client, cfg.Key, cfg.PollTimeout)
	q.logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("key", q.key).
		Msg("connected to Redis queue")
	return q, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, key string, poll time.Duration) *Queue {
	if key == "" {
		key = DefaultKey
	}
	if poll < time.Second {
		poll = time.Second
	}
	return &Queue{
		client: client,
		key:    key,
		poll:   poll,
		logger: xglog.WithComponent("queue"),
	}
}

func (q *Queue) Key() string { return q.key }

// Push appends files to the queue. Empty names are rejected since they
// would end a consumer.
func (q *Queue) Push(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	vals := make([]any, len(files))
	for i, f := range files {
		if f == Sentinel {
			return errors.New("cannot queue an empty file name")
		}
		vals[i] = f
	}
	n, err := q.client.RPush(ctx, q.key, vals...).Result()
	if err != nil {
		return fmt.Errorf("push to %q: %w", q.key, err)
	}
	metrics.SetQueuePending(n)
	q.logger.Debug().Int("pushed", len(files)).Int64("pending", n).Msg("files queued")
	return nil
}

// Close appends one sentinel per consumer. Every Feed stops at the first
// sentinel it takes.
func (q *Queue) Close(ctx context.Context, consumers int) error {
	if consumers < 1 {
		return fmt.Errorf("close needs at least one consumer, got %d", consumers)
	}
	vals := make([]any, consumers)
	for i := range vals {
		vals[i] = Sentinel
	}
	if err := q.client.RPush(ctx, q.key, vals...).Err(); err != nil {
		return fmt.Errorf("close %q: %w", q.key, err)
	}
	q.logger.Info().Int("consumers", consumers).Msg("queue closed")
	return nil
}

// Pending is the number of entries in the list, sentinels included.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %q: %w", q.key, err)
	}
	metrics.SetQueuePending(n)
	return n, nil
}

// Clear removes every entry.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("clear %q: %w", q.key, err)
	}
	metrics.SetQueuePending(0)
	return nil
}

// Feed pops files into the returned channel until it takes a sentinel or
// ctx is cancelled, then closes the channel. Redis errors are logged and
// retried.
func (q *Queue) Feed(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		backoff := 100 * time.Millisecond
		for {
			if ctx.Err() != nil {
				return
			}
			res, err := q.client.BLPop(ctx, q.poll, q.key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				q.logger.Warn().Err(err).Dur("backoff", backoff).Msg("pop failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff = min(2*backoff, 5*time.Second)
				continue
			}
			backoff = 100 * time.Millisecond

			// BLPOP replies with the key and the value.
			name := res[1]
			if name == Sentinel {
				q.logger.Debug().Msg("queue end reached")
				return
			}
			if _, err := q.Pending(ctx); err != nil {
				q.logger.Debug().Err(err).Msg("pending count")
			}
			select {
			case <-ctx.Done():
				return
			case out <- name:
			}
		}
	}()
	return out
}

// Disconnect closes the Redis client.
func (q *Queue) Disconnect() error {
	return q.client.Close()
}
