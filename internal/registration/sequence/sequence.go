// Package sequence allocates the monotonically increasing ordinals that
// feed credential IDs. Every backend guarantees distinct values under
// concurrent callers; gaps are allowed.
package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"eventpass/pkg/platform/sentinel"
	"eventpass/pkg/platform/tx"
)

// Memory allocates from a process-local counter.
type Memory struct {
	last atomic.Int64
}

// NewMemory returns an allocator whose first value is start+1.
func NewMemory(start int64) *Memory {
	m := &Memory{}
	m.last.Store(start)
	return m
}

func (m *Memory) Next(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.last.Add(1), nil
}

// DefaultRedisKey is the counter key used by the Redis allocator.
const DefaultRedisKey = "eventpass:profile_sequence"

// Redis allocates with INCR on a single key.
type Redis struct {
	client redis.Cmdable
	key    string
}

func NewRedis(client redis.Cmdable, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Next(ctx context.Context) (int64, error) {
	n, err := r.client.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", r.key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return n, nil
}

// Postgres allocates from the profile_sequence database sequence. It joins
// the transaction carried in ctx, if any.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Next(ctx context.Context) (int64, error) {
	var n int64
	if err := tx.Pick(ctx, p.db).QueryRowContext(ctx, `SELECT nextval('profile_sequence')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("nextval profile_sequence: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return n, nil
}

// SQLite allocates from the single-row profile_sequence table. SQLite
// serialises writers, so the increment-and-return is atomic.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Next(ctx context.Context) (int64, error) {
	var n int64
	err := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`UPDATE profile_sequence SET value = value + 1 WHERE id = 1 RETURNING value`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment profile_sequence: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return n, nil
}
