package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports the reachability of the backing stores.
type Health struct {
	pg  Pinger
	rdb *redis.Client
}

// NewHealth creates a Health checker.
func NewHealth(pool *pgxpool.Pool, rdb *redis.Client) *Health {
	h := &Health{rdb: rdb}
	if pool != nil {
		h.pg = pool
	}
	return h
}

// Check pings each store and returns "ok" or the error text per store.
// healthy is false when any store is unreachable.
func (h *Health) Check(ctx context.Context) (status map[string]string, healthy bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status = map[string]string{}
	healthy = true

	if h.pg != nil {
		if err := h.pg.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
			healthy = false
		} else {
			status["postgres"] = "ok"
		}
	}
	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			healthy = false
		} else {
			status["redis"] = "ok"
		}
	}
	return status, healthy
}
