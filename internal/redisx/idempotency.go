package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Idempotency remembers which order a client-supplied key produced. A key
// is claimed before the order is placed so concurrent retries place it once.
type Idempotency struct {
	rdb redis.Cmdable
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency { return &Idempotency{rdb: rdb} }

const pending = "pending"

// Claim reserves key for the caller. When it is already taken Claim returns
// the order id stored for it, or 0 while its placement is still running.
func (i *Idempotency) Claim(ctx context.Context, key string) (orderID int64, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderPlace, key)
	ok, err := i.rdb.SetNX(ctx, k, pending, TTLIdempotency).Result()
	if err != nil || ok {
		return 0, ok, err
	}
	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) || v == pending {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency key %q: %w", key, err)
	}
	return id, false, nil
}

// Complete stores the order id for a claimed key.
func (i *Idempotency) Complete(ctx context.Context, key string, orderID int64) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderPlace, key), orderID, TTLIdempotency).Err()
}

// Release frees a claimed key after a failed placement.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(KeyIdemOrderPlace, key)).Err()
}

// Dedup marks events as processed per service.
type Dedup struct {
	rdb     redis.Cmdable
	service string
}

func NewDedup(rdb redis.Cmdable, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

// FirstSeen atomically marks id and reports whether this call was the first.
func (d *Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, id), 1, TTLDedup).Result()
}

// Forget unmarks id so a failed event can be processed again.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, id)).Err()
}
