package redisx

import "time"

const (
	// Idempotent order placement: idem:order:place:{Idempotency-Key} -> "pending" | order id
	KeyIdemOrderPlace = "idem:order:place:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
