package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkhouse/scribe/config"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Ledger enforces a per-caller admission quota over a shared counter store
// with a rolling window. All cross-request coordination happens in the store;
// the ledger itself holds no mutable state.
type Ledger struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

// NewLedger builds a Ledger over the given redis client.
func NewLedger(client redis.Cmdable, cfg config.QuotaConfig) *Ledger {
	return &Ledger{client: client, limit: int64(cfg.Limit), window: cfg.Window}
}

// Conn dials the counter store and verifies connectivity.
func Conn(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Addr(), err)
	}
	return client, nil
}

// Admit charges one slot for the key and reports whether the request may
// proceed. Admin callers always pass and never touch the counter.
//
// The check is a single INCR-and-compare round trip: the increment is the
// atomicity primitive, so two concurrent requests on the same key can never
// both take the last slot. The window expiry is set only when the increment
// created the key; later increments in the same window leave it untouched so
// quotas reset on schedule. A counter found without an expiry gets the
// window reattached rather than counting forever.
func (l *Ledger) Admit(ctx context.Context, key string, admin bool) (Decision, error) {
	if admin {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("quota admit: %w", err)
	}

	count := incr.Val()
	repaired := false
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("quota window expiry: %w", err)
		}
	} else if ttl.Val() == -1 {
		// the key exists without an expiry, meaning the EXPIRE after the
		// first increment never landed; reattach the window so the counter
		// cannot lock the caller out forever. A live window is never
		// extended here.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("quota window expiry: %w", err)
		}
		repaired = true
	}

	if count > l.limit {
		retry := ttl.Val()
		if repaired {
			retry = l.window
		}
		if retry <= 0 {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true, Remaining: int(l.limit - count)}, nil
}

// IdentityKey derives the counter key for an authenticated subject.
func IdentityKey(subject string) string { return "quota:" + subject }

// AddressKey derives the counter key for an anonymous caller address.
func AddressKey(addr string) string { return "quota:ip:" + addr }
