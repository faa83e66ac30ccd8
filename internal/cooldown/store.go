package cooldown

import (
	"context"
	"time"
)

// Record is the persisted state of one cooldown window.
type Record struct {
	Key     string
	Expires time.Time
	Count   int
}

// Expired reports whether the window has closed at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.Expires)
}

// Filter narrows FindAll and DeleteWhere. The zero Filter matches every record.
type Filter struct {
	// ExpiredBy matches records whose expiry is at or before this instant.
	ExpiredBy time.Time
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	if !f.ExpiredBy.IsZero() && r.Expires.After(f.ExpiredBy) {
		return false
	}
	return true
}

// Store is the durable home of cooldown records. Timestamps are kept with
// millisecond resolution.
//
// Every mutation that depends on a previously read state is conditional: the
// write applies only when the stored record still matches prev, and the bool
// result reports whether it did. This lets several engines share one store
// without two of them both treating a key as fresh.
type Store interface {
	FindAll(ctx context.Context, f Filter) ([]Record, error)
	// FindByID returns ErrNotFound when the key is absent.
	FindByID(ctx context.Context, key string) (Record, error)
	// Create returns ErrExists when the key is already present.
	Create(ctx context.Context, r Record) error
	IncrementCount(ctx context.Context, prev Record) (bool, error)
	UpdateExpiryAndCount(ctx context.Context, prev Record, expires time.Time, count int) (bool, error)
	DeleteByID(ctx context.Context, key string) error
	// DeleteIf removes the record only while its expiry still equals prev's.
	DeleteIf(ctx context.Context, prev Record) (bool, error)
	DeleteWhere(ctx context.Context, f Filter) (int, error)
}

// Truncate drops sub-millisecond precision and the monotonic reading so that
// an instant survives a store round trip unchanged.
func Truncate(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
