// Package cooldowntest holds a behavioural test suite shared by every
// cooldown.Store implementation.
package cooldowntest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/keshon/interkit/internal/cooldown"
)

// RunStore exercises the Store contract against stores produced by open.
// Each subtest receives a fresh, empty store.
func RunStore(t *testing.T, open func(t *testing.T) cooldown.Store) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		s := open(t)
		rec := cooldown.Record{Key: "u1-command_ping", Expires: base.Add(time.Minute), Count: 0}
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.FindByID(ctx, rec.Key)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Key != rec.Key || !got.Expires.Equal(rec.Expires) || got.Count != 0 {
			t.Fatalf("find = %+v, want %+v", got, rec)
		}
	})

	t.Run("find missing", func(t *testing.T) {
		s := open(t)
		if _, err := s.FindByID(ctx, "nope"); !errors.Is(err, cooldown.ErrNotFound) {
			t.Fatalf("find missing err = %v, want ErrNotFound", err)
		}
	})

	t.Run("create twice", func(t *testing.T) {
		s := open(t)
		rec := cooldown.Record{Key: "k", Expires: base}
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.Create(ctx, rec); !errors.Is(err, cooldown.ErrExists) {
			t.Fatalf("second create err = %v, want ErrExists", err)
		}
	})

	t.Run("concurrent creates", func(t *testing.T) {
		s := open(t)
		const n = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Create(ctx, cooldown.Record{Key: "race", Expires: base})
				if err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				} else if !errors.Is(err, cooldown.ErrExists) {
					t.Errorf("create: %v", err)
				}
			}()
		}
		wg.Wait()
		if created != 1 {
			t.Fatalf("successful creates = %d, want 1", created)
		}
	})

	t.Run("increment compares previous state", func(t *testing.T) {
		s := open(t)
		rec := cooldown.Record{Key: "k", Expires: base}
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		ok, err := s.IncrementCount(ctx, rec)
		if err != nil || !ok {
			t.Fatalf("increment = %v, %v; want true, nil", ok, err)
		}
		ok, err = s.IncrementCount(ctx, rec)
		if err != nil || ok {
			t.Fatalf("stale increment = %v, %v; want false, nil", ok, err)
		}
		got, _ := s.FindByID(ctx, "k")
		if got.Count != 1 {
			t.Fatalf("count = %d, want 1", got.Count)
		}
		if !got.Expires.Equal(base) {
			t.Fatalf("expires = %v, want unchanged %v", got.Expires, base)
		}
	})

	t.Run("update expiry and count", func(t *testing.T) {
		s := open(t)
		rec := cooldown.Record{Key: "k", Expires: base, Count: 1}
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		later := base.Add(time.Hour)
		ok, err := s.UpdateExpiryAndCount(ctx, rec, later, 2)
		if err != nil || !ok {
			t.Fatalf("update = %v, %v; want true, nil", ok, err)
		}
		ok, err = s.UpdateExpiryAndCount(ctx, rec, later.Add(time.Hour), 3)
		if err != nil || ok {
			t.Fatalf("stale update = %v, %v; want false, nil", ok, err)
		}
		got, _ := s.FindByID(ctx, "k")
		if got.Count != 2 || !got.Expires.Equal(later) {
			t.Fatalf("record = %+v, want count 2 expiring %v", got, later)
		}
	})

	t.Run("conditional delete", func(t *testing.T) {
		s := open(t)
		rec := cooldown.Record{Key: "k", Expires: base}
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		stale := rec
		stale.Expires = base.Add(-time.Second)
		if ok, err := s.DeleteIf(ctx, stale); err != nil || ok {
			t.Fatalf("stale delete = %v, %v; want false, nil", ok, err)
		}
		if ok, err := s.DeleteIf(ctx, rec); err != nil || !ok {
			t.Fatalf("delete = %v, %v; want true, nil", ok, err)
		}
		if _, err := s.FindByID(ctx, "k"); !errors.Is(err, cooldown.ErrNotFound) {
			t.Fatalf("find after delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete by id is idempotent", func(t *testing.T) {
		s := open(t)
		if err := s.DeleteByID(ctx, "absent"); err != nil {
			t.Fatalf("delete absent: %v", err)
		}
		if err := s.Create(ctx, cooldown.Record{Key: "k", Expires: base}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.DeleteByID(ctx, "k"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.FindByID(ctx, "k"); !errors.Is(err, cooldown.ErrNotFound) {
			t.Fatalf("find after delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("filters by expiry", func(t *testing.T) {
		s := open(t)
		for _, r := range []cooldown.Record{
			{Key: "a", Expires: base.Add(-time.Hour)},
			{Key: "b", Expires: base},
			{Key: "c", Expires: base.Add(time.Hour)},
		} {
			if err := s.Create(ctx, r); err != nil {
				t.Fatalf("create %s: %v", r.Key, err)
			}
		}

		expired, err := s.FindAll(ctx, cooldown.Filter{ExpiredBy: base})
		if err != nil {
			t.Fatalf("find expired: %v", err)
		}
		if len(expired) != 2 || expired[0].Key != "a" || expired[1].Key != "b" {
			t.Fatalf("expired = %+v, want a and b", expired)
		}

		n, err := s.DeleteWhere(ctx, cooldown.Filter{ExpiredBy: base})
		if err != nil {
			t.Fatalf("delete where: %v", err)
		}
		if n != 2 {
			t.Fatalf("deleted = %d, want 2", n)
		}
		all, err := s.FindAll(ctx, cooldown.Filter{})
		if err != nil {
			t.Fatalf("find all: %v", err)
		}
		if len(all) != 1 || all[0].Key != "c" {
			t.Fatalf("remaining = %+v, want only c", all)
		}
	})
}
