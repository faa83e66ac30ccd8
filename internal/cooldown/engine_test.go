package cooldown_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/storage/jsonstore"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type owners map[string]bool

func (o owners) Contains(id string) bool { return o[id] }

// brokenStore fails every call once broken is set and counts calls.
type brokenStore struct {
	cooldown.Store
	mu     sync.Mutex
	broken bool
	calls  int
}

var errDisk = errors.New("disk on fire")

func (b *brokenStore) fail() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.broken {
		return errDisk
	}
	return nil
}

func (b *brokenStore) FindByID(ctx context.Context, key string) (cooldown.Record, error) {
	if err := b.fail(); err != nil {
		return cooldown.Record{}, err
	}
	return b.Store.FindByID(ctx, key)
}

func (b *brokenStore) Create(ctx context.Context, r cooldown.Record) error {
	if err := b.fail(); err != nil {
		return err
	}
	return b.Store.Create(ctx, r)
}

func (b *brokenStore) IncrementCount(ctx context.Context, prev cooldown.Record) (bool, error) {
	if err := b.fail(); err != nil {
		return false, err
	}
	return b.Store.IncrementCount(ctx, prev)
}

func (b *brokenStore) UpdateExpiryAndCount(ctx context.Context, prev cooldown.Record, expires time.Time, count int) (bool, error) {
	if err := b.fail(); err != nil {
		return false, err
	}
	return b.Store.UpdateExpiryAndCount(ctx, prev, expires, count)
}

func newStore(t *testing.T) *jsonstore.Store {
	t.Helper()
	s, err := jsonstore.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newEngine(t *testing.T, store cooldown.Store, c *clock, mutate ...func(*cooldown.Config)) *cooldown.Engine {
	t.Helper()
	cfg := cooldown.DefaultConfig()
	cfg.Now = c.Now
	cfg.Owners = owners{"owner": true}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := cooldown.New(context.Background(), store, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func usage() cooldown.Usage {
	return cooldown.Usage{
		Scope:    cooldown.PerUser,
		Duration: cooldown.Every(3, cooldown.Hours),
		UserID:   "u1",
		ActionID: "command_test",
	}
}

func start(t *testing.T, e *cooldown.Engine, u cooldown.Usage) cooldown.Outcome {
	t.Helper()
	out, err := e.Start(context.Background(), u)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return out
}

func TestEscalation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &clock{now: base}
	e := newEngine(t, store, c)
	u := usage()

	first := start(t, e, u)
	if first.Verdict != cooldown.Pass {
		t.Fatalf("first verdict = %v, want pass", first.Verdict)
	}
	all, _ := store.FindAll(ctx, cooldown.Filter{})
	if len(all) != 1 || all[0].Count != 0 {
		t.Fatalf("records after first = %+v, want one with count 0", all)
	}
	window := base.Add(3 * time.Hour)
	if !all[0].Expires.Equal(window) {
		t.Fatalf("expires = %v, want %v", all[0].Expires, window)
	}

	c.Advance(10 * time.Minute)
	second := start(t, e, u)
	if second.Verdict != cooldown.Denied {
		t.Fatalf("second verdict = %v, want denied", second.Verdict)
	}
	wantMsg := fmt.Sprintf("Sorry, this command is currently on cooldown. Will be available again <t:%d:R>.", window.Unix())
	if second.Message != wantMsg {
		t.Fatalf("second message = %q, want %q", second.Message, wantMsg)
	}
	rec, _ := store.FindByID(ctx, "u1-command_test")
	if rec.Count != 1 || !rec.Expires.Equal(window) {
		t.Fatalf("after second = %+v, want count 1 and unchanged expiry", rec)
	}

	third := start(t, e, u)
	if third.Verdict != cooldown.Denied {
		t.Fatalf("third verdict = %v, want denied", third.Verdict)
	}
	// now + remaining + duration = window + 3h
	extended := window.Add(3 * time.Hour)
	rec, _ = store.FindByID(ctx, "u1-command_test")
	if rec.Count != 2 || !rec.Expires.Equal(extended) {
		t.Fatalf("after third = %+v, want count 2 expiring %v", rec, extended)
	}
	if !strings.HasPrefix(third.Message, "Try that again") || !strings.Contains(third.Message, fmt.Sprint(extended.Unix())) {
		t.Fatalf("third message = %q", third.Message)
	}

	fourth := start(t, e, u)
	if fourth.Verdict != cooldown.Denied || !strings.HasPrefix(fourth.Message, "Congrats") {
		t.Fatalf("fourth = %+v, want sterner denial", fourth)
	}
	rec, _ = store.FindByID(ctx, "u1-command_test")
	if rec.Count != 3 || !rec.Expires.After(extended) {
		t.Fatalf("after fourth = %+v, want count 3 past %v", rec, extended)
	}
}

func TestExpiredWindowStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &clock{now: base}
	e := newEngine(t, store, c)
	u := usage()
	u.Duration = cooldown.Every(1, cooldown.Minutes)

	start(t, e, u)
	start(t, e, u)
	start(t, e, u)

	c.Advance(24 * time.Hour)
	out := start(t, e, u)
	if out.Verdict != cooldown.Pass {
		t.Fatalf("verdict after expiry = %v, want pass", out.Verdict)
	}
	rec, err := store.FindByID(ctx, "u1-command_test")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec.Count != 0 || !rec.Expires.Equal(c.Now().Add(time.Minute)) {
		t.Fatalf("record = %+v, want fresh window", rec)
	}
}

func TestOwnerBypass(t *testing.T) {
	store := newStore(t)
	c := &clock{now: base}
	e := newEngine(t, store, c)
	u := usage()
	u.UserID = "owner"

	if err := store.Create(context.Background(), cooldown.Record{Key: "owner-command_test", Expires: base.Add(time.Hour), Count: 5}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if out := start(t, e, u); out.Verdict != cooldown.Bypassed {
			t.Fatalf("owner verdict = %v, want bypassed", out.Verdict)
		}
	}
	rec, _ := store.FindByID(context.Background(), "owner-command_test")
	if rec.Count != 5 {
		t.Fatalf("bypass touched the record: %+v", rec)
	}
}

func TestOwnerBypassDisabled(t *testing.T) {
	c := &clock{now: base}
	e := newEngine(t, newStore(t), c, func(cfg *cooldown.Config) { cfg.BypassOwners = false })
	u := usage()
	u.UserID = "owner"

	if out := start(t, e, u); out.Verdict != cooldown.Pass {
		t.Fatalf("first = %v, want pass", out.Verdict)
	}
	if out := start(t, e, u); out.Verdict != cooldown.Denied {
		t.Fatalf("second = %v, want denied", out.Verdict)
	}
}

func TestOwnerBypassSkipsStore(t *testing.T) {
	bs := &brokenStore{Store: newStore(t)}
	c := &clock{now: base}
	e := newEngine(t, bs, c)
	bs.broken = true
	bs.calls = 0

	u := usage()
	u.UserID = "owner"
	if out := start(t, e, u); out.Verdict != cooldown.Bypassed {
		t.Fatalf("verdict = %v, want bypassed", out.Verdict)
	}
	if bs.calls != 0 {
		t.Fatalf("store calls = %d, want 0", bs.calls)
	}
}

func TestValidationBeforeStore(t *testing.T) {
	bs := &brokenStore{Store: newStore(t)}
	c := &clock{now: base}
	e := newEngine(t, bs, c)
	bs.calls = 0

	tests := []struct {
		name string
		u    cooldown.Usage
	}{
		{name: "guild scope outside guild", u: cooldown.Usage{Scope: cooldown.PerGuild, Duration: cooldown.Every(1, cooldown.Seconds), UserID: "u1", ActionID: "button_x"}},
		{name: "bad unit", u: cooldown.Usage{Scope: cooldown.PerUser, Duration: cooldown.Every(1, "y"), UserID: "u1", ActionID: "button_x"}},
		{name: "zero amount", u: cooldown.Usage{Scope: cooldown.PerUser, Duration: cooldown.Every(0, cooldown.Seconds), UserID: "u1", ActionID: "button_x"}},
		{name: "owner with bad usage", u: cooldown.Usage{Scope: cooldown.PerUserPerGuild, Duration: cooldown.Millis(100), UserID: "owner", ActionID: "button_x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Start(context.Background(), tt.u)
			if !errors.Is(err, cooldown.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
	if bs.calls != 0 {
		t.Fatalf("store calls = %d, want 0", bs.calls)
	}
}

func TestStoreFailureIsSoft(t *testing.T) {
	bs := &brokenStore{Store: newStore(t)}
	c := &clock{now: base}
	e := newEngine(t, bs, c)
	bs.broken = true

	out, err := e.Start(context.Background(), usage())
	if err != nil {
		t.Fatalf("start returned error: %v", err)
	}
	if out.Verdict != cooldown.SoftFailure {
		t.Fatalf("verdict = %v, want soft failure", out.Verdict)
	}
	if out.UserMessage == "" || strings.Contains(out.UserMessage, errDisk.Error()) {
		t.Fatalf("user message = %q, want sanitized apology", out.UserMessage)
	}
	if !strings.Contains(out.AdminMessage, errDisk.Error()) {
		t.Fatalf("admin message = %q, want store error detail", out.AdminMessage)
	}
	if out.Allowed() || out.Reply() != out.UserMessage {
		t.Fatalf("soft failure must block with the user message: %+v", out)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &clock{now: base}
	e := newEngine(t, store, c)
	u := usage()

	if err := e.Cancel(ctx, u); err != nil {
		t.Fatalf("cancel absent: %v", err)
	}

	start(t, e, u)
	start(t, e, u)
	if err := e.Cancel(ctx, u); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := store.FindByID(ctx, "u1-command_test"); !errors.Is(err, cooldown.ErrNotFound) {
		t.Fatalf("record after cancel err = %v, want ErrNotFound", err)
	}
	if len(e.Active()) != 0 {
		t.Fatalf("mirror after cancel = %+v, want empty", e.Active())
	}
	if out := start(t, e, u); out.Verdict != cooldown.Pass {
		t.Fatalf("verdict after cancel = %v, want pass", out.Verdict)
	}

	bad := u
	bad.Scope = cooldown.PerGuild
	if err := e.Cancel(ctx, bad); !errors.Is(err, cooldown.ErrValidation) {
		t.Fatalf("cancel invalid err = %v, want ErrValidation", err)
	}
}

func TestHydration(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	for _, r := range []cooldown.Record{
		{Key: "old", Expires: base.Add(-time.Minute), Count: 4},
		{Key: "u1-command_test", Expires: base.Add(time.Hour), Count: 1},
	} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	c := &clock{now: base}
	e := newEngine(t, store, c)

	if _, err := store.FindByID(ctx, "old"); !errors.Is(err, cooldown.ErrNotFound) {
		t.Fatalf("expired record survived hydration: %v", err)
	}
	active := e.Active()
	if len(active) != 1 || active[0].Key != "u1-command_test" || active[0].Count != 1 {
		t.Fatalf("active = %+v, want the live record", active)
	}

	// The hydrated count of 1 means the next trigger escalates.
	out := start(t, e, usage())
	if out.Verdict != cooldown.Denied || out.Record.Count != 2 {
		t.Fatalf("out = %+v, want escalated denial", out)
	}
}

func TestCustomMessage(t *testing.T) {
	c := &clock{now: base}
	e := newEngine(t, newStore(t), c, func(cfg *cooldown.Config) {
		cfg.Message = "{FEATURE} resting until {TIME}"
	})
	u := usage()
	u.ActionID = "button_vote"

	start(t, e, u)
	out := start(t, e, u)
	want := fmt.Sprintf("button resting until <t:%d:R>", base.Add(3*time.Hour).Unix())
	if out.Message != want {
		t.Fatalf("message = %q, want %q", out.Message, want)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &clock{now: base}
	e := newEngine(t, store, c)

	short := usage()
	short.Duration = cooldown.Millis(500)
	long := usage()
	long.ActionID = "command_other"

	start(t, e, short)
	start(t, e, long)
	c.Advance(time.Second)

	n, err := e.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	active := e.Active()
	if len(active) != 1 || active[0].Key != "u1-command_other" {
		t.Fatalf("active = %+v, want only the long cooldown", active)
	}
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	c := &clock{now: base}
	e := newEngine(t, newStore(t), c)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunJanitor(ctx, time.Millisecond) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("janitor: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestConcurrentEnginesShareOneStore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &clock{now: base}
	more := func(cfg *cooldown.Config) { cfg.MaxAttempts = 50 }
	engines := []*cooldown.Engine{newEngine(t, store, c, more), newEngine(t, store, c, more)}

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		verdicts = make(map[cooldown.Verdict]int)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(e *cooldown.Engine) {
			defer wg.Done()
			out, err := e.Start(ctx, usage())
			if err != nil {
				t.Errorf("start: %v", err)
				return
			}
			mu.Lock()
			verdicts[out.Verdict]++
			mu.Unlock()
		}(engines[i%len(engines)])
	}
	wg.Wait()

	if verdicts[cooldown.Pass] != 1 {
		t.Fatalf("passes = %d, want exactly 1 (verdicts %v)", verdicts[cooldown.Pass], verdicts)
	}
	if verdicts[cooldown.Denied] != n-1 {
		t.Fatalf("denials = %d, want %d (verdicts %v)", verdicts[cooldown.Denied], n-1, verdicts)
	}
	rec, err := store.FindByID(ctx, "u1-command_test")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec.Count != n-1 {
		t.Fatalf("count = %d, want %d", rec.Count, n-1)
	}
}
