// Package cooldown implements a scoped, persistent and escalating rate limiter
// for bot actions.
//
// The Engine keeps an in-memory mirror of active records in front of a Store.
// The store stays the source of truth: every transition is written with a
// conditional operation first and mirrored after, so engines in several
// processes can share one store.
package cooldown

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultMessage is the reply for the first repeat inside a window.
	// {FEATURE} and {TIME} are substituted.
	DefaultMessage = "Sorry, this {FEATURE} is currently on cooldown. Will be available again {TIME}."

	warnMessage     = "Try that again before your cooldown expires and your cooldown time will be increased! Available again %s."
	escalateMessage = "Congrats on your inability to obey cooldown times! Your new time is: %s"
	failureMessage  = "There was an error implementing cooldowns! This error has been sent to the Developer!"

	defaultAttempts = 5
)

// Owners is the privileged actor set exempt from cooldowns.
type Owners interface {
	Contains(userID string) bool
}

// Usage is one request to start a cooldown.
type Usage struct {
	Scope     Scope
	Duration  Duration
	UserID    string
	ActionID  string
	GuildID   string
	ChannelID string
}

// Feature is the category prefix of the action id, e.g. "command" for
// "command_ping".
func (u Usage) Feature() string {
	feature, _, _ := strings.Cut(u.ActionID, "_")
	return feature
}

// Verdict tags an Outcome.
type Verdict int

const (
	Pass Verdict = iota
	Bypassed
	Denied
	SoftFailure
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Bypassed:
		return "bypassed"
	case Denied:
		return "denied"
	case SoftFailure:
		return "soft_failure"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Outcome is the result of Engine.Start.
//
// Message is set for Denied. UserMessage and AdminMessage are set for
// SoftFailure; the admin text is meant for a notification sink, never for
// the user. Record holds the state written for Pass and Denied.
type Outcome struct {
	Verdict      Verdict
	Message      string
	UserMessage  string
	AdminMessage string
	Record       Record
}

// Allowed reports whether the action may run.
func (o Outcome) Allowed() bool {
	return o.Verdict == Pass || o.Verdict == Bypassed
}

// Reply is the text to show the user for a blocking outcome.
func (o Outcome) Reply() string {
	if o.Verdict == SoftFailure {
		return o.UserMessage
	}
	return o.Message
}

// Config tunes an Engine.
type Config struct {
	Owners       Owners
	BypassOwners bool
	// Message replaces DefaultMessage when set.
	Message string
	// Now is the clock; time.Now when nil.
	Now func() time.Time
	// MaxAttempts bounds how often a lost conditional write is retried.
	MaxAttempts int
	Logger      zerolog.Logger
}

// DefaultConfig returns a Config with owner bypass on and the default message.
func DefaultConfig() Config {
	return Config{
		BypassOwners: true,
		Message:      DefaultMessage,
		Now:          time.Now,
		MaxAttempts:  defaultAttempts,
		Logger:       zerolog.Nop(),
	}
}

// Engine evaluates cooldown usages.
type Engine struct {
	store Store
	cfg   Config

	mu      sync.Mutex
	records map[string]Record
}

// New builds an Engine over store and hydrates its mirror: expired records
// are deleted from the store, the rest are loaded.
func New(ctx context.Context, store Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, errors.New("cooldown store is required")
	}
	if cfg.Message == "" {
		cfg.Message = DefaultMessage
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultAttempts
	}

	e := &Engine{
		store:   store,
		cfg:     cfg,
		records: make(map[string]Record),
	}
	if err := e.hydrate(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) hydrate(ctx context.Context) error {
	pruned, err := e.store.DeleteWhere(ctx, Filter{ExpiredBy: e.cfg.Now()})
	if err != nil {
		return fmt.Errorf("prune expired cooldowns: %w", err)
	}
	records, err := e.store.FindAll(ctx, Filter{})
	if err != nil {
		return fmt.Errorf("load cooldowns: %w", err)
	}

	e.mu.Lock()
	for _, r := range records {
		e.records[r.Key] = r
	}
	e.mu.Unlock()

	e.cfg.Logger.Info().Int("loaded", len(records)).Int("pruned", pruned).Msg("cooldowns loaded")
	return nil
}

// Start evaluates one trigger of u.
//
// The returned error is always a *ValidationError; store failures are folded
// into a SoftFailure outcome instead.
func (e *Engine) Start(ctx context.Context, u Usage) (Outcome, error) {
	length, err := u.Duration.Normalize()
	if err != nil {
		return Outcome{}, err
	}
	key, err := DeriveKey(u)
	if err != nil {
		return Outcome{}, err
	}

	if e.cfg.BypassOwners && e.cfg.Owners != nil && e.cfg.Owners.Contains(u.UserID) {
		return Outcome{Verdict: Bypassed}, nil
	}

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		out, done, err := e.step(ctx, key, length, u)
		if err != nil {
			return e.softFailure(key, u, err), nil
		}
		if done {
			return out, nil
		}
		e.cfg.Logger.Debug().Str("key", key).Int("attempt", attempt).Msg("cooldown write lost a race, retrying")
	}
	return e.softFailure(key, u, ErrConflict), nil
}

// step runs one read-decide-write pass. done is false when a conditional write
// lost against another writer and the mirror has been refreshed from the store.
func (e *Engine) step(ctx context.Context, key string, length time.Duration, u Usage) (Outcome, bool, error) {
	now := e.cfg.Now()
	rec, ok := e.lookup(key)

	if ok && rec.Expired(now) {
		deleted, err := e.store.DeleteIf(ctx, rec)
		if err != nil {
			return Outcome{}, false, fmt.Errorf("delete expired %q: %w", key, err)
		}
		if !deleted {
			return Outcome{}, false, e.reload(ctx, key)
		}
		e.forget(key, rec)
		ok = false
	}

	if !ok {
		fresh := Record{Key: key, Expires: Truncate(now.Add(length)), Count: 0}
		err := e.store.Create(ctx, fresh)
		if errors.Is(err, ErrExists) {
			return Outcome{}, false, e.reload(ctx, key)
		}
		if err != nil {
			return Outcome{}, false, fmt.Errorf("create %q: %w", key, err)
		}
		e.remember(fresh)
		return Outcome{Verdict: Pass, Record: fresh}, true, nil
	}

	if rec.Count == 0 {
		swapped, err := e.store.IncrementCount(ctx, rec)
		if err != nil {
			return Outcome{}, false, fmt.Errorf("increment %q: %w", key, err)
		}
		if !swapped {
			return Outcome{}, false, e.reload(ctx, key)
		}
		rec.Count = 1
		e.remember(rec)
		return Outcome{Verdict: Denied, Message: e.firstRepeat(u, rec.Expires), Record: rec}, true, nil
	}

	remaining := rec.Expires.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	next := Record{Key: key, Expires: Truncate(now.Add(remaining + length)), Count: rec.Count + 1}
	swapped, err := e.store.UpdateExpiryAndCount(ctx, rec, next.Expires, next.Count)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("extend %q: %w", key, err)
	}
	if !swapped {
		return Outcome{}, false, e.reload(ctx, key)
	}
	e.remember(next)

	msg := fmt.Sprintf(escalateMessage, relative(next.Expires))
	if rec.Count == 1 {
		msg = fmt.Sprintf(warnMessage, relative(next.Expires))
	}
	return Outcome{Verdict: Denied, Message: msg, Record: next}, true, nil
}

// Cancel removes the cooldown for u from the mirror and the store. Cancelling
// an absent cooldown is a no-op.
func (e *Engine) Cancel(ctx context.Context, u Usage) error {
	key, err := DeriveKey(u)
	if err != nil {
		return err
	}
	return e.CancelKey(ctx, key)
}

// CancelKey is Cancel for an already derived key.
func (e *Engine) CancelKey(ctx context.Context, key string) error {
	e.mu.Lock()
	delete(e.records, key)
	e.mu.Unlock()

	if err := e.store.DeleteByID(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("cancel cooldown %q: %w", key, err)
	}
	return nil
}

// Prune drops every expired record from the store and the mirror.
func (e *Engine) Prune(ctx context.Context) (int, error) {
	now := e.cfg.Now()
	n, err := e.store.DeleteWhere(ctx, Filter{ExpiredBy: now})
	if err != nil {
		return 0, fmt.Errorf("prune cooldowns: %w", err)
	}

	e.mu.Lock()
	for key, r := range e.records {
		if r.Expired(now) {
			delete(e.records, key)
		}
	}
	e.mu.Unlock()
	return n, nil
}

// Active returns a copy of the mirrored records ordered by key.
func (e *Engine) Active() []Record {
	e.mu.Lock()
	out := make([]Record, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (e *Engine) lookup(key string) (Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[key]
	return r, ok
}

func (e *Engine) remember(r Record) {
	e.mu.Lock()
	e.records[r.Key] = r
	e.mu.Unlock()
}

// forget drops key unless another event already replaced the mirrored record.
func (e *Engine) forget(key string, seen Record) {
	e.mu.Lock()
	if cur, ok := e.records[key]; ok && cur.Count == seen.Count && cur.Expires.Equal(seen.Expires) {
		delete(e.records, key)
	}
	e.mu.Unlock()
}

// reload replaces the mirrored record for key with the stored one.
func (e *Engine) reload(ctx context.Context, key string) error {
	r, err := e.store.FindByID(ctx, key)
	if errors.Is(err, ErrNotFound) {
		e.mu.Lock()
		delete(e.records, key)
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload %q: %w", key, err)
	}
	e.remember(r)
	return nil
}

func (e *Engine) firstRepeat(u Usage, expires time.Time) string {
	return strings.NewReplacer(
		"{TIME}", relative(expires),
		"{FEATURE}", u.Feature(),
	).Replace(e.cfg.Message)
}

func (e *Engine) softFailure(key string, u Usage, err error) Outcome {
	detail := fmt.Sprintf("[COOLDOWNS] error occurred in cooldowns for %s (key %q, user %s): %v", u.ActionID, key, u.UserID, err)
	e.cfg.Logger.Error().Err(err).Str("key", key).Str("action", u.ActionID).Msg("cooldown store failure")
	return Outcome{
		Verdict:      SoftFailure,
		UserMessage:  failureMessage,
		AdminMessage: "```\n" + detail + "\n```",
	}
}

// relative renders t as a Discord relative timestamp.
func relative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
