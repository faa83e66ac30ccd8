package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/event"
	"github.com/keshon/interkit/internal/module"
	"github.com/keshon/interkit/internal/notify"
	"github.com/keshon/interkit/internal/permission"
	"github.com/rs/zerolog"
)

// Call is a routed event together with its resolved module.
type Call struct {
	Event  *event.Event
	Module module.Module
	Args   []string
}

// Step handles a call. A step that answers the user itself (a denial, a
// cooldown notice) returns nil and does not call the next step.
type Step func(ctx context.Context, c *Call) error

// Middleware wraps a step.
type Middleware func(Step) Step

// Chain wraps final with mws; the first middleware is the outermost.
func Chain(final Step, mws ...Middleware) Step {
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}
	return final
}

// PanicError is a recovered handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic: %v", p.Value) }

// Recover turns panics below it into *PanicError.
func Recover() Middleware {
	return func(next Step) Step {
		return func(ctx context.Context, c *Call) (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = &PanicError{Value: v, Stack: debug.Stack()}
				}
			}()
			return next(ctx, c)
		}
	}
}

// Logging records every call that reaches it with its duration.
func Logging() Middleware {
	return func(next Step) Step {
		return func(ctx context.Context, c *Call) error {
			started := time.Now()
			err := next(ctx, c)
			zerolog.Ctx(ctx).Info().
				Dur("took", time.Since(started)).
				Bool("failed", err != nil).
				Msg("event dispatched")
			return err
		}
	}
}

// Authorize rejects actors the gate denies.
func Authorize(gate permission.Gate) Middleware {
	return func(next Step) Step {
		return func(ctx context.Context, c *Call) error {
			d := gate.Authorize(c.Module.Access(), c.Event.Actor)
			if d.Allowed {
				return next(ctx, c)
			}
			zerolog.Ctx(ctx).Debug().Str("reason", d.Message).Msg("permission denied")
			if c.Event.Autocomplete {
				suggest(ctx, c.Event, deniedChoices)
				return nil
			}
			reply(ctx, c.Event, d.Message)
			return nil
		}
	}
}

// OwnerOnly rejects anyone but the user a component was issued to.
func OwnerOnly() Middleware {
	return func(next Step) Step {
		return func(ctx context.Context, c *Call) error {
			if module.OwnerBound(c.Module) && len(c.Args) > 0 && c.Args[len(c.Args)-1] != c.Event.Actor.ID {
				zerolog.Ctx(ctx).Debug().Msg("component used by another user")
				reply(ctx, c.Event, permission.NotForYou)
				return nil
			}
			return next(ctx, c)
		}
	}
}

// Starter evaluates cooldowns; *cooldown.Engine implements it.
type Starter interface {
	Start(ctx context.Context, u cooldown.Usage) (cooldown.Outcome, error)
}

// Throttle applies module cooldowns. Autocomplete requests are never
// throttled.
func Throttle(engine Starter, notifier notify.Notifier) Middleware {
	return func(next Step) Step {
		return func(ctx context.Context, c *Call) error {
			limit := c.Module.Limit()
			if limit == nil || c.Event.Autocomplete {
				return next(ctx, c)
			}

			out, err := engine.Start(ctx, UsageFor(c.Event, c.Module))
			if err != nil {
				return fmt.Errorf("cooldown for %s: %w", module.ActionID(c.Module), err)
			}

			if out.Allowed() {
				return next(ctx, c)
			}

			reply(ctx, c.Event, out.Reply())

			log := zerolog.Ctx(ctx)
			if out.Verdict == cooldown.SoftFailure {
				log.Warn().Msg("cooldown unavailable, action refused")
				notifier.Notify(ctx, out.AdminMessage)
				return nil
			}
			log.Debug().Int("violations", out.Record.Count).Time("expires", out.Record.Expires).Msg("cooldown active")
			return nil
		}
	}
}

// UsageFor builds the cooldown request for e against m.
func UsageFor(e *event.Event, m module.Module) cooldown.Usage {
	limit := m.Limit()
	u := cooldown.Usage{
		UserID:    e.Actor.ID,
		ActionID:  module.ActionID(m),
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
	}
	if limit != nil {
		u.Scope = limit.Scope
		u.Duration = limit.Duration
	}
	return u
}

// invoke calls the module's handler.
func invoke(ctx context.Context, c *Call) error {
	switch m := c.Module.(type) {
	case *module.Command:
		if !c.Event.Autocomplete {
			return m.Run(ctx, c.Event)
		}
		if m.Autocomplete == nil {
			suggest(ctx, c.Event, nil)
			return nil
		}
		choices, err := m.Autocomplete(ctx, c.Event)
		if err != nil {
			return err
		}
		suggest(ctx, c.Event, choices)
		return nil
	case *module.Button:
		return m.Run(ctx, c.Event, c.Args)
	case *module.Menu:
		return m.Run(ctx, c.Event, c.Args)
	case *module.Modal:
		return m.Run(ctx, c.Event, c.Args)
	case *module.Text:
		return m.Run(ctx, c.Event, c.Args)
	}
	return fmt.Errorf("unsupported module type %T", c.Module)
}

var deniedChoices = []event.Choice{{Name: "Missing Permission", Value: "denied-permission"}}

func reply(ctx context.Context, e *event.Event, content string) {
	if err := e.Respond(ctx, content); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to send reply")
	}
}

func suggest(ctx context.Context, e *event.Event, choices []event.Choice) {
	if e.Responder == nil {
		return
	}
	if err := e.Responder.Suggest(ctx, choices); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to send suggestions")
	}
}
