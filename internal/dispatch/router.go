// Package dispatch routes inbound events to their modules.
//
// Every event passes through one middleware chain: panic recovery, logging,
// the permission gate, the component ownership check, cooldowns and finally
// the handler. Route never returns an error; failures become replies.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/keshon/interkit/internal/event"
	"github.com/keshon/interkit/internal/module"
	"github.com/keshon/interkit/internal/notify"
	"github.com/keshon/interkit/internal/permission"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/keshon/interkit/internal/dispatch"

// Config wires a Router.
type Config struct {
	Registry *module.Registry
	Gate     permission.Gate
	// Cooldowns may be nil to disable throttling.
	Cooldowns Starter
	Notifier  notify.Notifier
	Logger    zerolog.Logger
	Tracer    trace.Tracer
}

// Router dispatches events.
type Router struct {
	registry *module.Registry
	notifier notify.Notifier
	log      zerolog.Logger
	tracer   trace.Tracer
	chain    Step
}

// New builds a Router.
func New(cfg Config) *Router {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}

	mws := []Middleware{Recover(), Logging(), Authorize(cfg.Gate), OwnerOnly()}
	if cfg.Cooldowns != nil {
		mws = append(mws, Throttle(cfg.Cooldowns, cfg.Notifier))
	}
	return &Router{
		registry: cfg.Registry,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		tracer:   cfg.Tracer,
		chain:    Chain(invoke, mws...),
	}
}

// Route handles one event. The user receives exactly one terminal response
// unless no module is registered for the event.
func (r *Router) Route(ctx context.Context, e *event.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	base, args := module.Split(e.Category, e.RawID)
	if e.Category == event.Text {
		args = e.Args
	}

	ctx, span := r.tracer.Start(ctx, "dispatch.route", trace.WithAttributes(
		attribute.String("dispatch.event_id", e.ID),
		attribute.String("dispatch.category", e.Category.String()),
		attribute.String("dispatch.module", base),
		attribute.Bool("dispatch.autocomplete", e.Autocomplete),
	))
	defer span.End()

	log := r.log.With().
		Str("event_id", e.ID).
		Str("category", e.Category.String()).
		Str("module", base).
		Str("user_id", e.Actor.ID).
		Str("guild_id", e.GuildID).
		Logger()
	ctx = log.WithContext(ctx)

	m, ok := r.registry.Lookup(e.Category, base)
	if !ok {
		log.Warn().Str("raw_id", e.RawID).Msg("no module found for event")
		span.SetStatus(codes.Unset, "unroutable")
		return
	}

	if err := r.chain(ctx, &Call{Event: e, Module: m, Args: args}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.fail(ctx, e, err)
	}
}

// fail answers a failed handler with a generic error reply.
func (r *Router) fail(ctx context.Context, e *event.Event, err error) {
	log := zerolog.Ctx(ctx)

	var p *PanicError
	if errors.As(err, &p) {
		log.Error().Err(err).Bytes("stack", p.Stack).Msg("handler panicked")
		r.notifier.Notify(ctx, fmt.Sprintf("```\n[DISPATCH] %s %q panicked: %v\n```", e.Category, e.RawID, p.Value))
	} else {
		log.Error().Err(err).Msg("handler failed")
	}

	if e.Autocomplete {
		suggest(ctx, e, nil)
		return
	}
	reply(ctx, e, FailureMessage(e.Category, err))
}

// FailureMessage is the reply for a failed handler.
func FailureMessage(c event.Category, err error) string {
	what := "interaction"
	if c == event.Command || c == event.Text {
		what = "command"
	}
	return fmt.Sprintf("There was an error while executing this %s!\n```%s```", what, err.Error())
}
