// Package notify delivers operator-facing messages such as cooldown store
// failures and handler panics. Delivery is best effort: sinks log their own
// failures and never report them to the caller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/keshon/interkit/pkg/retrylimit"
	"github.com/rs/zerolog"
)

// maxMessage is Discord's message length limit.
const maxMessage = 2000

// Notifier accepts admin messages.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg string)

func (f Func) Notify(ctx context.Context, msg string) { f(ctx, msg) }

// Nop discards messages.
var Nop Notifier = Func(func(context.Context, string) {})

// Log writes messages to a logger at warn level.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Notify(_ context.Context, msg string) {
	l.Logger.Warn().Str("notification", msg).Msg("admin notification")
}

// Multi fans a message out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg string) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, msg)
		}
	}
}

// DirectMessenger is the part of *discordgo.Session used to DM owners.
type DirectMessenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// OwnerDM sends messages as direct messages to the bot owners, paced by an
// adaptive limiter and retried on transient failures.
type OwnerDM struct {
	session DirectMessenger
	owners  []string
	limiter *retrylimit.Limiter
	policy  retrylimit.Policy
	log     zerolog.Logger
	now     func() time.Time
	started time.Time
}

// NewOwnerDM returns a notifier that DMs each owner.
func NewOwnerDM(session DirectMessenger, owners []string, log zerolog.Logger) *OwnerDM {
	policy := retrylimit.DefaultPolicy()
	policy.Logger = log
	return &OwnerDM{
		session: session,
		owners:  owners,
		limiter: retrylimit.NewLimiter(2, 0.2, 5),
		policy:  policy,
		log:     log,
		now:     time.Now,
		started: time.Now(),
	}
}

func (d *OwnerDM) Notify(ctx context.Context, msg string) {
	body := d.format(msg)
	for _, owner := range d.owners {
		err := retrylimit.Do(ctx, d.limiter, d.policy, func() error {
			ch, err := d.session.UserChannelCreate(owner, discordgo.WithContext(ctx))
			if err != nil {
				return classify(err)
			}
			_, err = d.session.ChannelMessageSend(ch.ID, body, discordgo.WithContext(ctx))
			return classify(err)
		})
		if err != nil {
			d.log.Warn().Err(err).Str("owner_id", owner).Msg("failed to notify owner")
		}
	}
}

func (d *OwnerDM) format(msg string) string {
	header := fmt.Sprintf("**Notice** (bot up %s)\n", strings.TrimSuffix(humanize.RelTime(d.started, d.now(), "", ""), " "))
	body := header + msg
	if utf8.RuneCountInString(body) > maxMessage {
		body = string([]rune(body)[:maxMessage-3]) + "..."
	}
	return body
}

// restStatus exposes the HTTP status of a discordgo REST error to retrylimit.
type restStatus struct {
	err  error
	code int
}

func (r *restStatus) Error() string   { return r.err.Error() }
func (r *restStatus) Unwrap() error   { return r.err }
func (r *restStatus) StatusCode() int { return r.code }

func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		code := rest.Response.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			// DMs closed, unknown user and similar will not improve on retry.
			return &retrylimit.Permanent{Err: err}
		}
		return &restStatus{err: err, code: code}
	}
	var limited *discordgo.RateLimitError
	if errors.As(err, &limited) {
		return &restStatus{err: err, code: http.StatusTooManyRequests}
	}
	return err
}
