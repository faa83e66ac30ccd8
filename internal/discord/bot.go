// Package discord connects the router to the Discord gateway: it turns
// interactions and prefixed messages into events, answers them through
// Discord responders and keeps application commands registered.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/interkit/internal/dispatch"
	"github.com/keshon/interkit/internal/event"
	"github.com/keshon/interkit/internal/module"
	"github.com/rs/zerolog"
)

// interactionDeadline bounds one dispatch; interaction tokens expire after
// fifteen minutes.
const interactionDeadline = 15 * time.Minute

// Options configures a Bot.
type Options struct {
	AppID      string
	DevGuildID string
	Prefix     string
	// RegisterCommands syncs application commands when the session is ready.
	RegisterCommands bool
	CacheDir         string
}

// Bot is a Discord gateway client feeding a dispatch.Router.
type Bot struct {
	dg       *discordgo.Session
	opts     Options
	router   *dispatch.Router
	registry *module.Registry
	log      zerolog.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// New creates the session without connecting it.
func New(token string, opts Options, router *dispatch.Router, registry *module.Registry, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &Bot{
		dg:       dg,
		opts:     opts,
		router:   router,
		registry: registry,
		log:      log,
		ctx:      context.Background(),
	}, nil
}

// Session exposes the underlying session, e.g. for owner notifications.
func (b *Bot) Session() *discordgo.Session { return b.dg }

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onMessageCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) baseContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("connected to Discord")

	if !b.opts.RegisterCommands {
		b.log.Info().Msg("command registration skipped")
		return
	}
	appID := b.opts.AppID
	if appID == "" {
		appID = r.User.ID
	}
	b.registerCommands(appID)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev, ok := translateInteraction(s, i)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(b.baseContext(), interactionDeadline)
	defer cancel()
	b.router.Route(ctx, ev)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	name, args, ok := parsePrefixed(b.opts.Prefix, m.Content)
	if !ok {
		return
	}

	ev := &event.Event{
		Category:  event.Text,
		RawID:     name,
		Args:      args,
		Actor:     messageActor(s, m),
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Responder: &messageResponder{s: s, m: m.Message},
		Data:      m,
	}
	ctx, cancel := context.WithTimeout(b.baseContext(), interactionDeadline)
	defer cancel()
	b.router.Route(ctx, ev)
}

// parsePrefixed splits "!name a b" into its lowercased name and arguments.
func parsePrefixed(prefix, content string) (string, []string, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
