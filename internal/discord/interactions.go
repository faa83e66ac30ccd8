package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/interkit/internal/event"
	"github.com/keshon/interkit/internal/permission"
)

// maxChoices is Discord's autocomplete limit.
const maxChoices = 25

// translateInteraction maps an interaction to an event. Pings and unknown
// interaction types are ignored.
func translateInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) (*event.Event, bool) {
	ev := &event.Event{
		Actor:     interactionActor(i),
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Responder: &interactionResponder{s: s, i: i.Interaction},
		Data:      i,
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		data := i.ApplicationCommandData()
		ev.Category = event.Command
		ev.RawID = data.Name
		ev.Autocomplete = i.Type == discordgo.InteractionApplicationCommandAutocomplete
		ev.Options = make(map[string]string)
		ev.Focused = flattenOptions(data.Options, ev.Options)
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		ev.Category = event.Menu
		if data.ComponentType == discordgo.ButtonComponent {
			ev.Category = event.Button
		}
		ev.RawID = data.CustomID
		ev.Values = data.Values
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		ev.Category = event.Modal
		ev.RawID = data.CustomID
		ev.Fields = modalFields(data.Components)
	default:
		return nil, false
	}
	return ev, true
}

// flattenOptions collects leaf option values into out, descending into
// subcommands, and returns the name of the focused option.
func flattenOptions(opts []*discordgo.ApplicationCommandInteractionDataOption, out map[string]string) string {
	focused := ""
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			out["subcommand"] = o.Name
			if f := flattenOptions(o.Options, out); f != "" {
				focused = f
			}
		default:
			out[o.Name] = fmt.Sprint(o.Value)
			if o.Focused {
				focused = o.Name
			}
		}
	}
	return focused
}

func modalFields(rows []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)
	for _, c := range rows {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				fields[input.CustomID] = input.Value
			}
		}
	}
	return fields
}

func interactionActor(i *discordgo.InteractionCreate) permission.Actor {
	if i.Member != nil && i.Member.User != nil {
		return permission.Actor{
			ID:      i.Member.User.ID,
			IsAdmin: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
			Roles:   i.Member.Roles,
		}
	}
	if i.User != nil {
		return permission.Actor{ID: i.User.ID}
	}
	return permission.Actor{}
}

// interactionResponder answers interactions ephemerally.
type interactionResponder struct {
	s *discordgo.Session
	i *discordgo.Interaction

	mu        sync.Mutex
	responded bool
}

func (r *interactionResponder) Reply(ctx context.Context, content string) error {
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.markResponded()
	}
	return err
}

func (r *interactionResponder) FollowUp(ctx context.Context, content string) error {
	_, err := r.s.FollowupMessageCreate(r.i, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, discordgo.WithContext(ctx))
	return err
}

// Defer acknowledges the interaction so a handler can follow up later.
func (r *interactionResponder) Defer(ctx context.Context) error {
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.markResponded()
	}
	return err
}

func (r *interactionResponder) Responded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responded
}

func (r *interactionResponder) Suggest(ctx context.Context, choices []event.Choice) error {
	if len(choices) > maxChoices {
		choices = choices[:maxChoices]
	}
	out := make([]*discordgo.ApplicationCommandOptionChoice, len(choices))
	for n, c := range choices {
		out[n] = &discordgo.ApplicationCommandOptionChoice{Name: c.Name, Value: c.Value}
	}
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: out},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.markResponded()
	}
	return err
}

func (r *interactionResponder) Present(ctx context.Context, m event.Message) error {
	rows := messageComponents(m)
	if r.Responded() {
		_, err := r.s.FollowupMessageCreate(r.i, true, &discordgo.WebhookParams{
			Content:    m.Content,
			Components: rows,
			Flags:      discordgo.MessageFlagsEphemeral,
		}, discordgo.WithContext(ctx))
		return err
	}
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    m.Content,
			Components: rows,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.markResponded()
	}
	return err
}

// ShowForm opens a modal. Discord only accepts it as the first response.
func (r *interactionResponder) ShowForm(ctx context.Context, f event.Form) error {
	if r.Responded() {
		return fmt.Errorf("show form %s: interaction already answered", f.CustomID)
	}
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   f.CustomID,
			Title:      f.Title,
			Components: formComponents(f),
		},
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.markResponded()
	}
	return err
}

func (r *interactionResponder) markResponded() {
	r.mu.Lock()
	r.responded = true
	r.mu.Unlock()
}

var errNoSuggestions = errors.New("messages cannot carry suggestions")

// messageResponder answers prefix commands in the channel.
type messageResponder struct {
	s *discordgo.Session
	m *discordgo.Message

	mu        sync.Mutex
	responded bool
}

func (r *messageResponder) Reply(ctx context.Context, content string) error {
	_, err := r.s.ChannelMessageSendReply(r.m.ChannelID, content, r.m.Reference(), discordgo.WithContext(ctx))
	if err == nil {
		r.mu.Lock()
		r.responded = true
		r.mu.Unlock()
	}
	return err
}

func (r *messageResponder) FollowUp(ctx context.Context, content string) error {
	_, err := r.s.ChannelMessageSend(r.m.ChannelID, content, discordgo.WithContext(ctx))
	return err
}

func (r *messageResponder) Responded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responded
}

func (r *messageResponder) Present(ctx context.Context, m event.Message) error {
	_, err := r.s.ChannelMessageSendComplex(r.m.ChannelID, &discordgo.MessageSend{
		Content:    m.Content,
		Components: messageComponents(m),
		Reference:  r.m.Reference(),
	}, discordgo.WithContext(ctx))
	if err == nil {
		r.mu.Lock()
		r.responded = true
		r.mu.Unlock()
	}
	return err
}

func (r *messageResponder) ShowForm(_ context.Context, f event.Form) error {
	return fmt.Errorf("show form %s: %w", f.CustomID, event.ErrUnsupported)
}

func (r *messageResponder) Suggest(context.Context, []event.Choice) error {
	return errNoSuggestions
}
