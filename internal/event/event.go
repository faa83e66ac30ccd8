// Package event describes one inbound interaction independent of the chat
// platform it arrived on.
package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshon/interkit/internal/permission"
)

// Category is the kind of inbound event, which is also the registry
// namespace its module lives in.
type Category int

const (
	Command Category = iota
	Button
	Menu
	Modal
	Text
)

var categoryNames = [...]string{
	Command: "command",
	Button:  "button",
	Menu:    "menu",
	Modal:   "modal",
	Text:    "prefixCommand",
}

// String is the category label used as the action id prefix.
func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Component reports whether identifiers of this category may carry an
// argument payload.
func (c Category) Component() bool {
	return c == Button || c == Menu || c == Modal
}

// Choice is one autocomplete suggestion.
type Choice struct {
	Name  string
	Value string
}

// Responder answers an event on its transport.
type Responder interface {
	// Reply sends the first response to the event.
	Reply(ctx context.Context, content string) error
	// FollowUp sends a message after a reply or deferral.
	FollowUp(ctx context.Context, content string) error
	// Responded reports whether a reply or deferral was already sent.
	Responded() bool
	// Suggest answers an autocomplete request.
	Suggest(ctx context.Context, choices []Choice) error
}

// Event is one inbound interaction.
type Event struct {
	// ID correlates logs and traces for this event.
	ID       string
	Category Category
	// RawID is the command name or component custom id, possibly with a
	// ":"-separated argument payload.
	RawID        string
	Autocomplete bool

	Actor     permission.Actor
	GuildID   string
	ChannelID string

	// Options holds slash command option values; Focused names the option
	// being completed during autocomplete.
	Options map[string]string
	Focused string
	// Values holds selected menu values.
	Values []string
	// Fields holds submitted modal inputs by custom id.
	Fields map[string]string
	// Args holds the positional arguments of a prefix text command.
	Args []string

	Responder Responder
	// Data is the transport-specific payload, opaque to the router.
	Data any
}

// Respond sends content as a reply, or as a follow-up when a response is
// already in flight.
func (e *Event) Respond(ctx context.Context, content string) error {
	if e.Responder == nil {
		return fmt.Errorf("event %s has no responder", e.ID)
	}
	if e.Responder.Responded() {
		return e.Responder.FollowUp(ctx, content)
	}
	return e.Responder.Reply(ctx, content)
}

// ErrUnsupported is returned when the event's transport lacks a capability.
var ErrUnsupported = errors.New("not supported by this transport")

// ButtonSpec is a clickable component; CustomID routes the click back as a
// Button event.
type ButtonSpec struct {
	Label    string
	CustomID string
}

// Select is a single-choice string select menu.
type Select struct {
	CustomID    string
	Placeholder string
	Options     []Choice
}

// Message is a reply carrying interactive components.
type Message struct {
	Content string
	Buttons []ButtonSpec
	Select  *Select
}

// Input is one text field of a Form.
type Input struct {
	CustomID  string
	Label     string
	Paragraph bool
}

// Form is a modal dialog; its submission arrives as a Modal event.
type Form struct {
	CustomID string
	Title    string
	Inputs   []Input
}

// Presenter is implemented by responders that can send components.
type Presenter interface {
	Present(ctx context.Context, m Message) error
	ShowForm(ctx context.Context, f Form) error
}

// Deferrer is implemented by responders that can acknowledge an event
// before the handler finishes.
type Deferrer interface {
	Defer(ctx context.Context) error
}

// Present sends m with its components, or its content alone when the
// transport cannot render components.
func (e *Event) Present(ctx context.Context, m Message) error {
	if p, ok := e.Responder.(Presenter); ok {
		return p.Present(ctx, m)
	}
	return e.Respond(ctx, m.Content)
}

// ShowForm opens f as the response to e.
func (e *Event) ShowForm(ctx context.Context, f Form) error {
	if p, ok := e.Responder.(Presenter); ok {
		return p.ShowForm(ctx, f)
	}
	return fmt.Errorf("show form %s: %w", f.CustomID, ErrUnsupported)
}

// Defer acknowledges e when its transport supports it; a later Respond then
// follows up.
func (e *Event) Defer(ctx context.Context) error {
	if d, ok := e.Responder.(Deferrer); ok {
		return d.Defer(ctx)
	}
	return nil
}
