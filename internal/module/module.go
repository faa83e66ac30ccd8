// Package module defines the handler descriptors the router dispatches to.
//
// Each event category has its own descriptor type with a fixed handler
// signature. The Module interface is sealed, so the set of kinds is closed.
package module

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/event"
	"github.com/keshon/interkit/internal/permission"
)

// Delimiter separates a component's base identifier from its payload;
// ArgDelimiter splits the payload into positional arguments.
const (
	Delimiter    = ":"
	ArgDelimiter = "/"
)

// Cooldown throttles a module.
type Cooldown struct {
	Scope    cooldown.Scope
	Duration cooldown.Duration
}

// Module is implemented by Command, Button, Menu, Modal and Text.
type Module interface {
	ID() string
	Category() event.Category
	Access() permission.Policy
	// Limit returns nil when the module has no cooldown.
	Limit() *Cooldown
	validate() error
}

// Handler runs a command.
type Handler func(ctx context.Context, e *event.Event) error

// ComponentHandler runs a component or text command with its positional
// arguments.
type ComponentHandler func(ctx context.Context, e *event.Event, args []string) error

// CompleteHandler suggests values for the focused command option.
type CompleteHandler func(ctx context.Context, e *event.Event) ([]event.Choice, error)

// CommandType mirrors the application command types.
type CommandType int

const (
	Slash CommandType = iota
	UserMenu
	MessageMenu
)

// Command is a slash or context menu command.
type Command struct {
	Name        string
	Description string
	Type        CommandType
	Options     []*discordgo.ApplicationCommandOption
	// DMPermission allows the command outside guilds.
	DMPermission bool
	// Dev commands are registered to the development guild only.
	Dev bool

	Policy   permission.Policy
	Cooldown *Cooldown

	Run          Handler
	Autocomplete CompleteHandler
}

func (c *Command) ID() string                { return c.Name }
func (c *Command) Category() event.Category  { return event.Command }
func (c *Command) Access() permission.Policy { return c.Policy }
func (c *Command) Limit() *Cooldown          { return c.Cooldown }

// Definition builds the application command sent to Discord.
func (c *Command) Definition() *discordgo.ApplicationCommand {
	def := &discordgo.ApplicationCommand{
		Name:         c.Name,
		DMPermission: &c.DMPermission,
	}
	switch c.Type {
	case UserMenu:
		def.Type = discordgo.UserApplicationCommand
	case MessageMenu:
		def.Type = discordgo.MessageApplicationCommand
	default:
		def.Type = discordgo.ChatApplicationCommand
		def.Description = c.Description
		def.Options = c.Options
	}
	if c.Policy.RequireAdmin {
		perms := int64(discordgo.PermissionAdministrator)
		def.DefaultMemberPermissions = &perms
	}
	return def
}

// Button handles button clicks.
type Button struct {
	CustomID string
	// OwnerArg marks the last argument as the id of the only user allowed
	// to press the button.
	OwnerArg bool
	Policy   permission.Policy
	Cooldown *Cooldown
	Run      ComponentHandler
}

func (b *Button) ID() string                { return b.CustomID }
func (b *Button) Category() event.Category  { return event.Button }
func (b *Button) Access() permission.Policy { return b.Policy }
func (b *Button) Limit() *Cooldown          { return b.Cooldown }

// Menu handles select menu submissions.
type Menu struct {
	CustomID string
	OwnerArg bool
	Policy   permission.Policy
	Cooldown *Cooldown
	Run      ComponentHandler
}

func (m *Menu) ID() string                { return m.CustomID }
func (m *Menu) Category() event.Category  { return event.Menu }
func (m *Menu) Access() permission.Policy { return m.Policy }
func (m *Menu) Limit() *Cooldown          { return m.Cooldown }

// Modal handles modal submissions.
type Modal struct {
	CustomID string
	Policy   permission.Policy
	Cooldown *Cooldown
	Run      ComponentHandler
}

func (m *Modal) ID() string                { return m.CustomID }
func (m *Modal) Category() event.Category  { return event.Modal }
func (m *Modal) Access() permission.Policy { return m.Policy }
func (m *Modal) Limit() *Cooldown          { return m.Cooldown }

// Text is a prefix command typed in chat, e.g. "!ping".
type Text struct {
	Name        string
	Aliases     []string
	Description string
	Policy      permission.Policy
	Cooldown    *Cooldown
	Run         ComponentHandler
}

func (t *Text) ID() string                { return t.Name }
func (t *Text) Category() event.Category  { return event.Text }
func (t *Text) Access() permission.Policy { return t.Policy }
func (t *Text) Limit() *Cooldown          { return t.Cooldown }

// OwnerBound reports whether m restricts its use to the user id in its last
// argument.
func OwnerBound(m Module) bool {
	switch v := m.(type) {
	case *Button:
		return v.OwnerArg
	case *Menu:
		return v.OwnerArg
	}
	return false
}

// ActionID is the cooldown action id of a module, e.g. "button_vote".
func ActionID(m Module) string {
	return m.Category().String() + "_" + m.ID()
}

// Split separates a raw identifier into its base identifier and positional
// arguments. Only component categories carry a payload.
func Split(c event.Category, raw string) (string, []string) {
	if !c.Component() {
		return raw, nil
	}
	base, payload, ok := strings.Cut(raw, Delimiter)
	if !ok {
		return raw, nil
	}
	if payload == "" {
		return base, nil
	}
	return base, strings.Split(payload, ArgDelimiter)
}
