package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/event"
	"github.com/keshon/interkit/internal/module"
)

// testID is the shared custom id of the test components. Payloads look like
// "test:<source>/<target>/<user id>".
const testID = "test"

var fruits = []string{"apple", "banana", "cherry", "grape", "kiwi", "lemon", "mango", "orange", "peach", "pear", "plum"}

// TestCommand is a globally throttled slash command with an autocompleted
// option. It answers with buttons bound to the caller that open the test
// menu and modal.
func TestCommand() *module.Command {
	return &module.Command{
		Name:        "test",
		Description: "Exercise the dispatch pipeline",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:         discordgo.ApplicationCommandOptionString,
			Name:         "fruit",
			Description:  "Pick a fruit",
			Autocomplete: true,
		}},
		Cooldown: &module.Cooldown{
			Scope:    cooldown.Global,
			Duration: cooldown.Every(3, cooldown.Hours),
		},
		Run: func(ctx context.Context, e *event.Event) error {
			fruit := e.Options["fruit"]
			if fruit == "" {
				fruit = "nothing"
			}
			return e.Present(ctx, event.Message{
				Content: fmt.Sprintf("You picked %s.", fruit),
				Buttons: []event.ButtonSpec{
					{Label: "🗳️ menu", CustomID: componentID("from_command", "menu", e.Actor.ID)},
					{Label: "📝 modal", CustomID: componentID("from_command", "modal", e.Actor.ID)},
				},
			})
		},
		Autocomplete: completeFruit,
	}
}

func completeFruit(_ context.Context, e *event.Event) ([]event.Choice, error) {
	prefix := strings.ToLower(e.Options[e.Focused])
	var choices []event.Choice
	for _, f := range fruits {
		if strings.HasPrefix(f, prefix) {
			choices = append(choices, event.Choice{Name: f, Value: f})
		}
	}
	return choices, nil
}

// TestButton opens the test menu or modal named by its second argument. The
// last argument binds it to the user it was sent to.
func TestButton() *module.Button {
	return &module.Button{
		CustomID: testID,
		OwnerArg: true,
		Cooldown: &module.Cooldown{
			Scope:    cooldown.PerUser,
			Duration: cooldown.Every(10, cooldown.Seconds),
		},
		Run: func(ctx context.Context, e *event.Event, args []string) error {
			target := ""
			if len(args) > 1 {
				target = args[1]
			}
			switch target {
			case "menu":
				return e.Present(ctx, event.Message{
					Content: "Pick one:",
					Select: &event.Select{
						CustomID:    componentID("from_button", e.Actor.ID),
						Placeholder: "Fruit",
						Options:     choicesOf(fruits[:5]),
					},
				})
			case "modal":
				return e.ShowForm(ctx, event.Form{
					CustomID: componentID("from_button"),
					Title:    "Test modal",
					Inputs:   []event.Input{{CustomID: "body", Label: "Say something", Paragraph: true}},
				})
			default:
				return echoArgs("Button")(ctx, e, args)
			}
		},
	}
}

// TestMenu echoes the selected values to the user it was sent to.
func TestMenu() *module.Menu {
	return &module.Menu{
		CustomID: testID,
		OwnerArg: true,
		Run: func(ctx context.Context, e *event.Event, args []string) error {
			return e.Respond(ctx, fmt.Sprintf("Selected: %s", strings.Join(e.Values, ", ")))
		},
	}
}

// TestModal echoes the submitted fields in a stable order.
func TestModal() *module.Modal {
	return &module.Modal{
		CustomID: testID,
		Run: func(ctx context.Context, e *event.Event, args []string) error {
			if len(e.Fields) == 0 {
				return e.Respond(ctx, "Nothing submitted.")
			}
			return e.Respond(ctx, formatFields(e.Fields))
		},
	}
}

// TestText is the prefix variant of the test command.
func TestText() *module.Text {
	return &module.Text{
		Name:        "test",
		Aliases:     []string{"t"},
		Description: "Exercise the dispatch pipeline",
		Cooldown: &module.Cooldown{
			Scope:    cooldown.PerUserPerChannel,
			Duration: cooldown.Every(5, cooldown.Seconds),
		},
		Run: echoArgs("Text command"),
	}
}

func componentID(args ...string) string {
	return testID + module.Delimiter + strings.Join(args, module.ArgDelimiter)
}

func choicesOf(values []string) []event.Choice {
	out := make([]event.Choice, len(values))
	for n, v := range values {
		out[n] = event.Choice{Name: v, Value: v}
	}
	return out
}

func echoArgs(what string) module.ComponentHandler {
	return func(ctx context.Context, e *event.Event, args []string) error {
		if len(args) == 0 {
			return e.Respond(ctx, what+" received no arguments.")
		}
		return e.Respond(ctx, fmt.Sprintf("%s received: %s", what, strings.Join(args, ", ")))
	}
}

func formatFields(fields map[string]string) string {
	var sb strings.Builder
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(&sb, "**%s**: %s\n", k, fields[k])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
