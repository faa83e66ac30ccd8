package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/event"
	"github.com/keshon/interkit/internal/module"
	"github.com/keshon/interkit/internal/permission"
)

// listLimit caps the records shown so the reply stays under the message limit.
const listLimit = 20

// CooldownAdmin is the part of the cooldown engine the admin command uses.
type CooldownAdmin interface {
	Active() []cooldown.Record
	CancelKey(ctx context.Context, key string) error
}

// Cooldowns lets administrators inspect and reset cooldowns.
func Cooldowns(admin CooldownAdmin) *module.Command {
	return &module.Command{
		Name:        "cooldowns",
		Description: "Inspect or reset active cooldowns",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "Show active cooldowns",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "reset",
				Description: "Remove one cooldown",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "key",
					Description:  "Cooldown key",
					Required:     true,
					Autocomplete: true,
				}},
			},
		},
		Policy: permission.Policy{RequireAdmin: true},
		Run: func(ctx context.Context, e *event.Event) error {
			switch e.Options["subcommand"] {
			case "reset":
				key := e.Options["key"]
				if err := e.Defer(ctx); err != nil {
					return err
				}
				if err := admin.CancelKey(ctx, key); err != nil {
					return err
				}
				return e.Respond(ctx, fmt.Sprintf("Cooldown `%s` removed.", key))
			default:
				return e.Respond(ctx, formatActive(admin.Active(), time.Now()))
			}
		},
		Autocomplete: func(_ context.Context, e *event.Event) ([]event.Choice, error) {
			prefix := e.Options[e.Focused]
			var choices []event.Choice
			for _, r := range admin.Active() {
				if strings.HasPrefix(r.Key, prefix) {
					choices = append(choices, event.Choice{Name: r.Key, Value: r.Key})
				}
			}
			return choices, nil
		},
	}
}

func formatActive(records []cooldown.Record, now time.Time) string {
	var live []cooldown.Record
	for _, r := range records {
		if !r.Expired(now) {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return "No active cooldowns."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%d active cooldown(s)**\n", len(live))
	for n, r := range live {
		if n == listLimit {
			fmt.Fprintf(&sb, "…and %d more", len(live)-listLimit)
			break
		}
		fmt.Fprintf(&sb, "`%s` ends %s (violations: %d)\n", r.Key, humanize.RelTime(r.Expires, now, "ago", "from now"), r.Count)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
