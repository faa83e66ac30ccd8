package core

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/interkit/internal/event"
	"github.com/keshon/interkit/internal/module"
)

// Ping answers with the gateway latency.
func Ping(latency func() time.Duration) *module.Command {
	return &module.Command{
		Name:         "ping",
		Description:  "Check bot latency",
		DMPermission: true,
		Run: func(ctx context.Context, e *event.Event) error {
			if latency == nil {
				return e.Respond(ctx, "🏓 Pong!")
			}
			return e.Respond(ctx, fmt.Sprintf("🏓 Pong! %dms", latency().Milliseconds()))
		},
	}
}
