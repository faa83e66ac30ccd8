// Package core holds the built-in handler modules.
package core

import (
	"time"

	"github.com/keshon/interkit/internal/module"
)

// Deps are the runtime services the built-in modules read from.
type Deps struct {
	// Latency reports the gateway heartbeat latency; nil hides it.
	Latency func() time.Duration
	// Cooldowns enables the admin cooldown command when set.
	Cooldowns CooldownAdmin
}

// Modules returns every built-in module, ready for module.Registry.Load.
func Modules(d Deps) []module.Module {
	mods := []module.Module{
		Ping(d.Latency),
		TestCommand(),
		TestButton(),
		TestMenu(),
		TestModal(),
		TestText(),
	}
	if d.Cooldowns != nil {
		mods = append(mods, Cooldowns(d.Cooldowns))
	}
	return mods
}
