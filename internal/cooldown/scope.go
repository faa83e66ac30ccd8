package cooldown

import (
	"fmt"
	"strings"
)

// Scope selects the dimensions a cooldown is keyed over.
type Scope int

const (
	Global Scope = iota
	PerUser
	PerGuild
	PerUserPerGuild
	PerChannel
	PerUserPerChannel
)

var scopeNames = map[Scope]string{
	Global:            "global",
	PerUser:           "per_user",
	PerGuild:          "per_guild",
	PerUserPerGuild:   "per_user_per_guild",
	PerChannel:        "per_channel",
	PerUserPerChannel: "per_user_per_channel",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Valid reports whether s is one of the declared scopes.
func (s Scope) Valid() bool {
	_, ok := scopeNames[s]
	return ok
}

// RequiresGuild reports whether keys of this scope embed a guild id.
func (s Scope) RequiresGuild() bool {
	return s == PerGuild || s == PerUserPerGuild
}

// DeriveKey maps a usage to its record key. It is pure: equal usages always
// derive equal keys, and the scope alone decides which ids take part.
func DeriveKey(u Usage) (string, error) {
	if u.ActionID == "" {
		return "", invalid("action", "action id is required")
	}
	if u.Scope.RequiresGuild() && u.GuildID == "" {
		return "", invalid("scope", "%s cooldown used outside of a guild", u.Scope)
	}

	switch u.Scope {
	case Global:
		return u.ActionID, nil
	case PerUser:
		return join(u.UserID, u.ActionID), nil
	case PerGuild:
		return join(u.GuildID, u.ActionID), nil
	case PerUserPerGuild:
		return join(u.UserID, u.GuildID, u.ActionID), nil
	case PerChannel:
		return join(u.ChannelID, u.ActionID), nil
	case PerUserPerChannel:
		return join(u.UserID, u.ChannelID, u.ActionID), nil
	default:
		return "", invalid("scope", "unknown scope %d", int(u.Scope))
	}
}

func join(parts ...string) string { return strings.Join(parts, "-") }
