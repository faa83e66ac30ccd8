package module

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/keshon/interkit/internal/permission"
)

var (
	// ErrInvalid is matched by every descriptor validation failure.
	ErrInvalid = errors.New("invalid module")
	// ErrDuplicate reports a second module with the same category and id.
	ErrDuplicate = errors.New("duplicate module")
)

var commandName = regexp.MustCompile(`^[-_\p{L}\p{N}]{1,32}$`)

func invalidf(m Module, format string, args ...any) error {
	return fmt.Errorf("%w: %s %q: %s", ErrInvalid, m.Category(), m.ID(), fmt.Sprintf(format, args...))
}

func (c *Command) validate() error {
	if c.Type == Slash {
		if !commandName.MatchString(c.Name) || strings.ToLower(c.Name) != c.Name {
			return invalidf(c, "name must be 1-32 lowercase letters, digits, - or _")
		}
		if strings.TrimSpace(c.Description) == "" {
			return invalidf(c, "description is required")
		}
	} else if strings.TrimSpace(c.Name) == "" {
		return invalidf(c, "name is required")
	}
	if c.Run == nil {
		return invalidf(c, "handler is required")
	}
	if c.Autocomplete != nil && c.Type != Slash {
		return invalidf(c, "only slash commands support autocomplete")
	}
	if err := validateCommon(c, c.Policy, c.Cooldown); err != nil {
		return err
	}
	if c.DMPermission && c.Cooldown != nil && c.Cooldown.Scope.RequiresGuild() {
		return invalidf(c, "%s cooldown cannot apply to a command usable in DMs", c.Cooldown.Scope)
	}
	return nil
}

func (b *Button) validate() error {
	return validateComponent(b, b.Run != nil, b.Policy, b.Cooldown)
}

func (m *Menu) validate() error {
	return validateComponent(m, m.Run != nil, m.Policy, m.Cooldown)
}

func (m *Modal) validate() error {
	return validateComponent(m, m.Run != nil, m.Policy, m.Cooldown)
}

func (t *Text) validate() error {
	if strings.TrimSpace(t.Name) == "" || strings.ContainsAny(t.Name, " \t\n") {
		return invalidf(t, "name is required and must be a single word")
	}
	for _, a := range t.Aliases {
		if strings.TrimSpace(a) == "" || strings.ContainsAny(a, " \t\n") {
			return invalidf(t, "alias %q must be a single word", a)
		}
	}
	if t.Run == nil {
		return invalidf(t, "handler is required")
	}
	return validateCommon(t, t.Policy, t.Cooldown)
}

func validateComponent(m Module, hasRun bool, p permission.Policy, cd *Cooldown) error {
	id := m.ID()
	if strings.TrimSpace(id) == "" {
		return invalidf(m, "custom id is required")
	}
	if strings.Contains(id, Delimiter) {
		return invalidf(m, "custom id must not contain %q", Delimiter)
	}
	if !hasRun {
		return invalidf(m, "handler is required")
	}
	return validateCommon(m, p, cd)
}

func validateCommon(m Module, p permission.Policy, cd *Cooldown) error {
	if p.Roles != nil {
		if p.Roles.Mode != permission.All && p.Roles.Mode != permission.Any {
			return invalidf(m, "unknown role mode %d", int(p.Roles.Mode))
		}
		if len(p.Roles.IDs) == 0 {
			return invalidf(m, "role policy lists no roles")
		}
		for _, id := range p.Roles.IDs {
			if strings.TrimSpace(id) == "" {
				return invalidf(m, "role policy contains a blank role id")
			}
		}
	}
	if cd != nil {
		if _, err := cd.Duration.Normalize(); err != nil {
			return invalidf(m, "%v", err)
		}
		if !cd.Scope.Valid() {
			return invalidf(m, "unknown cooldown scope %s", cd.Scope)
		}
	}
	return nil
}
