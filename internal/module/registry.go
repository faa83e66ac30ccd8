package module

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/keshon/interkit/internal/event"
	"github.com/rs/zerolog"
)

// Registry stores modules by category and identifier. It is filled at
// startup and only read while events are dispatched.
type Registry struct {
	mu      sync.RWMutex
	modules map[event.Category]map[string]Module
	aliases map[string]string
	log     zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		modules: make(map[event.Category]map[string]Module),
		aliases: make(map[string]string),
		log:     log,
	}
}

// Register validates m and adds it. Invalid or duplicate modules are logged
// and rejected.
func (r *Registry) Register(m Module) error {
	if err := r.add(m); err != nil {
		r.log.Error().Err(err).Msg("module rejected")
		return err
	}
	r.log.Debug().Str("category", m.Category().String()).Str("module", m.ID()).Msg("module registered")
	return nil
}

func (r *Registry) add(m Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrInvalid)
	}
	if err := m.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cat := m.Category()
	if _, taken := r.lookup(cat, m.ID()); taken {
		return fmt.Errorf("%w: %s %q", ErrDuplicate, cat, m.ID())
	}
	if t, ok := m.(*Text); ok {
		for _, a := range t.Aliases {
			if _, taken := r.lookup(event.Text, a); taken {
				return fmt.Errorf("%w: %s alias %q", ErrDuplicate, cat, a)
			}
		}
		for _, a := range t.Aliases {
			r.aliases[strings.ToLower(a)] = t.Name
		}
	}
	if r.modules[cat] == nil {
		r.modules[cat] = make(map[string]Module)
	}
	r.modules[cat][keyFor(cat, m.ID())] = m
	return nil
}

// Load registers every module and returns the joined rejections. Valid
// modules are registered even when others fail.
func (r *Registry) Load(mods ...Module) error {
	var errs []error
	for _, m := range mods {
		if err := r.Register(m); err != nil {
			errs = append(errs, err)
		}
	}
	loaded := len(mods) - len(errs)
	r.log.Info().Int("loaded", loaded).Int("rejected", len(errs)).Int("total", r.Len()).Msg("modules loaded")
	return errors.Join(errs...)
}

// Lookup returns the module registered under category and id. Text commands
// also resolve by alias, case-insensitively.
func (r *Registry) Lookup(c event.Category, id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(c, id)
}

func (r *Registry) lookup(c event.Category, id string) (Module, bool) {
	key := keyFor(c, id)
	if m, ok := r.modules[c][key]; ok {
		return m, true
	}
	if c == event.Text {
		if name, ok := r.aliases[key]; ok {
			m, ok := r.modules[c][keyFor(c, name)]
			return m, ok
		}
	}
	return nil, false
}

// Commands returns the registered application commands sorted by name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Command, 0, len(r.modules[event.Command]))
	for _, m := range r.modules[event.Command] {
		out = append(out, m.(*Command))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, byID := range r.modules {
		n += len(byID)
	}
	return n
}

func keyFor(c event.Category, id string) string {
	if c == event.Text {
		return strings.ToLower(id)
	}
	return id
}
