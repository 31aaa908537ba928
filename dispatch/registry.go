// Package dispatch turns normalized inbound events into automatic
// behaviors and routed command invocations.
package dispatch

import (
	"strings"
	"sync"

	"mini-base/domain"
)

// Registry holds the registered command descriptors. Registration
// happens at startup; lookups run on every inbound message.
type Registry struct {
	mu       sync.RWMutex
	commands []domain.CommandDescriptor
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(descriptors ...domain.CommandDescriptor) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, descriptors...)
	return r
}

// LookupCommand resolves a command-triggered descriptor by exact
// pattern or alias, case insensitive.
func (r *Registry) LookupCommand(name string) (domain.CommandDescriptor, bool) {
	name = strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, desc := range r.commands {
		if desc.Trigger == domain.TriggerCommand && desc.MatchesName(name) {
			return desc, true
		}
	}
	return domain.CommandDescriptor{}, false
}

// Passive returns every descriptor with a non-command trigger.
func (r *Registry) Passive() []domain.CommandDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.CommandDescriptor
	for _, desc := range r.commands {
		if desc.Trigger != domain.TriggerCommand {
			out = append(out, desc)
		}
	}
	return out
}
