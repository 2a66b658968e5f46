package cmd

import (
	"sort"
	"strings"
	"sync"
)

// DefaultRegistry is the global registry used by adapters (Discord, CLI, etc.).
var DefaultRegistry = NewRegistry()

// Registry stores commands by name and alias. It does not perform dispatch;
// each adapter looks up commands and invokes them with its own context.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	aliases  map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds a command. Usually called from init() or adapter setup.
func (r *Registry) Register(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(c.Name())] = c
}

// Alias makes alias resolve to the command registered as name.
func (r *Registry) Alias(alias, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[strings.ToLower(alias)] = strings.ToLower(name)
}

// Get returns the command with the given name, or nil.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[strings.ToLower(name)]
}

// Resolve looks name up as a command name first, then as an alias.
func (r *Registry) Resolve(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name = strings.ToLower(name)
	if c, ok := r.commands[name]; ok {
		return c, true
	}
	if target, ok := r.aliases[name]; ok {
		c, ok := r.commands[target]
		return c, ok
	}
	return nil, false
}

// GetAll returns all registered commands, sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}
