package profile

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Iron-Ham/vitals/internal/errors"
	"github.com/Iron-Ham/vitals/internal/logging"
)

// DefaultAgentType is the profile used for agent types with no registered
// profile of their own.
const DefaultAgentType = "default"

// builtinRawPatterns returns the built-in detection patterns for the known
// agent tools. The tables are data, not code: each entry is an ordered list
// of "re:" regex and plain substring patterns matched against the tail of a
// session's output window.
func builtinRawPatterns() map[string]RawPatterns {
	return map[string]RawPatterns{
		"claude": {
			BusyPatterns: []string{
				`re:(?m)^[✳✽✶✻✢·]\s*.+…`, // spinner + ellipsis, anchored to line start
				"ctrl+c to interrupt",
				"esc to interrupt",
			},
			PromptPatterns: []string{
				`re:(?m)^>\s*$`, // bare input prompt
				`re:│\s*>`,      // boxed input prompt
			},
		},
		"gemini": {
			BusyPatterns:   []string{"esc to cancel"},
			PromptPatterns: []string{"gemini>", "Type your message"},
		},
		"opencode": {
			BusyPatterns: []string{
				"esc interrupt",
				"esc to exit",
				"thinking...",
				"generating...",
				"building tool call...",
				"waiting for tool response...",
				`re:[█▓▒░]`, // pulse spinner
			},
			PromptPatterns: []string{"Ask anything", "press enter to send"},
		},
		"codex": {
			BusyPatterns: []string{
				"ctrl+c to interrupt",
				"esc to interrupt",
				"press esc to interrupt",
			},
			PromptPatterns: []string{"How can I help", "codex>", "Continue?"},
		},
		"shell": {
			PromptPatterns: []string{"$ ", "# ", "% ", "❯ ", "➜ "},
		},
		DefaultAgentType: {
			BusyPatterns: []string{
				`re:[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]`, // braille spinner
				"esc to interrupt",
				"ctrl+c to interrupt",
			},
			PromptPatterns: []string{"$ ", "# ", "% ", `re:(?m)^>\s*$`},
		},
	}
}

// Registry maps agent types to compiled profiles. Lookups for unknown agent
// types fall back to the default profile, so classification always has
// patterns to work with. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	defaults map[string]RawPatterns // built-in tables, never mutated
	logger   *logging.Logger
}

// NewRegistry creates a registry populated with the built-in profiles.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}

	r := &Registry{
		profiles: make(map[string]*Profile),
		defaults: builtinRawPatterns(),
		logger:   logger.WithComponent("profile"),
	}
	for agentType, raw := range r.defaults {
		r.profiles[agentType] = Compile(agentType, raw, r.logger)
	}
	return r
}

// Get returns the profile for an agent type, falling back to the default
// profile when the type is unknown. Never returns nil.
func (r *Registry) Get(agentType string) *Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.profiles[strings.ToLower(agentType)]; ok {
		return p
	}
	return r.profiles[DefaultAgentType]
}

// Lookup returns the profile registered for an agent type. Unlike Get it
// does not fall back: unknown types return ErrProfileNotFound.
func (r *Registry) Lookup(agentType string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[strings.ToLower(agentType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrProfileNotFound, agentType)
	}
	return p, nil
}

// Register compiles raw patterns and installs them for an agent type,
// replacing any existing profile for that type.
func (r *Registry) Register(agentType string, raw RawPatterns) {
	key := strings.ToLower(agentType)
	p := Compile(key, raw, r.logger)

	r.mu.Lock()
	r.profiles[key] = p
	r.mu.Unlock()

	r.logger.Debug("registered profile",
		"agent_type", key,
		"busy_patterns", len(raw.BusyPatterns),
		"prompt_patterns", len(raw.PromptPatterns))
}

// ApplyOverrides rebuilds every profile from the built-in defaults and layers
// the given overrides on top. Agent types present in an earlier override set
// but absent from this one revert to their built-in patterns; agent types
// added through Register are dropped unless re-registered.
func (r *Registry) ApplyOverrides(overrides map[string]Override) {
	rebuilt := make(map[string]*Profile, len(r.defaults)+len(overrides))
	for agentType, raw := range r.defaults {
		rebuilt[agentType] = Compile(agentType, raw, r.logger)
	}
	for agentType, override := range overrides {
		key := strings.ToLower(agentType)
		merged := Merge(r.defaults[key], override)
		rebuilt[key] = Compile(key, merged, r.logger)
	}

	r.mu.Lock()
	r.profiles = rebuilt
	r.mu.Unlock()

	r.logger.Info("applied profile overrides", "override_count", len(overrides))
}

// AgentTypes returns all registered agent types in sorted order.
func (r *Registry) AgentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.profiles))
	for agentType := range r.profiles {
		types = append(types, agentType)
	}
	sort.Strings(types)
	return types
}
