package profile

import (
	"regexp"
	"strings"

	"github.com/Iron-Ham/vitals/internal/logging"
)

// RegexPrefix marks a pattern entry as a regular expression.
// All other entries match as case-insensitive substrings.
const RegexPrefix = "re:"

// RawPatterns holds string-form detection patterns before compilation.
// Patterns prefixed with "re:" are compiled as regex; everything else uses
// a case-insensitive strings.Contains against the window tail.
type RawPatterns struct {
	BusyPatterns   []string // matched first; any hit means the agent is actively working
	PromptPatterns []string // matched second; any hit means the agent is waiting for input
}

// Override is one user-supplied profile override entry, as it appears in an
// overrides file or under the profiles section of the main config. With
// Replace set the override patterns stand alone; otherwise they are layered
// in front of the built-in patterns for that agent type.
type Override struct {
	BusyPatterns   []string `mapstructure:"busy_patterns"`
	PromptPatterns []string `mapstructure:"prompt_patterns"`
	Replace        bool     `mapstructure:"replace"`
}

// Verdict is the result of matching a window tail against a profile.
type Verdict int

const (
	// VerdictNone means no pattern matched. The classifier leaves the
	// session state unchanged.
	VerdictNone Verdict = iota

	// VerdictBusy means a busy pattern matched; the agent is actively working.
	VerdictBusy

	// VerdictPrompt means a prompt pattern matched and no busy pattern did;
	// the agent is waiting for input.
	VerdictPrompt
)

// String returns a human-readable name for a verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictBusy:
		return "busy"
	case VerdictPrompt:
		return "prompt"
	default:
		return "none"
	}
}

// matcher is one compiled pattern entry. Exactly one of re or lower drives
// matching: re for "re:" patterns, lower for substring patterns.
type matcher struct {
	raw   string
	lower string
	re    *regexp.Regexp
}

func (m matcher) matches(text, lowerText string) bool {
	if m.re != nil {
		return m.re.MatchString(text)
	}
	return strings.Contains(lowerText, m.lower)
}

// Profile holds the compiled detection patterns for one agent type.
// Profiles are immutable after compilation and safe for concurrent use.
type Profile struct {
	AgentType string

	raw    RawPatterns
	busy   []matcher
	prompt []matcher
}

// Compile builds a Profile from raw patterns. Entries with the "re:" prefix
// compile as regex; invalid regex entries are logged as warnings and skipped,
// never a failure. Pattern order is preserved within each list.
func Compile(agentType string, raw RawPatterns, logger *logging.Logger) *Profile {
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Profile{
		AgentType: strings.ToLower(agentType),
		raw: RawPatterns{
			BusyPatterns:   copySlice(raw.BusyPatterns),
			PromptPatterns: copySlice(raw.PromptPatterns),
		},
		busy:   compileList(raw.BusyPatterns, agentType, "busy", logger),
		prompt: compileList(raw.PromptPatterns, agentType, "prompt", logger),
	}
}

// compileList compiles one ordered pattern list.
func compileList(patterns []string, agentType, kind string, logger *logging.Logger) []matcher {
	compiled := make([]matcher, 0, len(patterns))
	for _, pat := range patterns {
		if strings.HasPrefix(pat, RegexPrefix) {
			re, err := regexp.Compile(strings.TrimPrefix(pat, RegexPrefix))
			if err != nil {
				logger.Warn("skipping invalid profile pattern",
					"agent_type", agentType,
					"kind", kind,
					"pattern", pat,
					"error", err.Error())
				continue
			}
			compiled = append(compiled, matcher{raw: pat, re: re})
			continue
		}
		compiled = append(compiled, matcher{raw: pat, lower: strings.ToLower(pat)})
	}
	return compiled
}

// Match evaluates the tail of a session window against this profile.
// Busy patterns are checked before prompt patterns: tools can render an
// interactive prompt while still working, and busy wins that tie.
func (p *Profile) Match(tail string) Verdict {
	lower := strings.ToLower(tail)

	for _, m := range p.busy {
		if m.matches(tail, lower) {
			return VerdictBusy
		}
	}
	for _, m := range p.prompt {
		if m.matches(tail, lower) {
			return VerdictPrompt
		}
	}
	return VerdictNone
}

// Raw returns a copy of the uncompiled pattern lists, including any entries
// that failed to compile. Used for listing and diagnostics.
func (p *Profile) Raw() RawPatterns {
	return RawPatterns{
		BusyPatterns:   copySlice(p.raw.BusyPatterns),
		PromptPatterns: copySlice(p.raw.PromptPatterns),
	}
}

// Merge layers an override onto base patterns. With Replace set the override
// patterns stand alone; otherwise override entries are prepended so user
// patterns are consulted before the built-ins.
func Merge(base RawPatterns, override Override) RawPatterns {
	if override.Replace {
		return RawPatterns{
			BusyPatterns:   copySlice(override.BusyPatterns),
			PromptPatterns: copySlice(override.PromptPatterns),
		}
	}
	return RawPatterns{
		BusyPatterns:   append(copySlice(override.BusyPatterns), base.BusyPatterns...),
		PromptPatterns: append(copySlice(override.PromptPatterns), base.PromptPatterns...),
	}
}

func copySlice(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
