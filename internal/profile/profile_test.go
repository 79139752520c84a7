package profile

import (
	"testing"

	"github.com/Iron-Ham/vitals/internal/logging"
)

func TestCompile_SubstringAndRegex(t *testing.T) {
	raw := RawPatterns{
		BusyPatterns:   []string{"plain marker", `re:spin[0-9]+`},
		PromptPatterns: []string{"ready> "},
	}
	p := Compile("testtool", raw, logging.NopLogger())

	if p.AgentType != "testtool" {
		t.Errorf("AgentType = %q, want %q", p.AgentType, "testtool")
	}

	tests := []struct {
		name string
		tail string
		want Verdict
	}{
		{"substring busy", "output with plain marker inside", VerdictBusy},
		{"regex busy", "frame spin42 rendered", VerdictBusy},
		{"prompt", "done\nready> ", VerdictPrompt},
		{"no match", "nothing of interest", VerdictNone},
		{"empty tail", "", VerdictNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Match(tt.tail); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.tail, got, tt.want)
			}
		})
	}
}

func TestCompile_InvalidRegexSkipped(t *testing.T) {
	raw := RawPatterns{
		BusyPatterns: []string{"re:([", "fallback marker"},
	}
	p := Compile("testtool", raw, logging.NopLogger())

	// The invalid entry is dropped, the rest of the list still works
	if got := p.Match("fallback marker present"); got != VerdictBusy {
		t.Errorf("Match() = %v, want %v", got, VerdictBusy)
	}
	if got := p.Match("(["); got != VerdictNone {
		t.Errorf("Match() = %v for invalid pattern text, want %v", got, VerdictNone)
	}
}

func TestCompile_NilLogger(t *testing.T) {
	// A nil logger must not panic, even when a pattern fails to compile
	p := Compile("testtool", RawPatterns{BusyPatterns: []string{"re:(["}}, nil)

	if got := p.Match("anything"); got != VerdictNone {
		t.Errorf("Match() = %v, want %v", got, VerdictNone)
	}
}

func TestProfile_Match_CaseInsensitiveSubstring(t *testing.T) {
	p := Compile("testtool", RawPatterns{BusyPatterns: []string{"thinking..."}}, nil)

	if got := p.Match("Thinking..."); got != VerdictBusy {
		t.Errorf("Match() = %v, want %v (substring match should ignore case)", got, VerdictBusy)
	}
}

func TestProfile_Match_BusyOverPrompt(t *testing.T) {
	p := Compile("testtool", RawPatterns{
		BusyPatterns:   []string{"esc to interrupt"},
		PromptPatterns: []string{`re:(?m)^>\s*$`},
	}, nil)

	// Both a busy hint and a prompt line are present; busy must win
	tail := "✻ Pondering… (esc to interrupt)\n> "
	if got := p.Match(tail); got != VerdictBusy {
		t.Errorf("Match() = %v, want %v (busy takes precedence over prompt)", got, VerdictBusy)
	}
}

func TestVerdict_String(t *testing.T) {
	tests := []struct {
		verdict Verdict
		want    string
	}{
		{VerdictNone, "none"},
		{VerdictBusy, "busy"},
		{VerdictPrompt, "prompt"},
		{Verdict(99), "none"},
	}

	for _, tt := range tests {
		if got := tt.verdict.String(); got != tt.want {
			t.Errorf("Verdict(%d).String() = %q, want %q", int(tt.verdict), got, tt.want)
		}
	}
}

func TestMerge_Prepend(t *testing.T) {
	base := RawPatterns{
		BusyPatterns:   []string{"base busy"},
		PromptPatterns: []string{"base prompt"},
	}
	override := Override{
		BusyPatterns: []string{"user busy"},
	}

	merged := Merge(base, override)

	if len(merged.BusyPatterns) != 2 {
		t.Fatalf("Expected 2 busy patterns, got %d", len(merged.BusyPatterns))
	}
	// Override entries come first so they are consulted before the built-ins
	if merged.BusyPatterns[0] != "user busy" {
		t.Errorf("BusyPatterns[0] = %q, want %q", merged.BusyPatterns[0], "user busy")
	}
	if merged.BusyPatterns[1] != "base busy" {
		t.Errorf("BusyPatterns[1] = %q, want %q", merged.BusyPatterns[1], "base busy")
	}
	if len(merged.PromptPatterns) != 1 || merged.PromptPatterns[0] != "base prompt" {
		t.Errorf("PromptPatterns = %v, want [base prompt]", merged.PromptPatterns)
	}
}

func TestMerge_Replace(t *testing.T) {
	base := RawPatterns{
		BusyPatterns:   []string{"base busy"},
		PromptPatterns: []string{"base prompt"},
	}
	override := Override{
		BusyPatterns: []string{"user busy"},
		Replace:      true,
	}

	merged := Merge(base, override)

	if len(merged.BusyPatterns) != 1 || merged.BusyPatterns[0] != "user busy" {
		t.Errorf("BusyPatterns = %v, want [user busy]", merged.BusyPatterns)
	}
	if len(merged.PromptPatterns) != 0 {
		t.Errorf("PromptPatterns = %v, want empty (replaced)", merged.PromptPatterns)
	}
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	base := RawPatterns{BusyPatterns: []string{"base busy"}}
	override := Override{BusyPatterns: []string{"user busy"}}

	merged := Merge(base, override)
	merged.BusyPatterns[0] = "mutated"

	if base.BusyPatterns[0] != "base busy" {
		t.Errorf("base mutated to %q", base.BusyPatterns[0])
	}
	if override.BusyPatterns[0] != "user busy" {
		t.Errorf("override mutated to %q", override.BusyPatterns[0])
	}
}

func TestProfile_Raw_Copies(t *testing.T) {
	p := Compile("testtool", RawPatterns{BusyPatterns: []string{"marker"}}, nil)

	raw := p.Raw()
	raw.BusyPatterns[0] = "mutated"

	if got := p.Raw().BusyPatterns[0]; got != "marker" {
		t.Errorf("Raw() returned aliased slice: got %q, want %q", got, "marker")
	}
}
