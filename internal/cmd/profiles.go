package cmd

import (
	"fmt"

	"github.com/Iron-Ham/vitals/internal/config"
	"github.com/Iron-Ham/vitals/internal/engine"
	"github.com/Iron-Ham/vitals/internal/logging"
	"github.com/Iron-Ham/vitals/internal/profile"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List agent classification profiles",
	Long: `List the pattern tables used to classify terminal output, with any
configured overrides applied.

Patterns prefixed with "re:" are regular expressions; all others match
as case-insensitive substrings.`,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	// The registry alone is enough here; no engine (or log file) needed
	// just to print pattern tables.
	opts := engine.OptionsFromConfig(config.Get())
	registry := profile.NewRegistry(logging.NopLogger())
	if len(opts.ProfileOverrides) > 0 {
		registry.ApplyOverrides(opts.ProfileOverrides)
	}

	for _, agentType := range registry.AgentTypes() {
		prof, err := registry.Lookup(agentType)
		if err != nil {
			continue
		}
		raw := prof.Raw()

		fmt.Println(agentType)
		printPatterns("busy", raw.BusyPatterns)
		printPatterns("prompt", raw.PromptPatterns)
		fmt.Println()
	}
	return nil
}

func printPatterns(label string, patterns []string) {
	if len(patterns) == 0 {
		fmt.Printf("  %s: (none)\n", label)
		return
	}
	fmt.Printf("  %s:\n", label)
	for _, pattern := range patterns {
		fmt.Printf("    %q\n", pattern)
	}
}
