package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/vitals/internal/config"
	"github.com/Iron-Ham/vitals/internal/engine"
	"github.com/Iron-Ham/vitals/internal/event"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify captured terminal output",
	Long: `Feed captured terminal output through the session classifier and
print every state transition. Reads from a file when one is given,
stdin otherwise.

Input is split on line boundaries, approximating how output arrives
from a live terminal.

Examples:
  # Classify a captured transcript
  vitals classify --agent claude transcript.log

  # Pipe output straight in
  tmux capture-pane -p | vitals classify --agent claude`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

var classifyAgent string

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyAgent, "agent", "a", "shell", "Agent profile to classify with (claude, gemini, opencode, codex, shell)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	var reader io.Reader = os.Stdin
	sourceName := "stdin"
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer file.Close()
		reader = file
		sourceName = args[0]
	}

	eng, err := engine.New(engine.OptionsFromConfig(config.Get()))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Shutdown()

	const sessionID = "classify"
	transitions := 0
	unsubscribe := eng.Bus().Subscribe(event.TypeSessionStateChanged, func(e event.Event) {
		sc, ok := e.(event.SessionStateChangedEvent)
		if !ok {
			return
		}
		transitions++
		fmt.Printf("[%d] %s -> %s\n", transitions, sc.PreviousState, sc.NewState)
	})
	defer unsubscribe()

	eng.Classifier().Track(sessionID, classifyAgent, nil)

	scanner := bufio.NewScanner(reader)

	// Increase buffer size for potentially long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		eng.Classifier().Ingest(sessionID, []byte(scanner.Text()+"\n"))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", sourceName, err)
	}

	state, _ := eng.Classifier().State(sessionID)
	fmt.Printf("Final state: %s (%d transitions)\n", state, transitions)
	return nil
}
