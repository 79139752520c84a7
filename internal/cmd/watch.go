//go:build !windows
// +build !windows

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Iron-Ham/vitals/internal/classify"
	"github.com/Iron-Ham/vitals/internal/config"
	"github.com/Iron-Ham/vitals/internal/engine"
	"github.com/Iron-Ham/vitals/internal/event"
	"github.com/Iron-Ham/vitals/internal/run"
	"github.com/creack/pty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] -- <command> [args...]",
	Short: "Run a command and classify its terminal output",
	Long: `Run a command under a pseudo-terminal, mirror its output, and feed
every chunk through the session classifier while tracking the command
as a run.

The terminal stays fully interactive: stdin is forwarded to the child
and window resizes propagate. When the command exits, a summary of the
observed state transitions and the run outcome is printed.

Examples:
  # Watch a Claude Code session
  vitals watch --agent claude -- claude

  # Watch a build with the generic shell profile
  vitals watch -- make -j8 test`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchAgent   string
	watchSession string
	watchName    string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchAgent, "agent", "a", "shell", "Agent profile to classify with (claude, gemini, opencode, codex, shell)")
	watchCmd.Flags().StringVar(&watchSession, "session", "", "Session ID (default: derived from the process ID)")
	watchCmd.Flags().StringVar(&watchName, "name", "", "Run name (default: the command line)")
}

// stateTransition records one observed session state change.
type stateTransition struct {
	At       time.Time
	Previous string
	New      string
}

func runWatch(cmd *cobra.Command, args []string) error {
	eng, err := engine.New(engine.OptionsFromConfig(config.Get()))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Shutdown()

	commandLine := strings.Join(args, " ")
	sessionID := watchSession
	if sessionID == "" {
		sessionID = fmt.Sprintf("watch-%d", os.Getpid())
	}
	name := watchName
	if name == "" {
		name = commandLine
	}

	var (
		mu          sync.Mutex
		transitions []stateTransition
	)
	unsubscribe := eng.Bus().Subscribe(event.TypeSessionStateChanged, func(e event.Event) {
		sc, ok := e.(event.SessionStateChangedEvent)
		if !ok || sc.SessionID != sessionID {
			return
		}
		mu.Lock()
		transitions = append(transitions, stateTransition{
			At:       sc.Timestamp(),
			Previous: sc.PreviousState,
			New:      sc.NewState,
		})
		mu.Unlock()
	})
	defer unsubscribe()

	eng.Classifier().Track(sessionID, watchAgent, map[string]string{"command": commandLine})
	runID := eng.Tracker().Start(name, map[string]string{
		engine.ContextKeySessionID: sessionID,
		"agentType":                watchAgent,
	}, "")

	exitCode, runErr := runInPTY(eng.Classifier(), sessionID, args)

	switch {
	case runErr != nil:
		_ = eng.Tracker().Fail(runID, runErr.Error())
	case exitCode != 0:
		_ = eng.Tracker().Fail(runID, fmt.Sprintf("exit status %d", exitCode))
	default:
		_ = eng.Tracker().Complete(runID)
	}

	mu.Lock()
	observed := make([]stateTransition, len(transitions))
	copy(observed, transitions)
	mu.Unlock()

	finalState, _ := eng.Classifier().State(sessionID)
	tracked, _ := eng.Tracker().Get(runID)
	printWatchSummary(sessionID, finalState, tracked, observed)

	return runErr
}

// runInPTY starts the command under a pseudo-terminal, mirrors its output to
// stdout, and feeds every chunk to the classifier. Returns the command's exit
// code once it terminates.
func runInPTY(classifier *classify.Classifier, sessionID string, args []string) (int, error) {
	command := exec.Command(args[0], args[1:]...)

	ptmx, err := pty.Start(command)
	if err != nil {
		return 0, fmt.Errorf("failed to start pty: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		// Save original terminal state and set raw mode
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return 0, fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer func() { _ = term.Restore(int(os.Stdin.Fd()), oldState) }()

		// Handle window resize signals
		sigwinch := make(chan os.Signal, 1)
		signal.Notify(sigwinch, syscall.SIGWINCH)
		sigwinchDone := make(chan struct{})
		defer func() {
			signal.Stop(sigwinch)
			close(sigwinchDone)
		}()
		go func() {
			for {
				select {
				case <-sigwinchDone:
					return
				case _, ok := <-sigwinch:
					if !ok {
						return
					}
					if ws, err := pty.GetsizeFull(os.Stdin); err == nil {
						_ = pty.Setsize(ptmx, ws)
					}
				}
			}
		}()
		// Initial resize
		sigwinch <- syscall.SIGWINCH

		// Forward stdin to the child. The goroutine stays blocked on the
		// final stdin read after the child exits; the process is about to
		// terminate anyway.
		go func() {
			_, _ = io.Copy(ptmx, os.Stdin)
		}()
	}

	// Mirror output and classify each chunk as it arrives
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				_, _ = os.Stdout.Write(chunk)
				classifier.Ingest(sessionID, chunk)
			}
			if err != nil {
				// EOF or EIO here is how a PTY reports child exit
				return
			}
		}
	}()

	err = command.Wait()
	wg.Wait()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, err
	}
	return 0, nil
}

func printWatchSummary(sessionID string, finalState classify.SessionState, tracked run.Run, transitions []stateTransition) {
	fmt.Printf("\nSession %s finished in state %s\n", sessionID, finalState)

	if len(transitions) == 0 {
		fmt.Println("No state transitions observed.")
	} else {
		fmt.Println("State transitions:")
		for _, tr := range transitions {
			fmt.Printf("  [%s] %s -> %s\n", tr.At.Format("15:04:05.000"), tr.Previous, tr.New)
		}
	}

	if tracked.ID == "" {
		return
	}
	fmt.Printf("Run %s: %s", tracked.ID, tracked.State)
	if tracked.Duration > 0 {
		fmt.Printf(" in %s", tracked.Duration.Round(time.Millisecond))
	}
	if tracked.Error != "" {
		fmt.Printf(" (%s)", tracked.Error)
	}
	fmt.Println()
}
