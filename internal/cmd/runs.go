package cmd

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/vitals/internal/config"
	"github.com/Iron-Ham/vitals/internal/engine"
	"github.com/Iron-Ham/vitals/internal/event"
	"github.com/Iron-Ham/vitals/internal/util"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Demonstrate run lifecycle tracking",
	Long: `Drive a scripted set of runs through the tracker, printing every
event as it is published, then the final run table.

Useful for checking configuration (event logging, log output) end to
end without wiring up a real consumer.`,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	eng, err := engine.New(engine.OptionsFromConfig(config.Get()))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Shutdown()

	unsubscribe := eng.Bus().SubscribeAll(func(e event.Event) {
		data, err := event.Encode(e)
		if err != nil {
			return
		}
		fmt.Println(string(data))
	})
	defer unsubscribe()

	tracker := eng.Tracker()
	sessionCtx := map[string]string{engine.ContextKeySessionID: "demo"}

	build := tracker.Start("build binaries", sessionCtx, "compile all targets")
	_ = tracker.UpdateProgress(build, 0.4, "compiling")
	time.Sleep(10 * time.Millisecond)

	tests := tracker.Start("run tests", sessionCtx, "unit and integration suites")
	_ = tracker.Pause(tests, "waiting for build")

	_ = tracker.UpdateProgress(build, 0.9, "linking")
	_ = tracker.Complete(build)

	_ = tracker.Resume(tests)
	_ = tracker.UpdateProgress(tests, 0.5, "unit suite done")
	time.Sleep(10 * time.Millisecond)
	_ = tracker.Complete(tests)

	lint := tracker.Start("lint sources", sessionCtx, "")
	_ = tracker.Fail(lint, "3 issues found")

	preview := tracker.Start("deploy preview", sessionCtx, "")
	_ = tracker.Cancel(preview, "superseded by newer build")

	// Terminal states are sticky; this second complete publishes nothing
	_ = tracker.Complete(build)

	fmt.Println()
	status := tracker.Status()
	fmt.Printf("Runs: %d total, %d running, %d paused, %d completed, %d failed, %d cancelled\n\n",
		status.Total, status.Running, status.Paused, status.Completed, status.Failed, status.Cancelled)

	fmt.Printf("%-12s %-24s %-10s %9s %12s\n", "ID", "NAME", "STATE", "PROGRESS", "DURATION")
	for _, r := range tracker.All() {
		duration := "-"
		if r.Duration > 0 {
			duration = r.Duration.Round(time.Millisecond).String()
		}
		fmt.Printf("%-12s %-24s %-10s %8.0f%% %12s\n",
			r.ID, util.TruncateString(r.Name, 24), r.State, r.Progress*100, duration)
	}
	return nil
}
