package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Iron-Ham/vitals/internal/config"
	"github.com/Iron-Ham/vitals/internal/logging"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View engine logs",
	Long: `View and filter the vitals engine log.

By default, shows the last 50 lines. Use flags to filter and format
the output.

Examples:
  # Show last 50 lines
  vitals logs

  # Show everything
  vitals logs -n 0

  # Follow logs in real-time
  vitals logs -f

  # Filter by log level
  vitals logs --level warn

  # Show logs from the last hour
  vitals logs --since 1h

  # Search for specific patterns
  vitals logs --grep "error|failed"

  # Show logs for a single run or session
  vitals logs --run run_a1b2c3d4
  vitals logs --session watch-1234

  # Export matching entries to a file
  vitals logs --since 1h --export logs.json
  vitals logs --export logs.csv --format csv`,
	RunE: runLogs,
}

var (
	logsTail    int
	logsFollow  bool
	logsLevel   string
	logsSince   string
	logsGrep    string
	logsRun     string
	logsSession string
	logsExport  string
	logsFormat  string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "Filter by run ID")
	logsCmd.Flags().StringVar(&logsSession, "session", "", "Filter by session ID")
	logsCmd.Flags().StringVar(&logsExport, "export", "", "Write matching entries to a file instead of printing")
	logsCmd.Flags().StringVar(&logsFormat, "format", "json", "Export format (json/text/csv)")
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Extra     map[string]any `json:"-"` // Captures additional fields
}

// UnmarshalJSON implements custom unmarshaling to capture extra fields
func (e *logEntry) UnmarshalJSON(data []byte) error {
	// First, unmarshal known fields using a type alias to avoid recursion
	type Alias logEntry
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Then unmarshal all fields to capture extras
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	// Remove known fields, keep the rest as extra
	delete(all, "time")
	delete(all, "level")
	delete(all, "msg")
	delete(all, "component")
	delete(all, "session_id")
	delete(all, "run_id")

	if len(all) > 0 {
		e.Extra = all
	}

	return nil
}

// logFilters holds the parsed filter options shared by the display,
// follow, and export paths.
type logFilters struct {
	minLevel  int
	level     string // normalized level name, empty when unfiltered
	since     time.Time
	grep      *regexp.Regexp
	runID     string
	sessionID string
}

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// levelColor returns the ANSI color code for a log level
func levelColor(level string) string {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return colorGray
	case logging.LevelInfo:
		return colorBlue
	case logging.LevelWarn:
		return colorYellow
	case logging.LevelError:
		return colorRed
	default:
		return colorReset
	}
}

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(entry *logEntry) string {
	var sb strings.Builder

	// Timestamp
	sb.WriteString(colorGray)
	sb.WriteString("[")
	sb.WriteString(entry.Time.Format("15:04:05.000"))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Level with color
	sb.WriteString(" ")
	sb.WriteString(levelColor(entry.Level))
	sb.WriteString("[")
	sb.WriteString(strings.ToUpper(entry.Level))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Message
	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	// Context fields (component, session_id, run_id)
	if entry.Component != "" {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString("component=")
		sb.WriteString(entry.Component)
		sb.WriteString(colorReset)
	}
	if entry.SessionID != "" {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString("session_id=")
		sb.WriteString(entry.SessionID)
		sb.WriteString(colorReset)
	}
	if entry.RunID != "" {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString("run_id=")
		sb.WriteString(entry.RunID)
		sb.WriteString(colorReset)
	}

	// Extra fields
	for key, value := range entry.Extra {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(colorReset)
		sb.WriteString(fmt.Sprintf("%v", value))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	logDir := cfg.LogDir()
	logPath := filepath.Join(logDir, "debug.log")

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("No logs found.")
		fmt.Println("Logs are stored at:", logPath)
		return nil
	}

	// Parse filter options
	filters := &logFilters{
		minLevel:  -1,
		runID:     logsRun,
		sessionID: logsSession,
	}
	if logsLevel != "" {
		filters.level = logging.ParseLevel(logsLevel)
		filters.minLevel = levelPriority(filters.level)
	}

	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filters.since = time.Now().Add(-duration)
	}

	if logsGrep != "" {
		var err error
		filters.grep, err = regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
	}

	// Export mode: aggregate the whole file and write it out
	if logsExport != "" {
		return exportLogs(logDir, logsExport, logsFormat, filters)
	}

	// Follow mode
	if logsFollow {
		return followLogs(logPath, filters)
	}

	// Non-follow mode: read and display logs
	return displayLogs(logPath, logsTail, filters)
}

// exportLogs aggregates the log file, applies the active filters, and
// writes the result to outputPath in the requested format.
func exportLogs(logDir, outputPath, format string, filters *logFilters) error {
	entries, err := logging.AggregateLogs(logDir)
	if err != nil {
		return err
	}

	entries = logging.FilterLogs(entries, logging.LogFilter{
		Level:     filters.level,
		StartTime: filters.since,
		RunID:     filters.runID,
		SessionID: filters.sessionID,
	})
	entries = grepEntries(entries, filters.grep)

	if err := logging.ExportLogEntries(entries, outputPath, format); err != nil {
		return err
	}

	fmt.Printf("Exported %d log entries to %s\n", len(entries), outputPath)
	return nil
}

// grepEntries keeps entries whose message or attribute values match the
// pattern. A nil pattern keeps everything.
func grepEntries(entries []logging.LogEntry, pattern *regexp.Regexp) []logging.LogEntry {
	if pattern == nil {
		return entries
	}

	var matched []logging.LogEntry
	for _, entry := range entries {
		searchText := entry.Message
		for _, v := range entry.Attrs {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if pattern.MatchString(searchText) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// displayLogs reads the log file and displays filtered entries
func displayLogs(logPath string, tail int, filters *logFilters) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)

	// Increase buffer size for potentially long log lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// If we can't parse as JSON, display raw line
			entries = append(entries, line)
			continue
		}

		// Apply filters
		if !passesFilters(&entry, filters) {
			continue
		}

		entries = append(entries, formatLogEntry(&entry))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	// Apply tail limit
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	// Print entries
	for _, entry := range entries {
		fmt.Println(entry)
	}

	if len(entries) == 0 {
		fmt.Println("No matching log entries found.")
	}

	return nil
}

// followLogs implements tail -f behavior for the log file
func followLogs(logPath string, filters *logFilters) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	// Seek to end of file
	_, err = file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Printf("Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// No new data, wait briefly and try again
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("error reading log file: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// If we can't parse as JSON, display raw line
			fmt.Println(line)
			continue
		}

		// Apply filters
		if !passesFilters(&entry, filters) {
			continue
		}

		fmt.Println(formatLogEntry(&entry))
	}
}

// passesFilters checks if a log entry passes all filter criteria
func passesFilters(entry *logEntry, filters *logFilters) bool {
	// Level filter
	if filters.minLevel >= 0 && levelPriority(entry.Level) < filters.minLevel {
		return false
	}

	// Time filter
	if !filters.since.IsZero() && entry.Time.Before(filters.since) {
		return false
	}

	// Run and session filters
	if filters.runID != "" && entry.RunID != filters.runID {
		return false
	}
	if filters.sessionID != "" && entry.SessionID != filters.sessionID {
		return false
	}

	// Grep filter - search in message and extra fields
	if filters.grep != nil {
		searchText := entry.Msg
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !filters.grep.MatchString(searchText) {
			return false
		}
	}

	return true
}
