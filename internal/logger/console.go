// Package logger provides logging implementations for chapter replay.
//
// Loggers report chapter start, listing progress, skips, fast-forwards and
// the final summary. Implementations are thread-safe and support console and
// file destinations; MultiLogger fans out to several at once.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/booktester/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs replay progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	progress    *ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should receive colors.
// NO_COLOR (honoured by fatih/color) always wins.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	label := level
	if cl.colorOutput {
		label = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), label, message)
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// write emits a pre-formatted line at the given level.
func (cl *ConsoleLogger) write(level, line string) {
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "[%s] %s\n", timestamp(), line)
}

func (cl *ConsoleLogger) paint(c *color.Color, s string) string {
	if !cl.colorOutput {
		return s
	}
	return c.Sprint(s)
}

// LogChapterStart logs the chapter header at INFO level.
// Format: "[HH:MM:SS] Chapter <name> (from <previous>): <n> listings"
func (cl *ConsoleLogger) LogChapterStart(run *models.ChapterRun) {
	cl.mutex.Lock()
	cl.progress = NewProgressBar(len(run.Listings), 20, cl.colorOutput)
	cl.mutex.Unlock()

	name := cl.paint(color.New(color.Bold), run.ChapterName)
	cl.write("info", fmt.Sprintf("Chapter %s (from %s): %d listings", name, run.PreviousChapter, len(run.Listings)))
}

// LogListingStart logs each listing before it is replayed, at DEBUG level.
func (cl *ConsoleLogger) LogListingStart(index int, listing models.Listing) {
	cl.write("debug", fmt.Sprintf("Listing %d (line %d): %s", index, listing.State().Line, models.Describe(listing)))
}

// LogListingChecked logs a verified listing with overall progress at INFO level.
// Format: "[HH:MM:SS] [====    ] 12/80 (15%) listing 11 ok: <description> (<duration>)"
func (cl *ConsoleLogger) LogListingChecked(index int, listing models.Listing, duration time.Duration) {
	bar := cl.advanceProgress(index)
	ok := cl.paint(color.New(color.FgGreen), "ok")
	cl.write("info", fmt.Sprintf("%slisting %d %s: %s (%s)", bar, index, ok, models.Describe(listing), formatDuration(duration)))
}

// LogListingSkipped logs a listing that was not replayed at INFO level.
func (cl *ConsoleLogger) LogListingSkipped(index int, listing models.Listing) {
	bar := cl.advanceProgress(index)
	skipped := cl.paint(color.New(color.FgYellow), "skipped")
	msg := fmt.Sprintf("%slisting %d %s: %s", bar, index, skipped, models.Describe(listing))
	if reason := listing.State().SkipReason; reason != "" {
		msg += fmt.Sprintf(" (%s)", reason)
	}
	cl.write("info", msg)
}

// LogFastForward logs the trust boundary of a fast-forward at WARN level.
func (cl *ConsoleLogger) LogFastForward(from, to int, commit string) {
	cl.logWithLevel("WARN", fmt.Sprintf("Fast-forward to %s: listings %d-%d trusted without replay", commit, from, to-1))
	cl.advanceProgress(to - 1)
}

func (cl *ConsoleLogger) advanceProgress(index int) string {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	if cl.progress == nil {
		return ""
	}
	cl.progress.Update(index + 1)
	return cl.progress.Render() + " "
}

// LogSummary logs the chapter summary at INFO level.
// Format: "[HH:MM:SS] === Chapter Summary: <name> ===\n[HH:MM:SS] Listings: <n> ..."
func (cl *ConsoleLogger) LogSummary(result *models.RunResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var sb strings.Builder
	header := cl.paint(color.New(color.Bold), fmt.Sprintf("=== Chapter Summary: %s ===", result.Chapter))
	fmt.Fprintf(&sb, "[%s] %s\n", ts, header)
	fmt.Fprintf(&sb, "[%s] Listings: %d (checked %d, trusted %d, skipped %d)\n",
		ts, result.Total, result.Checked, result.Trusted, len(result.Skips))
	fmt.Fprintf(&sb, "[%s] Duration: %s\n", ts, formatDuration(result.Duration))

	if result.Passed {
		fmt.Fprintf(&sb, "[%s] Result: %s\n", ts, cl.paint(color.New(color.FgGreen), "PASSED"))
	} else {
		failed := cl.paint(color.New(color.FgRed), "FAILED")
		if result.FailedIndex >= 0 {
			fmt.Fprintf(&sb, "[%s] Result: %s at listing %d\n", ts, failed, result.FailedIndex)
		} else {
			fmt.Fprintf(&sb, "[%s] Result: %s\n", ts, failed)
		}
		fmt.Fprintf(&sb, "[%s] Error: %s\n", ts, firstLine(result.Error))
		for _, d := range result.Divergence {
			fmt.Fprintf(&sb, "[%s]   - %s\n", ts, cl.paint(color.New(color.FgRed), d))
		}
	}

	cl.writer.Write([]byte(sb.String()))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "250ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(string)                                      {}
func (n *NoOpLogger) LogDebug(string)                                      {}
func (n *NoOpLogger) LogInfo(string)                                       {}
func (n *NoOpLogger) LogWarn(string)                                       {}
func (n *NoOpLogger) LogError(string)                                      {}
func (n *NoOpLogger) LogChapterStart(*models.ChapterRun)                   {}
func (n *NoOpLogger) LogListingStart(int, models.Listing)                  {}
func (n *NoOpLogger) LogListingChecked(int, models.Listing, time.Duration) {}
func (n *NoOpLogger) LogListingSkipped(int, models.Listing)                {}
func (n *NoOpLogger) LogFastForward(int, int, string)                      {}
func (n *NoOpLogger) LogSummary(*models.RunResult)                         {}
