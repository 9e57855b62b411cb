package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/booktester/internal/models"
)

// FileLogger logs replay events to files in the log directory.
// It creates one timestamped log per run and maintains a latest.log symlink
// pointing to the most recent run. It is thread-safe and implements
// replay.Logger. Listing output is never colored.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger that writes to .booktester/logs/ in the
// current directory at level "info".
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".booktester", "logs"), "info")
}

// NewFileLoggerWithDirAndLevel creates a new FileLogger with a custom log directory and log level.
// It creates the log directory if it doesn't exist, opens a timestamped
// run log file, and creates/updates the latest.log symlink.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Generate timestamped filename: run-YYYYMMDD-HHMMSS.log
	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== booktester run log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// Path returns the run log file of this logger.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogChapterStart records which chapter is replayed from where.
func (fl *FileLogger) LogChapterStart(run *models.ChapterRun) {
	fl.LogInfo(fmt.Sprintf("Chapter %s (from %s): %d listings", run.ChapterName, run.PreviousChapter, len(run.Listings)))
}

// LogListingStart records the full content of each listing at DEBUG level
// so a failing run can be reconstructed from the log alone.
func (fl *FileLogger) LogListingStart(index int, listing models.Listing) {
	if !fl.shouldLog("debug") {
		return
	}
	st := listing.State()
	fl.LogDebug(fmt.Sprintf("Listing %d (line %d): %s\n%s", index, st.Line, models.Describe(listing), st.Content))
}

// LogListingChecked records a verified listing.
func (fl *FileLogger) LogListingChecked(index int, listing models.Listing, duration time.Duration) {
	fl.LogInfo(fmt.Sprintf("Listing %d ok: %s (%s)", index, models.Describe(listing), formatDuration(duration)))
}

// LogListingSkipped records a skipped listing with its reason.
func (fl *FileLogger) LogListingSkipped(index int, listing models.Listing) {
	reason := listing.State().SkipReason
	if reason == "" {
		reason = "no reason given"
	}
	fl.LogInfo(fmt.Sprintf("Listing %d skipped: %s (%s)", index, models.Describe(listing), reason))
}

// LogFastForward records the trust boundary at WARN level.
func (fl *FileLogger) LogFastForward(from, to int, commit string) {
	fl.LogWarn(fmt.Sprintf("Fast-forward to %s: listings %d-%d trusted without replay", commit, from, to-1))
}

// LogSummary writes the final report, including the full error text.
func (fl *FileLogger) LogSummary(result *models.RunResult) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n=== Chapter Summary: %s ===\n", result.Chapter)
	fmt.Fprintf(&sb, "Run ID: %s\n", result.ID)
	fmt.Fprintf(&sb, "Listings: %d (checked %d, trusted %d, skipped %d)\n",
		result.Total, result.Checked, result.Trusted, len(result.Skips))
	for _, s := range result.Skips {
		fmt.Fprintf(&sb, "  skipped %d: %s\n", s.Index, s.Reason)
	}
	fmt.Fprintf(&sb, "Duration: %s\n", formatDuration(result.Duration))
	if result.Passed {
		sb.WriteString("Result: PASSED\n")
	} else {
		sb.WriteString("Result: FAILED\n")
		fmt.Fprintf(&sb, "Error: %s\n", result.Error)
	}
	fl.writeRunLog(sb.String())
}

// Close flushes and closes the run log file.
// It should be called when the logger is no longer needed.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}
