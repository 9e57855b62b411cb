package logger

import (
	"time"

	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/replay"
)

// Logger is what the CLI needs from a logger: replay events plus free-form
// messages at each level.
type Logger interface {
	replay.Logger
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

var (
	_ Logger = (*ConsoleLogger)(nil)
	_ Logger = (*FileLogger)(nil)
	_ Logger = (*NoOpLogger)(nil)
	_ Logger = MultiLogger(nil)
)

// MultiLogger forwards every event to each of its loggers in order.
type MultiLogger []Logger

// NewMultiLogger drops nil entries.
func NewMultiLogger(loggers ...Logger) MultiLogger {
	m := make(MultiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			m = append(m, l)
		}
	}
	return m
}

func (m MultiLogger) LogTrace(message string) {
	for _, l := range m {
		l.LogTrace(message)
	}
}

func (m MultiLogger) LogDebug(message string) {
	for _, l := range m {
		l.LogDebug(message)
	}
}

func (m MultiLogger) LogInfo(message string) {
	for _, l := range m {
		l.LogInfo(message)
	}
}

func (m MultiLogger) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}

func (m MultiLogger) LogError(message string) {
	for _, l := range m {
		l.LogError(message)
	}
}

func (m MultiLogger) LogChapterStart(run *models.ChapterRun) {
	for _, l := range m {
		l.LogChapterStart(run)
	}
}

func (m MultiLogger) LogListingStart(index int, listing models.Listing) {
	for _, l := range m {
		l.LogListingStart(index, listing)
	}
}

func (m MultiLogger) LogListingChecked(index int, listing models.Listing, duration time.Duration) {
	for _, l := range m {
		l.LogListingChecked(index, listing, duration)
	}
}

func (m MultiLogger) LogListingSkipped(index int, listing models.Listing) {
	for _, l := range m {
		l.LogListingSkipped(index, listing)
	}
}

func (m MultiLogger) LogFastForward(from, to int, commit string) {
	for _, l := range m {
		l.LogFastForward(from, to, commit)
	}
}

func (m MultiLogger) LogSummary(result *models.RunResult) {
	for _, l := range m {
		l.LogSummary(result)
	}
}
