package replay

import (
	"time"

	"github.com/harrison/booktester/internal/models"
)

// Logger receives replay progress. Implementations live in internal/logger.
type Logger interface {
	LogChapterStart(run *models.ChapterRun)
	LogListingStart(index int, listing models.Listing)
	LogListingChecked(index int, listing models.Listing, duration time.Duration)
	LogListingSkipped(index int, listing models.Listing)
	LogFastForward(from, to int, commit string)
	LogSummary(result *models.RunResult)
}

type nopLogger struct{}

func (nopLogger) LogChapterStart(*models.ChapterRun)                   {}
func (nopLogger) LogListingStart(int, models.Listing)                  {}
func (nopLogger) LogListingChecked(int, models.Listing, time.Duration) {}
func (nopLogger) LogListingSkipped(int, models.Listing)                {}
func (nopLogger) LogFastForward(int, int, string)                      {}
func (nopLogger) LogSummary(*models.RunResult)                         {}
