package models

import (
	"time"

	"github.com/google/uuid"
)

// SkipRecord notes a listing that was skipped and why.
type SkipRecord struct {
	Index  int    `json:"index"`
	Reason string `json:"reason,omitempty"`
}

// RunResult is the final report of a ChapterRun.
type RunResult struct {
	ID              string        `json:"id"`
	Chapter         string        `json:"chapter"`
	PreviousChapter string        `json:"previous_chapter"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	Passed          bool          `json:"passed"`
	Total           int           `json:"total"`
	Checked         int           `json:"checked"`
	Trusted         int           `json:"trusted"`
	Pos             int           `json:"pos"`
	FailedIndex     int           `json:"failed_index"`         // -1 when no single listing is to blame
	Error           string        `json:"error,omitempty"`      // Failure message
	Skips           []SkipRecord  `json:"skips,omitempty"`      // Skipped listings with reasons
	Divergence      []string      `json:"divergence,omitempty"` // Unexplained diff entries, one per line
}

// NewRunResult creates a result for the given run with no failure recorded.
// The ID is assigned up front so logs written during the run can quote it.
func NewRunResult(run *ChapterRun, startedAt time.Time) *RunResult {
	return &RunResult{
		ID:              uuid.NewString(),
		Chapter:         run.ChapterName,
		PreviousChapter: run.PreviousChapter,
		StartedAt:       startedAt,
		Total:           len(run.Listings),
		FailedIndex:     -1,
	}
}

// Finalize copies the run's counters into the result.
func (r *RunResult) Finalize(run *ChapterRun, err error) {
	r.Pos = run.Pos
	r.Checked, _, r.Trusted = run.Counts()
	r.Skips = r.Skips[:0]
	for i, l := range run.Listings {
		if st := l.State(); st.Skip {
			r.Skips = append(r.Skips, SkipRecord{Index: i, Reason: st.SkipReason})
		}
	}
	r.Passed = err == nil
	if err != nil {
		r.Error = err.Error()
	}
}
