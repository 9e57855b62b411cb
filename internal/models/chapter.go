package models

// RunState is the position of a ChapterRun's cursor.
type RunState int

const (
	// StateReady means no listing has been processed yet.
	StateReady RunState = iota
	// StateAdvancing means the cursor is somewhere inside the sequence.
	StateAdvancing
	// StateDone means the cursor has passed the last listing.
	StateDone
)

// String returns the string representation of RunState.
func (s RunState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateAdvancing:
		return "advancing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ChapterRun is one replay of a chapter's listings against a working copy.
// It is created per invocation and discarded afterwards.
type ChapterRun struct {
	ChapterName     string    // Chapter under test; also the ref of its final commit
	PreviousChapter string    // Chapter whose final commit is the starting point
	Listings        []Listing // Ordered listings from the parser
	Pos             int       // Index of the next listing to process
}

// NewChapterRun creates a run positioned before the first listing.
func NewChapterRun(chapter, previous string, listings []Listing) *ChapterRun {
	return &ChapterRun{
		ChapterName:     chapter,
		PreviousChapter: previous,
		Listings:        listings,
	}
}

// State derives the cursor state from Pos.
func (r *ChapterRun) State() RunState {
	switch {
	case r.Pos >= len(r.Listings):
		return StateDone
	case r.Pos == 0:
		return StateReady
	default:
		return StateAdvancing
	}
}

// Current returns the listing at the cursor, or nil when the run is done.
func (r *ChapterRun) Current() Listing {
	if r.Pos >= len(r.Listings) {
		return nil
	}
	return r.Listings[r.Pos]
}

// Counts tallies listings by their bookkeeping flags.
func (r *ChapterRun) Counts() (checked, skipped, trusted int) {
	for _, l := range r.Listings {
		st := l.State()
		if st.Checked {
			checked++
		}
		if st.Skip {
			skipped++
		}
		if st.Trusted {
			trusted++
		}
	}
	return checked, skipped, trusted
}
