package replay

import (
	"context"
	"fmt"

	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/sourcetree"
)

// SanityCheck is an expectation about one parsed listing, checked before any
// listing is replayed. Zero-valued fields are not checked.
type SanityCheck struct {
	Index int
	Type  models.ListingType
	Skip  *bool
}

// AssertAllChecked returns a CoverageError naming the first listing that was
// neither replayed, skipped nor fast-forwarded over.
func AssertAllChecked(listings []models.Listing) error {
	for i, l := range listings {
		if !l.State().Checked {
			return &CoverageError{Index: i, Listing: models.Describe(l)}
		}
	}
	return nil
}

// AssertFinalState compares the working tree with the against commit and
// returns a DivergenceError listing every difference not covered by ignore.
func AssertFinalState(ctx context.Context, tree SourceTree, against string, ignore sourcetree.CategorySet) error {
	diff, err := tree.Diff(ctx, against, ignore)
	if err != nil {
		return fmt.Errorf("failed to diff against %s: %w", against, err)
	}
	if !diff.IsEmpty() {
		return &DivergenceError{Diff: diff}
	}
	return nil
}

// CheckSanity verifies that the parser produced what the chapter
// configuration expects at specific positions.
func CheckSanity(listings []models.Listing, checks []SanityCheck) error {
	for _, c := range checks {
		if c.Index < 0 || c.Index >= len(listings) {
			return &SanityError{Index: c.Index,
				Msg: fmt.Sprintf("chapter has only %d listings", len(listings))}
		}
		l := listings[c.Index]
		if c.Type != "" && l.Type() != c.Type {
			return &SanityError{Index: c.Index,
				Msg: fmt.Sprintf("expected a %s, got a %s: %s", c.Type, l.Type(), models.Describe(l))}
		}
		if c.Skip != nil && l.State().Skip != *c.Skip {
			return &SanityError{Index: c.Index,
				Msg: fmt.Sprintf("expected skip=%t, got skip=%t: %s", *c.Skip, l.State().Skip, models.Describe(l))}
		}
	}
	return nil
}
