package models

import (
	"fmt"
	"strings"
)

// ListingType names a category of book listing.
// The set is closed: the parser may emit any string, but only the values
// below convert into a Listing (see FromRaw).
type ListingType string

const (
	// TypeCode is a source file shown in full; replayed by writing it to disk.
	TypeCode ListingType = "code listing"
	// TypeCodeWithRef is a code listing pinned to a commit in the reference repo.
	TypeCodeWithRef ListingType = "code listing with git ref"
	// TypeCommand is a shell command the reader is told to run.
	TypeCommand ListingType = "command listing"
	// TypeOutput is the expected output of the preceding command.
	TypeOutput ListingType = "output listing"
)

// KnownListingTypes lists every type FromRaw accepts, in display order.
var KnownListingTypes = []ListingType{TypeCode, TypeCodeWithRef, TypeCommand, TypeOutput}

// UnknownListingTypeError is returned when a listing carries a type the
// replay engine has no action for. It is always fatal.
type UnknownListingTypeError struct {
	Index int    // Position of the listing in the chapter (-1 if not yet placed)
	Type  string // The unrecognized type name
}

// Error implements the error interface.
func (e *UnknownListingTypeError) Error() string {
	return fmt.Sprintf("listing %d: unknown listing type %q (known: %s)", e.Index, e.Type, knownTypeNames())
}

func knownTypeNames() string {
	names := make([]string, len(KnownListingTypes))
	for i, t := range KnownListingTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// ListingState is the bookkeeping shared by every listing kind.
// Checked and Trusted are owned by the replay engine; the parser never sets them.
type ListingState struct {
	Content    string // Literal body: source code, shell command, or expected output
	Line       int    // 1-based line in the chapter source (0 if unknown)
	Skip       bool   // Listing is non-actionable and must not be applied
	SkipReason string // Why the listing is skipped (optional, reporting only)
	Checked    bool   // Listing was applied, verified, or explicitly skipped
	Trusted    bool   // Listing was marked checked by a fast-forward, not replayed
}

// State returns the mutable bookkeeping for the listing.
func (s *ListingState) State() *ListingState {
	return s
}

// Listing is one parsed unit of chapter content.
//
// It is a sealed sum type: only the four concrete types in this package
// implement it, and consumers switch over them exhaustively.
type Listing interface {
	Type() ListingType
	State() *ListingState
	listing()
}

// CodeListing is a full source file the book shows at Path.
type CodeListing struct {
	ListingState
	Path string // File path relative to the working directory
}

// Type implements Listing.
func (*CodeListing) Type() ListingType { return TypeCode }
func (*CodeListing) listing()          {}

// CodeListingWithRef is a code listing whose result must match the commit
// tagged GitRef in the reference repository.
type CodeListingWithRef struct {
	CodeListing
	GitRef string
}

// Type implements Listing.
func (*CodeListingWithRef) Type() ListingType { return TypeCodeWithRef }

// CommandListing is a shell command run in the working directory.
type CommandListing struct {
	ListingState
	ExpectFailure bool // A non-zero exit code is part of the narrative
}

// Type implements Listing.
func (*CommandListing) Type() ListingType { return TypeCommand }
func (*CommandListing) listing()          {}

// OutputListing is the expected stdout of the preceding command listing.
type OutputListing struct {
	ListingState
}

// Type implements Listing.
func (*OutputListing) Type() ListingType { return TypeOutput }
func (*OutputListing) listing()          {}

// RawListing is what a parser emits before classification.
type RawListing struct {
	Type          string
	Content       string
	Path          string
	GitRef        string
	Line          int
	Skip          bool
	SkipReason    string
	ExpectFailure bool
}

// FromRaw converts a parser record into a typed Listing.
// An unrecognized Type yields *UnknownListingTypeError; there is no default kind.
func FromRaw(index int, raw RawListing) (Listing, error) {
	state := ListingState{
		Content:    raw.Content,
		Line:       raw.Line,
		Skip:       raw.Skip,
		SkipReason: raw.SkipReason,
	}

	switch ListingType(raw.Type) {
	case TypeCode:
		if raw.Path == "" {
			return nil, fmt.Errorf("listing %d (line %d): code listing has no path", index, raw.Line)
		}
		return &CodeListing{ListingState: state, Path: raw.Path}, nil
	case TypeCodeWithRef:
		if raw.Path == "" {
			return nil, fmt.Errorf("listing %d (line %d): code listing has no path", index, raw.Line)
		}
		if raw.GitRef == "" {
			return nil, fmt.Errorf("listing %d (line %d): code listing with git ref has no ref", index, raw.Line)
		}
		return &CodeListingWithRef{
			CodeListing: CodeListing{ListingState: state, Path: raw.Path},
			GitRef:      raw.GitRef,
		}, nil
	case TypeCommand:
		return &CommandListing{ListingState: state, ExpectFailure: raw.ExpectFailure}, nil
	case TypeOutput:
		return &OutputListing{ListingState: state}, nil
	default:
		return nil, &UnknownListingTypeError{Index: index, Type: raw.Type}
	}
}

// FromRawAll converts a full parser result, failing on the first bad record.
func FromRawAll(raws []RawListing) ([]Listing, error) {
	listings := make([]Listing, 0, len(raws))
	for i, raw := range raws {
		l, err := FromRaw(i, raw)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// Describe returns a one-line summary of a listing for logs and reports.
func Describe(l Listing) string {
	first := firstLine(l.State().Content)
	switch v := l.(type) {
	case *CodeListingWithRef:
		return fmt.Sprintf("%s %s @ %s", v.Type(), v.Path, v.GitRef)
	case *CodeListing:
		return fmt.Sprintf("%s %s", v.Type(), v.Path)
	case *CommandListing:
		return fmt.Sprintf("%s %q", v.Type(), first)
	case *OutputListing:
		return fmt.Sprintf("%s %q", v.Type(), first)
	default:
		return string(l.Type())
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
