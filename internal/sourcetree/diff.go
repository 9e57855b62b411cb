package sourcetree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Category classifies one entry of a structural diff.
type Category string

const (
	CategoryAdded    Category = "added"
	CategoryModified Category = "modified"
	CategoryDeleted  Category = "deleted"
	// CategoryMoves is a pure rename: same content, different path.
	CategoryMoves Category = "moves"
)

// KnownCategories lists every category a diff entry can carry.
var KnownCategories = []Category{CategoryAdded, CategoryModified, CategoryDeleted, CategoryMoves}

// CategorySet is a set of categories to ignore when diffing.
type CategorySet map[Category]bool

// NewCategorySet builds a set from category names.
// Unknown names are rejected so a typo in configuration cannot hide divergence.
func NewCategorySet(names ...string) (CategorySet, error) {
	set := make(CategorySet, len(names))
	for _, name := range names {
		c := Category(strings.ToLower(strings.TrimSpace(name)))
		known := false
		for _, k := range KnownCategories {
			if c == k {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown diff category %q (known: added, modified, deleted, moves)", name)
		}
		set[c] = true
	}
	return set, nil
}

// Has reports whether c is in the set. A nil set contains nothing.
func (s CategorySet) Has(c Category) bool {
	return s[c]
}

// DiffEntry is one file-level difference between the working tree and a commit.
type DiffEntry struct {
	Category Category `json:"category"`
	Status   string   `json:"status"`             // Raw git status letter(s), e.g. "M", "R100"
	Path     string   `json:"path"`               // Path in the working tree
	OldPath  string   `json:"old_path,omitempty"` // Source path for renames and copies
}

// String formats the entry as "<category> <path>" or "<category> <old> -> <new>".
func (e DiffEntry) String() string {
	if e.OldPath != "" {
		return fmt.Sprintf("%s %s -> %s", e.Category, e.OldPath, e.Path)
	}
	return fmt.Sprintf("%s %s", e.Category, e.Path)
}

// Diff is the structural difference against an expected commit.
type Diff struct {
	Against string      `json:"against"`
	Entries []DiffEntry `json:"entries"`
}

// IsEmpty reports whether no unexplained difference remains.
func (d *Diff) IsEmpty() bool {
	return d == nil || len(d.Entries) == 0
}

// Paths returns the working-tree paths of all entries.
func (d *Diff) Paths() []string {
	if d == nil {
		return nil
	}
	paths := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Lines formats every entry with DiffEntry.String.
func (d *Diff) Lines() []string {
	if d == nil {
		return nil
	}
	lines := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		lines[i] = e.String()
	}
	return lines
}

// String renders the diff one entry per line.
func (d *Diff) String() string {
	return strings.Join(d.Lines(), "\n")
}

// Filter returns a copy without entries whose category is in ignore.
func (d *Diff) Filter(ignore CategorySet) *Diff {
	out := &Diff{Against: d.Against, Entries: []DiffEntry{}}
	for _, e := range d.Entries {
		if ignore.Has(e.Category) {
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// parseNameStatus parses `git diff --name-status -M` output.
//
// Lines are tab separated: "M\tpath", "R087\told\tnew". A rename at 100%
// similarity is a pure move; any lower score means the file also changed
// and is reported as modified.
func parseNameStatus(against, output string) (*Diff, error) {
	d := &Diff{Against: against, Entries: []DiffEntry{}}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("unexpected diff line %q", line)
		}
		status := fields[0]
		entry := DiffEntry{Status: status, Path: fields[1]}

		switch status[0] {
		case 'A':
			entry.Category = CategoryAdded
		case 'D':
			entry.Category = CategoryDeleted
		case 'M', 'T':
			entry.Category = CategoryModified
		case 'R', 'C':
			if len(fields) < 3 {
				return nil, fmt.Errorf("unexpected %s line %q", status, line)
			}
			entry.OldPath = fields[1]
			entry.Path = fields[2]
			switch {
			case status[0] == 'C':
				entry.Category = CategoryAdded
			case similarity(status) == 100:
				entry.Category = CategoryMoves
			default:
				entry.Category = CategoryModified
			}
		default:
			return nil, fmt.Errorf("unsupported diff status %q in line %q", status, line)
		}
		d.Entries = append(d.Entries, entry)
	}

	sort.SliceStable(d.Entries, func(i, j int) bool {
		return d.Entries[i].Path < d.Entries[j].Path
	})
	return d, nil
}

func similarity(status string) int {
	n, err := strconv.Atoi(status[1:])
	if err != nil {
		return 0
	}
	return n
}
