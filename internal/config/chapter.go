package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harrison/booktester/internal/models"
	"github.com/harrison/booktester/internal/sourcetree"
)

// ChapterConfig describes how to replay one chapter.
type ChapterConfig struct {
	// Chapter is the chapter name; it is also the ref of the chapter's final commit
	Chapter string `yaml:"chapter"`

	// PreviousChapter is the ref the run starts from
	PreviousChapter string `yaml:"previous_chapter"`

	// Source is the chapter text, relative to this file
	Source string `yaml:"source"`

	// Setup commands run once before the first listing
	Setup []string `yaml:"setup"`

	// Skips are listings the chapter deliberately does not replay
	Skips []SkipEntry `yaml:"skips"`

	// Checks are expectations about specific parsed listings
	Checks []CheckEntry `yaml:"checks"`

	// ResumePoint is where a resumed run picks up; unused unless resuming
	ResumePoint *ResumeEntry `yaml:"resume_point"`

	// Ignore overrides the global ignore list when present
	Ignore []string `yaml:"ignore"`

	// Path is the file the configuration was loaded from
	Path string `yaml:"-"`
}

// SkipEntry skips one listing.
type SkipEntry struct {
	Index  int    `yaml:"index"`
	Reason string `yaml:"reason"`
}

// CheckEntry asserts the type and/or skip flag of one listing.
type CheckEntry struct {
	Index int    `yaml:"index"`
	Type  string `yaml:"type"`
	Skip  *bool  `yaml:"skip"`
}

// ResumeEntry is a listing position and the commit the tree is at there.
type ResumeEntry struct {
	Pos    int    `yaml:"pos"`
	Commit string `yaml:"commit"`
}

// LoadChapter reads a chapter configuration. Unknown keys are rejected so
// that a misspelled skip never silently turns into a replayed listing.
func LoadChapter(path string) (*ChapterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chapter config: %w", err)
	}

	var ch ChapterConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ch); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("chapter config %s is empty", path)
		}
		return nil, fmt.Errorf("failed to parse chapter config %s: %w", path, err)
	}
	ch.Path = path

	if err := ch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chapter config %s: %w", path, err)
	}
	return &ch, nil
}

// ResolveChapterPath turns a command-line argument into a chapter config
// path: arguments naming an existing file are used as-is, bare chapter
// names are looked up as <bookDir>/<name>.yaml.
func ResolveChapterPath(bookDir, arg string) string {
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	if filepath.Ext(arg) == "" && !strings.ContainsRune(arg, os.PathSeparator) {
		return filepath.Join(bookDir, arg+".yaml")
	}
	return arg
}

// SourcePath returns the chapter text location.
func (c *ChapterConfig) SourcePath() string {
	if filepath.IsAbs(c.Source) {
		return c.Source
	}
	return filepath.Join(filepath.Dir(c.Path), c.Source)
}

// IgnoreList returns the chapter's ignore list, or fallback if it has none.
func (c *ChapterConfig) IgnoreList(fallback []string) []string {
	if c.Ignore != nil {
		return c.Ignore
	}
	return fallback
}

// Validate checks required fields and the shape of skips, checks and the
// resume point.
func (c *ChapterConfig) Validate() error {
	if c.Chapter == "" {
		return fmt.Errorf("chapter is required")
	}
	if c.PreviousChapter == "" {
		return fmt.Errorf("previous_chapter is required")
	}
	if c.Source == "" {
		return fmt.Errorf("source is required")
	}

	seen := make(map[int]bool)
	for _, s := range c.Skips {
		if s.Index < 0 {
			return fmt.Errorf("skips: index must be >= 0, got %d", s.Index)
		}
		if seen[s.Index] {
			return fmt.Errorf("skips: listing %d listed twice", s.Index)
		}
		seen[s.Index] = true
	}

	for _, chk := range c.Checks {
		if chk.Index < 0 {
			return fmt.Errorf("checks: index must be >= 0, got %d", chk.Index)
		}
		if chk.Type == "" && chk.Skip == nil {
			return fmt.Errorf("checks: listing %d has nothing to check", chk.Index)
		}
		if chk.Type != "" {
			if _, err := ParseListingType(chk.Type); err != nil {
				return fmt.Errorf("checks: listing %d: %w", chk.Index, err)
			}
		}
	}

	if rp := c.ResumePoint; rp != nil {
		if rp.Pos < 0 {
			return fmt.Errorf("resume_point: pos must be >= 0, got %d", rp.Pos)
		}
		if rp.Commit == "" {
			return fmt.Errorf("resume_point: commit is required")
		}
	}

	if c.Ignore != nil {
		if _, err := sourcetree.NewCategorySet(c.Ignore...); err != nil {
			return fmt.Errorf("ignore: %w", err)
		}
	}
	return nil
}

// ParseListingType accepts a full listing type name or its short form
// (code, code-ref, command, output).
func ParseListingType(name string) (models.ListingType, error) {
	switch strings.TrimSpace(name) {
	case "code", string(models.TypeCode):
		return models.TypeCode, nil
	case "code-ref", string(models.TypeCodeWithRef):
		return models.TypeCodeWithRef, nil
	case "command", string(models.TypeCommand):
		return models.TypeCommand, nil
	case "output", string(models.TypeOutput):
		return models.TypeOutput, nil
	default:
		return "", &models.UnknownListingTypeError{Index: -1, Type: name}
	}
}
