package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/booktester/internal/models"
)

// Format represents the format of a chapter source file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatMarkdown represents chapter prose in Markdown (.md, .markdown)
	FormatMarkdown
	// FormatYAML represents a pre-extracted listing dump (.yaml, .yml)
	FormatYAML
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Parser is the interface that all chapter parsers must implement
type Parser interface {
	// Parse reads chapter source and returns its listings in order,
	// before type classification.
	Parse(r io.Reader) ([]models.RawListing, error)
}

// DetectFormat automatically detects the chapter format based on file extension
// Supported extensions:
//   - .md, .markdown -> FormatMarkdown
//   - .yaml, .yml -> FormatYAML
//   - all others -> FormatUnknown
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// NewParser creates a new parser instance for the specified format
// Returns an error if the format is unknown or unsupported
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// ParseFile detects the format of path, parses it and returns the raw
// listings without classifying them.
func ParseFile(path string) ([]models.RawListing, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unknown file format: %s (supported: .md, .markdown, .yaml, .yml)", path)
	}

	parser, err := NewParser(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	raws, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return raws, nil
}

// ParseChapter parses path and classifies every listing. An unrecognized
// listing type fails with *models.UnknownListingTypeError.
func ParseChapter(path string) ([]models.Listing, error) {
	raws, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return models.FromRawAll(raws)
}
