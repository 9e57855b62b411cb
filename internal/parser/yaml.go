package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/harrison/booktester/internal/models"
)

// YAMLParser reads listings that were extracted ahead of time, one record
// per listing with the type spelled out.
type YAMLParser struct{}

type yamlChapter struct {
	Listings []yamlListing `yaml:"listings"`
}

type yamlListing struct {
	Type          string `yaml:"type"`
	Content       string `yaml:"content"`
	Path          string `yaml:"path,omitempty"`
	Ref           string `yaml:"ref,omitempty"`
	Line          int    `yaml:"line,omitempty"`
	Skip          bool   `yaml:"skip,omitempty"`
	SkipReason    string `yaml:"skip_reason,omitempty"`
	ExpectFailure bool   `yaml:"expect_failure,omitempty"`
}

func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) Parse(r io.Reader) ([]models.RawListing, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var chapter yamlChapter
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&chapter); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	raws := make([]models.RawListing, len(chapter.Listings))
	for i, l := range chapter.Listings {
		raws[i] = models.RawListing{
			Type:          l.Type,
			Content:       l.Content,
			Path:          l.Path,
			GitRef:        l.Ref,
			Line:          l.Line,
			Skip:          l.Skip,
			SkipReason:    l.SkipReason,
			ExpectFailure: l.ExpectFailure,
		}
	}
	return raws, nil
}
