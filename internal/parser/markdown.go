package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/booktester/internal/models"
)

// sessionLanguages are fence languages whose body is a terminal transcript.
var sessionLanguages = map[string]bool{
	"console":       true,
	"shell-session": true,
	"sh-session":    true,
}

// typeAliases maps the short names accepted in `type=` to listing types.
// Names not in this table are passed through unchanged so that
// classification can reject them.
var typeAliases = map[string]models.ListingType{
	"code":     models.TypeCode,
	"code-ref": models.TypeCodeWithRef,
	"command":  models.TypeCommand,
	"output":   models.TypeOutput,
}

// MarkdownParser extracts listings from the fenced code blocks of a chapter.
// Prose is ignored.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// fenceInfo is the parsed info string of a fenced code block.
type fenceInfo struct {
	lang  string
	attrs map[string]string
	flags map[string]bool
}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

func (p *MarkdownParser) Parse(r io.Reader) ([]models.RawListing, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	doc := p.markdown.Parser().Parse(text.NewReader(content))

	var listings []models.RawListing
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		raws, err := extractListings(block, content)
		if err != nil {
			return ast.WalkStop, err
		}
		listings = append(listings, raws...)
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// extractListings turns one fenced block into zero or more raw listings.
func extractListings(block *ast.FencedCodeBlock, source []byte) ([]models.RawListing, error) {
	line := blockLine(block, source)

	var infoText string
	if block.Info != nil {
		infoText = string(block.Info.Segment.Value(source))
	}
	info, err := parseFenceInfo(infoText)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}

	lines := blockLines(block, source)
	body := strings.Join(lines, "")

	base := models.RawListing{
		Line:       line,
		Path:       info.attrs["path"],
		GitRef:     info.attrs["ref"],
		SkipReason: info.attrs["skip-reason"],
	}
	base.Skip = info.flags["skip"] || base.SkipReason != ""
	base.ExpectFailure = info.flags["expect-fail"]

	if name, ok := info.attrs["type"]; ok {
		typ, known := typeAliases[name]
		if !known {
			typ = models.ListingType(name)
		}
		base.Type = string(typ)
		switch typ {
		case models.TypeCommand:
			base.Content = strings.TrimPrefix(strings.TrimRight(body, "\n"), "$ ")
		default:
			base.Content = body
		}
		return []models.RawListing{base}, nil
	}

	switch {
	case base.GitRef != "":
		base.Type = string(models.TypeCodeWithRef)
		base.Content = body
		return []models.RawListing{base}, nil
	case base.Path != "":
		base.Type = string(models.TypeCode)
		base.Content = body
		return []models.RawListing{base}, nil
	case sessionLanguages[info.lang]:
		return parseSession(lines, line, base)
	default:
		return nil, nil
	}
}

// parseSession splits a terminal transcript into command listings (lines
// starting with "$ ") and the output listings that follow them. Lines before
// the first prompt are output of a command shown in an earlier block.
// A bare prompt is only allowed as the idle last line of a transcript.
func parseSession(lines []string, firstLine int, base models.RawListing) ([]models.RawListing, error) {
	var (
		listings  []models.RawListing
		out       strings.Builder
		outLine   int
		inCommand bool
	)

	flushOutput := func() {
		if strings.TrimSpace(out.String()) != "" {
			l := base
			l.Type = string(models.TypeOutput)
			l.Content = out.String()
			l.Line = outLine
			l.ExpectFailure = false
			listings = append(listings, l)
		}
		out.Reset()
		outLine = 0
	}

	for i := 0; i < len(lines); i++ {
		current := strings.TrimRight(lines[i], "\n")
		if cmd, ok := promptCommand(current); ok {
			flushOutput()
			cmdLine := firstLine + i
			if cmd == "" {
				if !allBlank(lines[i+1:]) {
					return nil, fmt.Errorf("line %d: empty command prompt", cmdLine)
				}
				break
			}
			for strings.HasSuffix(cmd, `\`) && i+1 < len(lines) {
				i++
				cmd += "\n" + strings.TrimRight(lines[i], "\n")
			}
			l := base
			l.Type = string(models.TypeCommand)
			l.Content = cmd
			l.Line = cmdLine
			listings = append(listings, l)
			inCommand = true
			continue
		}

		if outLine == 0 && (inCommand || strings.TrimSpace(current) != "") {
			outLine = firstLine + i
		}
		out.WriteString(lines[i])
	}
	flushOutput()
	return listings, nil
}

func allBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

func promptCommand(line string) (string, bool) {
	if strings.TrimSpace(line) == "$" {
		return "", true
	}
	if cmd, ok := strings.CutPrefix(line, "$ "); ok {
		return strings.TrimSpace(cmd), true
	}
	return "", false
}

// parseFenceInfo splits an info string such as
//
//	python path=src/lists/views.py ref=ch21l004 skip-reason="not in repo"
//
// into a language, key=value attributes and bare flags.
func parseFenceInfo(info string) (fenceInfo, error) {
	fi := fenceInfo{attrs: map[string]string{}, flags: map[string]bool{}}

	tokens, err := splitInfo(info)
	if err != nil {
		return fi, err
	}
	for i, tok := range tokens {
		key, value, isAttr := strings.Cut(tok, "=")
		if !isAttr {
			if i == 0 {
				fi.lang = strings.ToLower(tok)
			} else {
				fi.flags[tok] = true
			}
			continue
		}
		if strings.HasPrefix(value, `"`) {
			unquoted, err := strconv.Unquote(value)
			if err != nil {
				return fi, fmt.Errorf("bad quoted value for %s: %w", key, err)
			}
			value = unquoted
		}
		fi.attrs[key] = value
	}
	return fi, nil
}

// splitInfo splits on whitespace outside double quotes.
func splitInfo(info string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range info {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && unicode.IsSpace(r):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteRune(r)
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in info string %q", info)
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// blockLines returns the body of a fenced block line by line, each line
// keeping its newline.
func blockLines(block *ast.FencedCodeBlock, source []byte) []string {
	segs := block.Lines()
	lines := make([]string, segs.Len())
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		lines[i] = string(seg.Value(source))
	}
	return lines
}

// blockLine returns the 1-based line of the first body line of block.
func blockLine(block *ast.FencedCodeBlock, source []byte) int {
	switch {
	case block.Lines().Len() > 0:
		return lineOf(source, block.Lines().At(0).Start)
	case block.Info != nil:
		return lineOf(source, block.Info.Segment.Start) + 1
	default:
		return 0
	}
}

func lineOf(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte("\n")) + 1
}
