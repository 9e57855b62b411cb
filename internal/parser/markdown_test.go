package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/harrison/booktester/internal/models"
)

const chapterMarkdown = "# Chapter 21: Mocking\n" +
	"\n" +
	"Some prose about the view.\n" +
	"\n" +
	"```python path=src/lists/views.py\n" +
	"def home_page(request):\n" +
	"    return render(request, \"home.html\")\n" +
	"```\n" +
	"\n" +
	"Now run the tests:\n" +
	"\n" +
	"```console expect-fail\n" +
	"$ python src/manage.py test lists\n" +
	"FAILED (failures=1)\n" +
	"$ git status\n" +
	"```\n" +
	"\n" +
	"```python path=src/lists/urls.py ref=ch21l004\n" +
	"urlpatterns = []\n" +
	"```\n" +
	"\n" +
	"```python\n" +
	"# just an illustration, not applied\n" +
	"```\n" +
	"\n" +
	"```console skip-reason=\"needs a live server\"\n" +
	"$ curl http://localhost:8000\n" +
	"```\n"

func TestParseMarkdownChapter(t *testing.T) {
	raws, err := NewMarkdownParser().Parse(strings.NewReader(chapterMarkdown))
	if err != nil {
		t.Fatalf("Failed to parse markdown: %v", err)
	}

	want := []struct {
		typ     models.ListingType
		content string
		line    int
	}{
		{models.TypeCode, "def home_page(request):\n    return render(request, \"home.html\")\n", 6},
		{models.TypeCommand, "python src/manage.py test lists", 13},
		{models.TypeOutput, "FAILED (failures=1)\n", 14},
		{models.TypeCommand, "git status", 15},
		{models.TypeCodeWithRef, "urlpatterns = []\n", 19},
		{models.TypeCommand, "curl http://localhost:8000", 27},
	}

	if len(raws) != len(want) {
		t.Fatalf("Expected %d listings, got %d: %+v", len(want), len(raws), raws)
	}
	for i, w := range want {
		if raws[i].Type != string(w.typ) {
			t.Errorf("listing %d: expected type %q, got %q", i, w.typ, raws[i].Type)
		}
		if raws[i].Content != w.content {
			t.Errorf("listing %d: expected content %q, got %q", i, w.content, raws[i].Content)
		}
		if raws[i].Line != w.line {
			t.Errorf("listing %d: expected line %d, got %d", i, w.line, raws[i].Line)
		}
	}

	if raws[0].Path != "src/lists/views.py" {
		t.Errorf("Expected path src/lists/views.py, got %q", raws[0].Path)
	}
	if !raws[1].ExpectFailure || !raws[3].ExpectFailure {
		t.Error("Expected commands in an expect-fail block to be marked")
	}
	if raws[2].ExpectFailure {
		t.Error("Output listings never expect failure")
	}
	if raws[4].GitRef != "ch21l004" {
		t.Errorf("Expected ref ch21l004, got %q", raws[4].GitRef)
	}
	if !raws[5].Skip || raws[5].SkipReason != "needs a live server" {
		t.Errorf("Expected skipped listing with reason, got skip=%v reason=%q", raws[5].Skip, raws[5].SkipReason)
	}
	for i := 0; i < 5; i++ {
		if raws[i].Skip {
			t.Errorf("listing %d should not be skipped", i)
		}
	}
}

func TestParseMarkdown_ExplicitType(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		wantType string
		content  string
	}{
		{
			name:     "output block",
			markdown: "```text type=output\nOK\n```\n",
			wantType: string(models.TypeOutput),
			content:  "OK\n",
		},
		{
			name:     "command block keeps multi-line body",
			markdown: "```bash type=command\n$ ls\n```\n",
			wantType: string(models.TypeCommand),
			content:  "ls",
		},
		{
			name:     "unknown type passes through",
			markdown: "```text type=diagram\nboxes\n```\n",
			wantType: "diagram",
			content:  "boxes\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := NewMarkdownParser().Parse(strings.NewReader(tt.markdown))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(raws) != 1 {
				t.Fatalf("Expected 1 listing, got %d", len(raws))
			}
			if raws[0].Type != tt.wantType {
				t.Errorf("Expected type %q, got %q", tt.wantType, raws[0].Type)
			}
			if raws[0].Content != tt.content {
				t.Errorf("Expected content %q, got %q", tt.content, raws[0].Content)
			}
		})
	}
}

func TestParseMarkdown_UnknownTypeFailsClassification(t *testing.T) {
	raws, err := NewMarkdownParser().Parse(strings.NewReader("```text\nprose\n```\n\n```text type=diagram\nboxes\n```\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err = models.FromRawAll(raws)
	var ue *models.UnknownListingTypeError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected UnknownListingTypeError, got %v", err)
	}
	if ue.Index != 0 || ue.Type != "diagram" {
		t.Errorf("Unexpected error details: %+v", ue)
	}
}

func TestParseSession(t *testing.T) {
	md := "```console\n" +
		"Ran 1 test\n" +
		"\n" +
		"OK\n" +
		"$ docker run \\\n" +
		"    -p 8888:8888 superlists\n" +
		"$ echo done\n" +
		"done\n" +
		"```\n"

	raws, err := NewMarkdownParser().Parse(strings.NewReader(md))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var got []string
	for _, r := range raws {
		got = append(got, r.Type+": "+r.Content)
	}
	want := []string{
		"output listing: Ran 1 test\n\nOK\n",
		"command listing: docker run \\\n    -p 8888:8888 superlists",
		"command listing: echo done",
		"output listing: done\n",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Unexpected listings:\n got %q\nwant %q", got, want)
	}
}

func TestParseSession_BarePrompt(t *testing.T) {
	tests := []struct {
		name    string
		md      string
		want    []string
		wantErr string
	}{
		{
			name: "idle prompt at the end is ignored",
			md:   "```console\n$ ls\nfoo\n$\n```\n",
			want: []string{"command listing: ls", "output listing: foo\n"},
		},
		{
			name: "prompt with trailing spaces only",
			md:   "```console\n$ ls\n$   \n\n```\n",
			want: []string{"command listing: ls"},
		},
		{
			name:    "empty prompt in the middle",
			md:      "# Title\n\n```console\n$ ls\nfoo\n$\nbar\n```\n",
			wantErr: "line 6: empty command prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := NewMarkdownParser().Parse(strings.NewReader(tt.md))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			var got []string
			for _, r := range raws {
				got = append(got, r.Type+": "+r.Content)
				if r.Type == string(models.TypeCommand) && r.Content == "" {
					t.Errorf("empty command listing at line %d", r.Line)
				}
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Unexpected listings:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestParseFenceInfo(t *testing.T) {
	fi, err := parseFenceInfo(`Python path=a.py skip skip-reason="has \"quotes\" inside"`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fi.lang != "python" {
		t.Errorf("Expected language python, got %q", fi.lang)
	}
	if fi.attrs["path"] != "a.py" {
		t.Errorf("Expected path a.py, got %q", fi.attrs["path"])
	}
	if !fi.flags["skip"] {
		t.Error("Expected skip flag")
	}
	if fi.attrs["skip-reason"] != `has "quotes" inside` {
		t.Errorf("Unexpected skip reason %q", fi.attrs["skip-reason"])
	}

	if _, err := parseFenceInfo(`python skip-reason="oops`); err == nil {
		t.Error("Expected error for unterminated quote")
	}

	fi, err = parseFenceInfo("path=a.py")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fi.lang != "" || fi.attrs["path"] != "a.py" {
		t.Errorf("Attribute-only info string parsed wrongly: %+v", fi)
	}
}

func TestParseMarkdown_RefWithoutPath(t *testing.T) {
	raws, err := NewMarkdownParser().Parse(strings.NewReader("```python ref=ch01l001\nx = 1\n```\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := models.FromRawAll(raws); err == nil {
		t.Error("Expected classification error for ref without path")
	}
}
