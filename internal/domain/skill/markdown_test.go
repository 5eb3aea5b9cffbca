package skill

import (
	"strings"
	"testing"
)

func TestEncodeDecodeMarkdown(t *testing.T) {
	s := &Skill{
		Name:        "code-review",
		Description: "Review pull requests for style and correctness",
		Tags:        []string{"review", "quality"},
		Content:     "# Code Review\n\nCheck naming, tests, and error handling.",
	}

	doc, err := EncodeMarkdown(s)
	if err != nil {
		t.Fatalf("EncodeMarkdown: %v", err)
	}
	if !strings.HasPrefix(string(doc), "---\n") {
		t.Fatalf("document does not start with front matter:\n%s", doc)
	}

	req, err := DecodeMarkdown(doc)
	if err != nil {
		t.Fatalf("DecodeMarkdown: %v", err)
	}
	if req.Name != s.Name || req.Description != s.Description {
		t.Errorf("decoded = %+v", req)
	}
	if len(req.Tags) != 2 || req.Tags[0] != "review" {
		t.Errorf("tags = %v", req.Tags)
	}
	if req.Content != s.Content {
		t.Errorf("content = %q, want %q", req.Content, s.Content)
	}
}

func TestDecodeMarkdownWithoutFrontMatter(t *testing.T) {
	req, err := DecodeMarkdown([]byte("# Just content\n"))
	if err != nil {
		t.Fatalf("DecodeMarkdown: %v", err)
	}
	if req.Name != "" || req.Content != "# Just content\n" {
		t.Errorf("decoded = %+v", req)
	}
}

func TestDecodeMarkdownUnterminatedFrontMatter(t *testing.T) {
	if _, err := DecodeMarkdown([]byte("---\nname: x\n")); err == nil {
		t.Fatal("expected error for unterminated front matter")
	}
}
