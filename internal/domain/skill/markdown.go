package skill

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// frontMatter is the YAML header carried at the top of an exported skill
// document.
type frontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags,omitempty"`
}

// EncodeMarkdown renders a skill as a markdown document with YAML front
// matter. This is the wire format for marketplace snippets.
func EncodeMarkdown(s *Skill) ([]byte, error) {
	meta, err := yaml.Marshal(frontMatter{Name: s.Name, Description: s.Description, Tags: s.Tags})
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelim + "\n")
	buf.Write(meta)
	buf.WriteString(frontMatterDelim + "\n")
	buf.WriteString(s.Content)
	return buf.Bytes(), nil
}

// DecodeMarkdown parses a skill document produced by EncodeMarkdown. A
// document without front matter becomes a skill with the whole body as
// content and empty metadata.
func DecodeMarkdown(doc []byte) (*CreateRequest, error) {
	text := string(doc)
	if !strings.HasPrefix(text, frontMatterDelim+"\n") {
		return &CreateRequest{Content: text}, nil
	}

	rest := text[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return nil, fmt.Errorf("unterminated front matter")
	}

	var meta frontMatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}

	content := rest[end+1+len(frontMatterDelim):]
	content = strings.TrimPrefix(content, "\n")
	return &CreateRequest{
		Name:        meta.Name,
		Description: meta.Description,
		Tags:        meta.Tags,
		Content:     content,
	}, nil
}
