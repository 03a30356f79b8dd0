package scheme

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrFormat matches every rubric format failure via errors.Is.
var ErrFormat = errors.New("scheme: malformed rubric")

// FormatError describes why rubric text could not be parsed.
type FormatError struct {
	// Path locates the offending field, e.g. criteria[1].choices[0].points.
	Path string
	// Line is the 1-based source line, or 0 when unknown.
	Line int
	Msg  string
	Err  error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("scheme: ")
	if e.Path != "" {
		b.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", e.Line)
		}
		b.WriteString(": ")
	} else if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports ErrFormat as a match.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

type rawScheme struct {
	Title    string         `yaml:"title"`
	Criteria []rawCriterion `yaml:"criteria"`
}

type rawCriterion struct {
	Prompt  string      `yaml:"prompt"`
	Context string      `yaml:"context"`
	Notes   string      `yaml:"notes"`
	Choices []rawChoice `yaml:"choices"`
}

type rawChoice struct {
	Label       string  `yaml:"label"`
	Description string  `yaml:"description"`
	Points      *Points `yaml:"points"`
}

// Parse decodes rubric text. It either returns a complete Scheme or a
// *FormatError; no partial result is ever produced.
func Parse(text []byte) (*Scheme, error) {
	if len(bytes.TrimSpace(text)) == 0 {
		return nil, &FormatError{Msg: "rubric is empty"}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, &FormatError{Msg: "invalid YAML", Err: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(text))
	dec.KnownFields(true)
	var raw rawScheme
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &FormatError{Msg: "rubric is empty"}
		}
		return nil, &FormatError{Msg: "decode rubric", Err: err}
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &FormatError{Msg: "rubric must be a single YAML document", Err: err}
	}
	return raw.build(&doc)
}

// Load reads and parses a rubric file.
func Load(path string) (*Scheme, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scheme: read %s: %w", path, err)
	}
	s, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("scheme: %s: %w", path, err)
	}
	return s, nil
}

func (raw rawScheme) build(doc *yaml.Node) (*Scheme, error) {
	if len(raw.Criteria) == 0 {
		return nil, &FormatError{Path: "criteria", Line: locate(doc, "criteria"), Msg: "at least one criterion is required"}
	}
	s := &Scheme{
		Title:    strings.TrimSpace(raw.Title),
		Criteria: make([]Criterion, 0, len(raw.Criteria)),
	}
	for i, rc := range raw.Criteria {
		path := fmt.Sprintf("criteria[%d]", i)
		prompt := strings.TrimSpace(rc.Prompt)
		if prompt == "" {
			return nil, &FormatError{Path: path + ".prompt", Line: locate(doc, "criteria", i), Msg: "prompt is required"}
		}
		if len(rc.Choices) == 0 {
			return nil, &FormatError{Path: path + ".choices", Line: locate(doc, "criteria", i, "choices"), Msg: "at least one choice is required"}
		}
		crit := Criterion{
			Prompt:  prompt,
			Context: strings.TrimSpace(rc.Context),
			Notes:   strings.TrimRight(rc.Notes, "\n"),
			Choices: make([]Choice, 0, len(rc.Choices)),
		}
		for j, ch := range rc.Choices {
			chPath := fmt.Sprintf("%s.choices[%d]", path, j)
			label := strings.TrimSpace(ch.Label)
			if label == "" {
				return nil, &FormatError{Path: chPath + ".label", Line: locate(doc, "criteria", i, "choices", j), Msg: "label is required"}
			}
			if ch.Points == nil {
				return nil, &FormatError{Path: chPath + ".points", Line: locate(doc, "criteria", i, "choices", j), Msg: "points value is required"}
			}
			crit.Choices = append(crit.Choices, Choice{
				Label:       label,
				Description: strings.TrimSpace(ch.Description),
				Points:      *ch.Points,
			})
		}
		s.Criteria = append(s.Criteria, crit)
	}
	return s, nil
}

// locate walks doc along path (mapping keys and sequence indexes) and returns
// the line of the deepest node reached.
func locate(doc *yaml.Node, path ...any) int {
	node := doc
	if node == nil {
		return 0
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	line := node.Line
	for _, step := range path {
		var next *yaml.Node
		switch key := step.(type) {
		case string:
			if node.Kind != yaml.MappingNode {
				return line
			}
			for i := 0; i+1 < len(node.Content); i += 2 {
				if node.Content[i].Value == key {
					next = node.Content[i+1]
					break
				}
			}
		case int:
			if node.Kind != yaml.SequenceNode || key < 0 || key >= len(node.Content) {
				return line
			}
			next = node.Content[key]
		}
		if next == nil {
			return line
		}
		node = next
		line = node.Line
	}
	return line
}
