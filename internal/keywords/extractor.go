// Package keywords derives candidate scorer labels from a prompt's free text.
package keywords

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	// MaxLabels caps the candidate list; scoring degrades with more.
	MaxLabels = 8

	fallbackMinRunes = 4
	fallbackMaxTerms = 5
)

//go:embed table.yaml
var defaultTable []byte

type Entry struct {
	Phrase string   `yaml:"phrase"`
	Labels []string `yaml:"labels"`
}

type entry struct {
	needle string
	labels []string
}

type Extractor struct {
	entries []entry
}

// New builds an Extractor from the embedded phrase table.
func New() (*Extractor, error) {
	return NewFromYAML(defaultTable)
}

// MustNew panics if the embedded table is malformed.
func MustNew() *Extractor {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}

func NewFromYAML(data []byte) (*Extractor, error) {
	var table []Entry
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse keyword table: %w", err)
	}
	return NewFromEntries(table)
}

func NewFromEntries(table []Entry) (*Extractor, error) {
	e := &Extractor{}
	for i, t := range table {
		needle := e.normalize(t.Phrase)
		if needle == "" {
			return nil, fmt.Errorf("keyword table entry %d has an empty phrase", i)
		}
		if len(t.Labels) == 0 {
			return nil, fmt.Errorf("keyword table entry %q has no labels", t.Phrase)
		}
		e.entries = append(e.entries, entry{needle: needle, labels: t.Labels})
	}
	return e, nil
}

// lower builds a fresh Caser per call; Casers are not safe to share.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// normalize lowercases and strips diacritics so "Montaña" matches "montana".
func (e *Extractor) normalize(s string) string {
	return unidecode.Unidecode(lower(strings.TrimSpace(s)))
}

// Extract returns the ordered, deduplicated candidate labels for text. Table
// matches are unioned in table order. When nothing matches, the first words
// longer than three characters are used as-is. The result is empty only for
// blank text.
func (e *Extractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	haystack := e.normalize(text)
	labels := newLabelSet(MaxLabels)
	for _, en := range e.entries {
		if !strings.Contains(haystack, en.needle) {
			continue
		}
		for _, l := range en.labels {
			labels.add(l)
		}
		if labels.full() {
			break
		}
	}
	if labels.len() > 0 {
		return labels.items
	}

	return e.fallback(text)
}

func (e *Extractor) fallback(text string) []string {
	labels := newLabelSet(fallbackMaxTerms)
	for _, field := range strings.Fields(text) {
		token := strings.TrimFunc(lower(field), func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if len([]rune(token)) < fallbackMinRunes {
			continue
		}
		labels.add(token)
		if labels.full() {
			break
		}
	}
	if labels.len() == 0 {
		labels.add(lower(strings.TrimSpace(text)))
	}
	return labels.items
}

type labelSet struct {
	items []string
	seen  map[string]bool
	max   int
}

func newLabelSet(max int) *labelSet {
	return &labelSet{seen: make(map[string]bool), max: max}
}

func (s *labelSet) add(label string) {
	label = strings.TrimSpace(label)
	if label == "" || s.seen[label] || s.full() {
		return
	}
	s.seen[label] = true
	s.items = append(s.items, label)
}

func (s *labelSet) full() bool { return len(s.items) >= s.max }
func (s *labelSet) len() int    { return len(s.items) }
