// Package category maps OpenStreetMap tag sets to a display category and subcategory.
package category

import (
	_ "embed"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// Info is the derived classification of a business.
type Info struct {
	Category    string `json:"category" yaml:"category"`
	Subcategory string `json:"subcategory" yaml:"subcategory"`
}

// Rule maps an exact tag (key=value) to a classification.
type Rule struct {
	Key   string
	Value string
	Info  Info
}

// Fallback buckets a business by the presence of a top-level tag key.
type Fallback struct {
	Key      string `yaml:"key"`
	Category string `yaml:"category"`
}

// Table is a versioned, ordered rule set.
type Table struct {
	Version  int
	Rules    []Rule
	Fallback []Fallback
	Default  Info
}

type tableFile struct {
	Version int `yaml:"version"`
	Rules   []struct {
		Tag         string `yaml:"tag"`
		Category    string `yaml:"category"`
		Subcategory string `yaml:"subcategory"`
	} `yaml:"rules"`
	Fallback []Fallback `yaml:"fallback"`
	Default  Info       `yaml:"default"`
}

// ParseTable decodes a YAML rule table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "category: parse rules")
	}
	if f.Version <= 0 {
		return nil, eris.New("category: rules version must be positive")
	}
	if f.Default.Category == "" || f.Default.Subcategory == "" {
		return nil, eris.New("category: default classification is required")
	}

	t := &Table{
		Version:  f.Version,
		Rules:    make([]Rule, 0, len(f.Rules)),
		Fallback: f.Fallback,
		Default:  f.Default,
	}
	for i, r := range f.Rules {
		key, value, ok := strings.Cut(r.Tag, "=")
		if !ok || key == "" || value == "" {
			return nil, eris.Errorf("category: rule %d: tag %q is not key=value", i, r.Tag)
		}
		t.Rules = append(t.Rules, Rule{
			Key:   key,
			Value: value,
			Info:  Info{Category: r.Category, Subcategory: r.Subcategory},
		})
	}
	return t, nil
}

var defaultTable = mustParse(rulesYAML)

func mustParse(data []byte) *Table {
	t, err := ParseTable(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the embedded rule table.
func Default() *Table {
	return defaultTable
}

// Version returns the embedded rule table version.
func Version() int {
	return defaultTable.Version
}

// Rules returns a copy of the embedded exact-match rules in evaluation order.
func Rules() []Rule {
	return append([]Rule(nil), defaultTable.Rules...)
}

// Categorize classifies tags with the embedded rule table.
func Categorize(tags map[string]string) Info {
	return defaultTable.Categorize(tags)
}

// Categorize returns the first exact rule match, then the first present
// fallback key, then the table default. It never returns an empty Info.
func (t *Table) Categorize(tags map[string]string) Info {
	for _, r := range t.Rules {
		if v, ok := tags[r.Key]; ok && v == r.Value {
			return r.Info
		}
	}
	for _, fb := range t.Fallback {
		if v := tags[fb.Key]; v != "" {
			return Info{Category: fb.Category, Subcategory: TitleCase(v)}
		}
	}
	return t.Default
}

// TitleCase turns an OSM tag value like "fast_food" into "Fast Food". Only
// underscores separate words, and only the first rune of each word changes:
// "e-cigarette" becomes "E-cigarette", "2nd_hand" becomes "2nd Hand".
func TitleCase(s string) string {
	// Casers hold state and are not safe for concurrent use.
	upper := cases.Upper(language.Und)
	words := strings.Split(s, "_")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if r == utf8.RuneError {
			continue
		}
		words[i] = upper.String(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// DisplayName returns the business name, or "Unnamed <subcategory>" when absent.
func DisplayName(name *string, subcategory string) string {
	if name != nil && *name != "" {
		return *name
	}
	return "Unnamed " + subcategory
}
