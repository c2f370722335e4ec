// Package skills holds the skill synonym table used to canonicalize skill
// names before they are looked up or stored.
package skills

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonyms []byte

var spaces = regexp.MustCompile(`\s+`)

// Table maps skill aliases to canonical names. Lookups are case-insensitive.
// A Table is immutable once built.
type Table struct {
	canonical map[string]string
	aliases   map[string][]string
}

// Default returns the table shipped with the binary.
func Default() (*Table, error) {
	return Parse(defaultSynonyms)
}

// Load reads a YAML synonym file of the form `canonical: [alias, ...]`.
// An empty path yields the default table.
func Load(path string) (*Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file %q: %w", path, err)
	}

	return Parse(data)
}

// Parse builds a table from YAML data.
func Parse(data []byte) (*Table, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse synonyms: %w", err)
	}

	t := &Table{
		canonical: make(map[string]string, len(raw)*4),
		aliases:   make(map[string][]string, len(raw)),
	}

	for canonical, aliases := range raw {
		name := Normalize(canonical)
		if name == "" {
			return nil, fmt.Errorf("parse synonyms: empty canonical name")
		}
		if err := t.add(name, name); err != nil {
			return nil, err
		}
		if _, ok := t.aliases[name]; !ok {
			t.aliases[name] = nil
		}
		for _, alias := range aliases {
			a := Normalize(alias)
			if a == "" {
				continue
			}
			if err := t.add(a, name); err != nil {
				return nil, err
			}
			t.aliases[name] = append(t.aliases[name], a)
		}
		sort.Strings(t.aliases[name])
	}

	return t, nil
}

func (t *Table) add(key, canonical string) error {
	if existing, ok := t.canonical[key]; ok && existing != canonical {
		return fmt.Errorf("parse synonyms: %q maps to both %q and %q", key, existing, canonical)
	}
	t.canonical[key] = canonical
	return nil
}

// Canonical returns the canonical form of name. Unknown names are returned
// normalized.
func (t *Table) Canonical(name string) string {
	n := Normalize(name)
	if t == nil {
		return n
	}
	if c, ok := t.canonical[n]; ok {
		return c
	}
	return n
}

// Aliases lists the aliases of a canonical name in sorted order.
func (t *Table) Aliases(canonical string) []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.aliases[Normalize(canonical)]...)
}

// Keys returns every alias and canonical name known to the table.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.canonical))
	for k := range t.canonical {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len is the number of canonical skills.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.aliases)
}

// Normalize case-folds name, trims it and collapses inner whitespace.
func Normalize(name string) string {
	name = strings.TrimSpace(spaces.ReplaceAllString(name, " "))
	return cases.Fold().String(name)
}
