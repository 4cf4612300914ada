// Package catalog holds the static CBT technique table: one entry per
// canonical distortion key, loaded once and never mutated.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed techniques.yaml
var techniquesYAML []byte

// Technique is a single coping exercise attached to a distortion.
type Technique struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Exercise    string `yaml:"exercise" json:"exercise"`
	Duration    string `yaml:"duration" json:"duration"`
	Difficulty  string `yaml:"difficulty" json:"difficulty"` // kolay, orta, zor
}

// Entry is one row of the catalog.
type Entry struct {
	Key         string      `yaml:"key" json:"distortion_type"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Techniques  []Technique `yaml:"techniques" json:"techniques"`
}

// Generic technique and labels used when a distortion type is unknown.
var (
	GenericTechnique = Technique{
		Title:       "Genel BDT Tekniği",
		Description: "Düşünce kalıplarınızı gözlemleyin",
		Exercise:    "Günlük yazınızda hangi düşünce kalıplarının tekrar ettiğini not edin.",
		Duration:    "10 dakika",
		Difficulty:  "kolay",
	}
	UnknownName        = "Bilinmeyen Çarpıtma"
	UnknownDescription = "Bu çarpıtma türü için henüz teknik hazırlanmamış"
)

type Catalog struct {
	entries map[string]Entry
	order   []string
}

// Load parses the embedded technique table.
func Load() (*Catalog, error) {
	return Parse(techniquesYAML)
}

// MustLoad is Load for process start, where a broken embedded table is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML. Keys must be unique and already canonical.
func Parse(data []byte) (*Catalog, error) {
	var rows []Entry
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{entries: make(map[string]Entry, len(rows))}
	for _, row := range rows {
		if row.Key == "" {
			return nil, fmt.Errorf("catalog entry %q has no key", row.Name)
		}
		if _, dup := c.entries[row.Key]; dup {
			return nil, fmt.Errorf("duplicate catalog key %q", row.Key)
		}
		c.entries[row.Key] = row
		c.order = append(c.order, row.Key)
	}
	return c, nil
}

// Lookup normalizes distortionType and returns the matching entry.
func (c *Catalog) Lookup(distortionType string) (Entry, bool) {
	e, ok := c.entries[Normalize(distortionType)]
	return e, ok
}

// Keys returns the canonical keys in table order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Entries returns all rows in table order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k])
	}
	return out
}

// Summary maps each display name to its technique count.
func (c *Catalog) Summary() map[string]int {
	out := make(map[string]int, len(c.entries))
	for _, e := range c.entries {
		out[e.Name] = len(e.Techniques)
	}
	return out
}

// TotalTechniques counts techniques across every entry.
func (c *Catalog) TotalTechniques() int {
	n := 0
	for _, e := range c.entries {
		n += len(e.Techniques)
	}
	return n
}

// TechniqueByTitle finds a technique under key by case-insensitive title.
// With an empty key every entry is searched in table order.
func (c *Catalog) TechniqueByTitle(key, title string) (Technique, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Technique{}, false
	}
	keys := c.order
	if key != "" {
		keys = []string{Normalize(key)}
	}
	for _, k := range keys {
		for _, t := range c.entries[k].Techniques {
			if strings.EqualFold(t.Title, title) {
				return t, true
			}
		}
	}
	return Technique{}, false
}
