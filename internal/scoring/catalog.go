package scoring

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the domain knowledge the reorder model is built on: which items count
// as electronics and how states are tiered by historic reorder behaviour.
type Catalog struct {
	Electronics  []string `yaml:"electronics"`
	HighStates   []string `yaml:"high_reorder_states"`
	MediumStates []string `yaml:"medium_reorder_states"`
	LowStates    []string `yaml:"low_reorder_states"`

	electronics map[string]struct{}
	tiers       map[string]float64
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		Electronics: []string{
			"laptop", "macbook", "gaming pc", "desktop computer", "tablet",
			"drone", "gaming laptop", "4k television", "smart watch",
			"monitor", "dual monitors",
		},
		HighStates:   []string{"OH", "TX", "CA", "IL", "FL"},
		MediumStates: []string{"IN", "MI", "MN", "CO", "MA", "TN", "OR"},
		LowStates:    []string{"WA", "AZ", "ND", "SD", "NE", "KS"},
	}
	c.index()
	return c
}

// LoadCatalog reads a catalog from path. An empty path or missing file yields the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultCatalog(), nil
		}
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse scoring catalog: %w", err)
	}
	if len(c.Electronics) == 0 && len(c.HighStates) == 0 && len(c.MediumStates) == 0 {
		return nil, fmt.Errorf("scoring catalog %s is empty", path)
	}
	c.index()
	return &c, nil
}

func (c *Catalog) index() {
	c.electronics = make(map[string]struct{}, len(c.Electronics))
	for _, item := range c.Electronics {
		c.electronics[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
	}
	c.tiers = make(map[string]float64)
	for _, s := range c.LowStates {
		c.tiers[strings.ToUpper(s)] = 0
	}
	for _, s := range c.MediumStates {
		c.tiers[strings.ToUpper(s)] = 0.5
	}
	for _, s := range c.HighStates {
		c.tiers[strings.ToUpper(s)] = 1
	}
}

// StateScore maps a state code to 1 (high tier), 0.5 (medium) or 0.
func (c *Catalog) StateScore(state string) float64 {
	return c.tiers[strings.ToUpper(strings.TrimSpace(state))]
}

// IsElectronics reports whether item exactly names a catalog electronics item.
func (c *Catalog) IsElectronics(item string) bool {
	_, ok := c.electronics[strings.ToLower(strings.TrimSpace(item))]
	return ok
}

// HasElectronics reports whether any item is electronics.
func (c *Catalog) HasElectronics(items []string) bool {
	for _, item := range items {
		if c.IsElectronics(item) {
			return true
		}
	}
	return false
}

// States returns every tiered state, sorted.
func (c *Catalog) States() []string {
	out := make([]string, 0, len(c.tiers))
	for s := range c.tiers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
