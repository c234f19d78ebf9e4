// Package diseaseinfo serves the reference text shown for each label in the
// guided dialogue.
package diseaseinfo

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"

	"agrodoc/internal/labels"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Info is the descriptive content for one label.
type Info struct {
	Description string   `yaml:"description" json:"description"`
	Causes      []string `yaml:"causes" json:"causes"`
	Prevention  []string `yaml:"prevention" json:"prevention"`
	Treatment   string   `yaml:"treatment" json:"treatment"`
}

// Tier records which level of the lookup produced an Info.
type Tier string

const (
	TierExact   Tier = "exact"
	TierHealthy Tier = "healthy"
	TierGeneric Tier = "generic"
)

// Generic is returned when neither the label nor its plant's healthy entry exists.
var Generic = Info{
	Description: "No information available",
	Causes:      []string{"Unknown"},
	Prevention:  []string{"Consult an agricultural expert"},
	Treatment:   "Please contact plant health specialists for diagnosis",
}

// Catalog maps labels to their reference content.
type Catalog struct {
	entries map[string]Info
}

type catalogFile struct {
	Entries map[string]Info `yaml:"entries"`
}

// Default parses the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// Parse reads a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing disease catalog: %w", err)
	}
	if file.Entries == nil {
		file.Entries = map[string]Info{}
	}
	return &Catalog{entries: file.Entries}, nil
}

// New builds a catalog from entries, mostly for tests.
func New(entries map[string]Info) *Catalog {
	if entries == nil {
		entries = map[string]Info{}
	}
	return &Catalog{entries: entries}
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Lookup finds content for label. It tries the label itself, then the
// "<Plant>___healthy" entry of the same plant, then the Generic payload.
func (c *Catalog) Lookup(label string) (Info, Tier) {
	if info, ok := c.entries[label]; ok {
		return info, TierExact
	}
	if plant, _, ok := labels.Split(label); ok {
		if info, ok := c.entries[labels.HealthyLabel(plant)]; ok {
			return info, TierHealthy
		}
	}
	return Generic, TierGeneric
}

// Missing lists the labels of table that have no exact entry.
func (c *Catalog) Missing(table labels.Table) []string {
	var missing []string
	for _, label := range table {
		if _, ok := c.entries[label]; !ok {
			missing = append(missing, label)
		}
	}
	return missing
}
