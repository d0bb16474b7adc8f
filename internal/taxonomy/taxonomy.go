// Package taxonomy holds the static GDPR compliance categories and indicators
// that every analysis is measured against. A Taxonomy is validated once when it
// is built and is read-only afterwards, so a single handle can be shared by any
// number of concurrent analyses.
package taxonomy

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WeightTolerance is the allowed drift of the category weight sum from 1.0
const WeightTolerance = 1e-6

//go:embed default.yaml
var defaultDefinition []byte

// Taxonomy is an immutable, validated set of categories
type Taxonomy struct {
	version         string
	advisory        string
	keyRequirements []string
	categories      []Category
	categoryIndex   map[string]int
	indicatorIndex  map[string]*Indicator
	fingerprint     string
}

// Default returns the built-in GDPR taxonomy
func Default() (*Taxonomy, error) {
	return Parse(defaultDefinition)
}

// MustDefault is Default for callers that treat a broken built-in taxonomy as a bug
func MustDefault() *Taxonomy {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads and validates a YAML taxonomy file
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a YAML taxonomy definition
func Parse(data []byte) (*Taxonomy, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, &ValidationError{Field: "document", Reason: err.Error()}
	}
	return New(def)
}

// New validates def and builds an immutable Taxonomy from it. Indicators listed
// at the top level are attached to the category they reference.
func New(def Definition) (*Taxonomy, error) {
	if strings.TrimSpace(def.Version) == "" {
		return nil, invalid("version", "must be set")
	}
	if len(def.Categories) == 0 {
		return nil, invalid("categories", "at least one category is required")
	}

	t := &Taxonomy{
		version:         def.Version,
		advisory:        def.Advisory,
		keyRequirements: append([]string(nil), def.KeyRequirements...),
		categories:      make([]Category, 0, len(def.Categories)),
		categoryIndex:   make(map[string]int, len(def.Categories)),
		indicatorIndex:  make(map[string]*Indicator),
	}

	weightSum := 0.0
	for i, c := range def.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		if strings.TrimSpace(c.ID) == "" {
			return nil, invalid(field+".id", "must be set")
		}
		if _, dup := t.categoryIndex[c.ID]; dup {
			return nil, invalid(field+".id", "duplicate category id %q", c.ID)
		}
		if strings.TrimSpace(c.Name) == "" {
			return nil, invalid(field+".name", "must be set")
		}
		if c.Weight <= 0 || c.Weight > 1 || math.IsNaN(c.Weight) {
			return nil, invalid(field+".weight", "must be in (0,1], got %g", c.Weight)
		}
		weightSum += c.Weight

		cat := Category{
			ID:          c.ID,
			Name:        c.Name,
			Weight:      c.Weight,
			Remediation: c.Remediation,
			Indicators:  make([]Indicator, 0, len(c.Indicators)),
		}
		for j, ind := range c.Indicators {
			if ind.CategoryID != "" && ind.CategoryID != c.ID {
				return nil, invalid(fmt.Sprintf("%s.indicators[%d].category", field, j),
					"indicator %q nested under %q references category %q", ind.ID, c.ID, ind.CategoryID)
			}
			ind.CategoryID = c.ID
			cat.Indicators = append(cat.Indicators, ind)
		}
		t.categoryIndex[c.ID] = len(t.categories)
		t.categories = append(t.categories, cat)
	}

	if math.Abs(weightSum-1.0) > WeightTolerance {
		return nil, invalid("categories.weight", "weights must sum to 1.0, got %.6f", weightSum)
	}

	for i, ind := range def.Indicators {
		idx, ok := t.categoryIndex[ind.CategoryID]
		if !ok {
			return nil, invalid(fmt.Sprintf("indicators[%d].category", i),
				"indicator %q references unknown category %q", ind.ID, ind.CategoryID)
		}
		t.categories[idx].Indicators = append(t.categories[idx].Indicators, ind)
	}

	for ci := range t.categories {
		cat := &t.categories[ci]
		for ii := range cat.Indicators {
			ind := &cat.Indicators[ii]
			field := fmt.Sprintf("%s.indicators[%d]", cat.ID, ii)
			if err := validateIndicator(field, ind); err != nil {
				return nil, err
			}
			if _, dup := t.indicatorIndex[ind.ID]; dup {
				return nil, invalid(field+".id", "duplicate indicator id %q", ind.ID)
			}
			t.indicatorIndex[ind.ID] = ind
		}
	}

	fp, err := computeFingerprint(t)
	if err != nil {
		return nil, err
	}
	t.fingerprint = fp

	return t, nil
}

func validateIndicator(field string, ind *Indicator) error {
	if strings.TrimSpace(ind.ID) == "" {
		return invalid(field+".id", "must be set")
	}
	if strings.TrimSpace(ind.Concept) == "" {
		return invalid(field+".concept", "must be set")
	}
	if !ind.Criticality.Valid() {
		return invalid(field+".criticality", "unknown criticality %q", ind.Criticality)
	}
	if len(ind.Patterns) == 0 {
		return invalid(field+".patterns", "indicator %q has no patterns", ind.ID)
	}
	for k, p := range ind.Patterns {
		if strings.TrimSpace(p) == "" {
			return invalid(fmt.Sprintf("%s.patterns[%d]", field, k), "pattern must not be blank")
		}
	}
	ind.Patterns = append([]string(nil), ind.Patterns...)
	return nil
}

func computeFingerprint(t *Taxonomy) (string, error) {
	data, err := json.Marshal(t.Definition())
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint taxonomy: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Version returns the taxonomy version string
func (t *Taxonomy) Version() string { return t.version }

// Advisory returns the regulatory change notice shown at the top of action plans
func (t *Taxonomy) Advisory() string { return t.advisory }

// KeyRequirements returns the reference list appended to action plans
func (t *Taxonomy) KeyRequirements() []string {
	return append([]string(nil), t.keyRequirements...)
}

// Fingerprint is a SHA-256 over the canonical taxonomy contents
func (t *Taxonomy) Fingerprint() string { return t.fingerprint }

// Categories returns a copy of the categories in declaration order
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = cloneCategory(c)
	}
	return out
}

// Category looks up a category by id
func (t *Taxonomy) Category(id string) (Category, bool) {
	idx, ok := t.categoryIndex[id]
	if !ok {
		return Category{}, false
	}
	return cloneCategory(t.categories[idx]), true
}

// Indicator looks up an indicator by id
func (t *Taxonomy) Indicator(id string) (Indicator, bool) {
	ind, ok := t.indicatorIndex[id]
	if !ok {
		return Indicator{}, false
	}
	out := *ind
	out.Patterns = append([]string(nil), ind.Patterns...)
	return out, true
}

// IndicatorCount returns the total number of indicators across all categories
func (t *Taxonomy) IndicatorCount() int {
	return len(t.indicatorIndex)
}

// Definition returns the taxonomy in its serializable form
func (t *Taxonomy) Definition() Definition {
	return Definition{
		Version:         t.version,
		Advisory:        t.advisory,
		KeyRequirements: t.KeyRequirements(),
		Categories:      t.Categories(),
	}
}

func cloneCategory(c Category) Category {
	out := c
	out.Indicators = make([]Indicator, len(c.Indicators))
	for i, ind := range c.Indicators {
		ind.Patterns = append([]string(nil), ind.Patterns...)
		out.Indicators[i] = ind
	}
	return out
}
