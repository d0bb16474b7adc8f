package taxonomy

import (
	"fmt"
	"strings"
)

// Criticality ranks how serious a missing indicator is
type Criticality string

const (
	Critical Criticality = "critical"
	Major    Criticality = "major"
	Minor    Criticality = "minor"
)

// Rank returns a comparable weight for the criticality (critical is highest)
func (c Criticality) Rank() int {
	switch c {
	case Critical:
		return 3
	case Major:
		return 2
	case Minor:
		return 1
	default:
		return 0
	}
}

// Valid reports whether c is one of the known criticality levels
func (c Criticality) Valid() bool {
	return c.Rank() > 0
}

// UnmarshalText accepts the level names case-insensitively
func (c *Criticality) UnmarshalText(text []byte) error {
	v := Criticality(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("unknown criticality %q (must be critical, major, or minor)", string(text))
	}
	*c = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (c Criticality) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

// Indicator is one required compliance concept detectable by phrase presence
type Indicator struct {
	ID          string      `yaml:"id" json:"id"`
	CategoryID  string      `yaml:"category,omitempty" json:"category_id"`
	Concept     string      `yaml:"concept" json:"concept"`
	Patterns    []string    `yaml:"patterns" json:"patterns"`
	Criticality Criticality `yaml:"criticality" json:"criticality"`
	Remediation string      `yaml:"remediation,omitempty" json:"remediation,omitempty"`
}

// Category is a weighted group of indicators for one GDPR area
type Category struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Weight      float64     `yaml:"weight" json:"weight"`
	Remediation string      `yaml:"remediation,omitempty" json:"remediation,omitempty"`
	Indicators  []Indicator `yaml:"indicators,omitempty" json:"indicators"`
}

// Definition is the on-disk shape of a taxonomy file
type Definition struct {
	Version         string      `yaml:"version" json:"version"`
	Advisory        string      `yaml:"advisory,omitempty" json:"advisory,omitempty"`
	KeyRequirements []string    `yaml:"key_requirements,omitempty" json:"key_requirements,omitempty"`
	Categories      []Category  `yaml:"categories" json:"categories"`
	Indicators      []Indicator `yaml:"indicators,omitempty" json:"indicators,omitempty"`
}
