package privacy

import "regexp"

// DetectionRule is a single PII pattern and its mask
type DetectionRule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Finding counts the masked occurrences of one entity type
type Finding struct {
	EntityType string `json:"entity_type"`
	Masked     string `json:"masked"`
	Count      int    `json:"count"`
}

// ProcessResult is the outcome of running text through the detector
type ProcessResult struct {
	MaskedText string    `json:"masked_text"`
	Findings   []Finding `json:"findings"`
}

// Total is the number of masked occurrences across all entity types
func (r ProcessResult) Total() int {
	n := 0
	for _, f := range r.Findings {
		n += f.Count
	}
	return n
}

// Config selects which detectors run
type Config struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	Detectors []string `yaml:"detectors" mapstructure:"detectors"`
	Headers   []string `yaml:"headers" mapstructure:"headers"`
}

// DefaultRules returns the built-in detectors in the order they are applied.
// Longer structured identifiers run before phone numbers so their digits are
// not half-masked.
func DefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Name:        "email",
			Pattern:     regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
			Replacement: "[MASKED_EMAIL]",
		},
		{
			Name:        "api_key",
			Pattern:     regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_\-]{16,}\b`),
			Replacement: "[MASKED_API_KEY]",
		},
		{
			Name:        "iban",
			Pattern:     regexp.MustCompile(`\b[A-Z]{2}[0-9]{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,4})?\b`),
			Replacement: "[MASKED_IBAN]",
		},
		{
			Name:        "credit_card",
			Pattern:     regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`),
			Replacement: "[MASKED_CREDIT_CARD]",
		},
		{
			Name:        "ssn",
			Pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Replacement: "[MASKED_SSN]",
		},
		{
			Name:        "ip_address",
			Pattern:     regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			Replacement: "[MASKED_IP]",
		},
		{
			Name:        "phone",
			Pattern:     regexp.MustCompile(`\+?\d{1,3}[ .\-]?\(?\d{2,4}\)?[ .\-]?\d{3,4}[ .\-]?\d{3,4}\b`),
			Replacement: "[MASKED_PHONE]",
		},
	}
}
