// Package privacy masks personal data in document text before it is sent to an
// external analysis service, and scrubs credentials from logged headers.
package privacy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Detector handles PII detection and masking
type Detector struct {
	rules   []DetectionRule
	enabled map[string]bool
	headers []string
	logger  *zap.Logger
	config  Config
}

// New creates a new PII detector instance
func New(cfg Config, log *zap.Logger) (*Detector, error) {
	if log == nil {
		log = zap.NewNop()
	}

	detector := &Detector{
		rules:   DefaultRules(),
		enabled: make(map[string]bool),
		headers: cfg.Headers,
		logger:  log,
		config:  cfg,
	}
	if len(detector.headers) == 0 {
		detector.headers = []string{"authorization", "x-api-key", "cookie", "x-auth-token", "x-access-token"}
	}

	detectors := cfg.Detectors
	if len(detectors) == 0 {
		detectors = []string{"all"}
	}
	if err := detector.configureDetectors(detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Privacy detector initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("total_rules", len(detector.rules)),
		zap.Int("enabled_rules", detector.countEnabledRules()),
	)

	return detector, nil
}

// configureDetectors enables the named detectors; "all" enables every rule
func (d *Detector) configureDetectors(detectors []string) error {
	for _, rule := range d.rules {
		d.enabled[rule.Name] = false
	}

	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range d.rules {
				d.enabled[rule.Name] = true
			}
			continue
		}

		if _, ok := d.enabled[detector]; !ok {
			return fmt.Errorf("unknown detector: %s", detector)
		}
		d.enabled[detector] = true
	}

	return nil
}

// Redact masks all enabled PII types in text
func (d *Detector) Redact(text string) ProcessResult {
	if !d.config.Enabled {
		return ProcessResult{MaskedText: text, Findings: []Finding{}}
	}

	maskedText := text
	findings := make([]Finding, 0)

	for _, rule := range d.rules {
		if !d.enabled[rule.Name] {
			continue
		}

		matches := rule.Pattern.FindAllStringIndex(maskedText, -1)
		if len(matches) == 0 {
			continue
		}

		findings = append(findings, Finding{
			EntityType: rule.Name,
			Masked:     rule.Replacement,
			Count:      len(matches),
		})
		maskedText = rule.Pattern.ReplaceAllString(maskedText, rule.Replacement)

		d.logger.Debug("PII detected and masked",
			zap.String("entity_type", rule.Name),
			zap.Int("count", len(matches)),
		)
	}

	return ProcessResult{MaskedText: maskedText, Findings: findings}
}

// ScrubHeaders flattens headers for logging with credentials replaced
func (d *Detector) ScrubHeaders(headers map[string][]string) map[string]string {
	safe := make(map[string]string, len(headers))
	for key, values := range headers {
		switch {
		case d.isSensitiveHeader(key):
			safe[key] = "[REDACTED]"
		case len(values) > 0:
			safe[key] = values[0]
		}
	}
	return safe
}

func (d *Detector) isSensitiveHeader(header string) bool {
	headerLower := strings.ToLower(header)
	for _, sensitive := range d.headers {
		if strings.Contains(headerLower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func (d *Detector) countEnabledRules() int {
	count := 0
	for _, enabled := range d.enabled {
		if enabled {
			count++
		}
	}
	return count
}

// EnabledRules returns the enabled rule names in application order
func (d *Detector) EnabledRules() []string {
	var names []string
	for _, rule := range d.rules {
		if d.enabled[rule.Name] {
			names = append(names, rule.Name)
		}
	}
	return names
}
