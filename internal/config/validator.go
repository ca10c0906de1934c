package config

import (
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/s3store"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "targetMetrics[2].label")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

// ValidateConfig checks the configuration and returns every finding, unlike
// Validate which stops at the first error.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}

	var findings []ConfigValidationError
	findings = append(findings, ValidateOutput(cfg)...)
	findings = append(findings, ValidateTargets(cfg)...)
	findings = append(findings, ValidateMapping(cfg)...)
	findings = append(findings, ValidateWatch(cfg)...)

	for _, f := range findings {
		if f.Severity == SeverityError {
			result.Errors = append(result.Errors, f)
		} else {
			result.Warnings = append(result.Warnings, f)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateWatch checks the watch-mode timings.
func ValidateWatch(cfg *Configuration) []ConfigValidationError {
	var findings []ConfigValidationError
	if cfg.Watch.DebounceSeconds < 0 {
		findings = append(findings, ConfigValidationError{
			Field:    "watch.debounceSeconds",
			Message:  "must not be negative",
			Severity: SeverityError,
		})
	}
	if cfg.Watch.StableThresholdMs < 0 {
		findings = append(findings, ConfigValidationError{
			Field:    "watch.stableThresholdMs",
			Message:  "must not be negative",
			Severity: SeverityError,
		})
	}
	return findings
}

// ValidateOutput checks that the output directory is usable. A missing
// directory is only a warning because delivery creates it.
func ValidateOutput(cfg *Configuration) []ConfigValidationError {
	dir := cfg.OutputDirectory
	if dir == "" || s3store.IsURI(dir) {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConfigValidationError{{
				Field:    "outputDirectory",
				Message:  "directory does not exist and will be created: " + dir,
				Severity: SeverityWarning,
			}}
		}
		return []ConfigValidationError{{
			Field:    "outputDirectory",
			Message:  "error accessing directory: " + err.Error(),
			Severity: SeverityError,
		}}
	}
	if !info.IsDir() {
		return []ConfigValidationError{{
			Field:    "outputDirectory",
			Message:  "path exists but is not a directory: " + dir,
			Severity: SeverityError,
		}}
	}
	return nil
}

// ValidateTargets checks metric ids and labels, and warns about targets no
// token can ever fill.
func ValidateTargets(cfg *Configuration) []ConfigValidationError {
	var findings []ConfigValidationError

	if len(cfg.TargetMetrics) == 0 {
		return []ConfigValidationError{{
			Field:    "targetMetrics",
			Message:  "must contain at least one metric",
			Severity: SeverityError,
		}}
	}

	mapped := make(map[vocabulary.MetricID]bool)
	for _, id := range cfg.MetricMapping {
		mapped[id] = true
	}

	seen := make(map[vocabulary.MetricID]int)
	for i, m := range cfg.TargetMetrics {
		field := formatField("targetMetrics", i)
		if m.ID == "" {
			findings = append(findings, ConfigValidationError{
				Field:    field + ".id",
				Message:  "metric id cannot be empty",
				Severity: SeverityError,
			})
			continue
		}
		if first, dup := seen[m.ID]; dup {
			findings = append(findings, ConfigValidationError{
				Field:    field + ".id",
				Message:  "duplicate metric id \"" + string(m.ID) + "\" conflicts with " + formatField("targetMetrics", first),
				Severity: SeverityError,
			})
		} else {
			seen[m.ID] = i
		}
		if strings.TrimSpace(m.Label) == "" {
			findings = append(findings, ConfigValidationError{
				Field:    field + ".label",
				Message:  "label cannot be empty",
				Severity: SeverityError,
			})
		}
		if !mapped[m.ID] {
			findings = append(findings, ConfigValidationError{
				Field:    field,
				Message:  "no token in metricMapping maps to \"" + string(m.ID) + "\"; its column will always be 0",
				Severity: SeverityWarning,
			})
		}
	}

	return findings
}

// ValidateMapping checks every token. Tokens are reported in sorted order.
func ValidateMapping(cfg *Configuration) []ConfigValidationError {
	var findings []ConfigValidationError

	declared := make(map[vocabulary.MetricID]bool, len(cfg.TargetMetrics))
	for _, m := range cfg.TargetMetrics {
		declared[m.ID] = true
	}

	tokens := make([]string, 0, len(cfg.MetricMapping))
	for token := range cfg.MetricMapping {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	for _, token := range tokens {
		id := cfg.MetricMapping[token]
		field := "metricMapping." + token
		trimmed := strings.TrimSpace(token)

		switch {
		case trimmed == "":
			findings = append(findings, ConfigValidationError{
				Field:    "metricMapping",
				Message:  "token cannot be empty",
				Severity: SeverityError,
			})
			continue
		case strings.HasPrefix(trimmed, "_") || strings.HasSuffix(trimmed, "_"):
			findings = append(findings, ConfigValidationError{
				Field:    field,
				Message:  "token cannot start or end with an underscore",
				Severity: SeverityError,
			})
		case strings.IndexFunc(trimmed, unicode.IsSpace) >= 0:
			findings = append(findings, ConfigValidationError{
				Field:    field,
				Message:  "token contains whitespace and will only match headers with the same spacing",
				Severity: SeverityWarning,
			})
		}

		if !declared[id] {
			findings = append(findings, ConfigValidationError{
				Field:    field,
				Message:  "maps to unknown metric \"" + string(id) + "\"",
				Severity: SeverityError,
			})
		}
	}

	return findings
}
