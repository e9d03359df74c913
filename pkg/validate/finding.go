package validate

import (
	"fmt"
	"strings"
)

// Severity orders validation findings from informational to blocking
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a user-supplied level name to a Severity
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(s) {
	case "INFO":
		return Info, nil
	case "WARNING", "WARN":
		return Warning, nil
	case "ERROR", "":
		return Error, nil
	}
	return Error, fmt.Errorf("unknown validation level %q", s)
}

// Finding is one validation result
type Finding struct {
	Severity Severity `json:"severity"`
	Source   string   `json:"source"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	if f.Path != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", f.Severity, f.Source, f.Path, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Source, f.Message)
}

// Findings is an ordered collection of validation results
type Findings []Finding

// AtOrAbove filters findings at or above the given severity
func (fs Findings) AtOrAbove(level Severity) Findings {
	var out Findings
	for _, f := range fs {
		if f.Severity >= level {
			out = append(out, f)
		}
	}
	return out
}

// ConfigValidationError aggregates every finding at or above the caller's
// failure level. The full list is always carried, never just the first.
type ConfigValidationError struct {
	Findings Findings
	Level    Severity
}

func (e *ConfigValidationError) Error() string {
	blocking := e.Findings.AtOrAbove(e.Level)
	lines := make([]string, 0, len(blocking)+1)
	lines = append(lines, fmt.Sprintf("configuration is invalid (%d finding(s) at or above %s):", len(blocking), e.Level))
	for _, f := range blocking {
		lines = append(lines, "  "+f.String())
	}
	return strings.Join(lines, "\n")
}

// Kind returns the stable machine-readable error kind
func (e *ConfigValidationError) Kind() string { return "ConfigValidation" }

// Check returns a ConfigValidationError if any finding reaches the failure
// level, nil otherwise. Findings below the level remain available for display
// through the returned error's Findings field when it is non-nil.
func Check(findings Findings, level Severity) error {
	if len(findings.AtOrAbove(level)) == 0 {
		return nil
	}
	return &ConfigValidationError{Findings: findings, Level: level}
}
