// Package validate checks resolved CRM entities against the schema
// registry: property cardinality and domain/range alignment. Checks never
// mutate their input. Each takes a Severity that decides whether a
// violation is ignored, logged, or returned as an error.
package validate

import (
	"fmt"
	"strings"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
)

// Severity controls how violations are handled.
type Severity string

const (
	SeverityIgnore Severity = "ignore"
	SeverityWarn   Severity = "warn"
	SeverityRaise  Severity = "raise"
)

// ParseSeverity parses a severity name. The empty string means warn.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeverityWarn:
		return SeverityWarn, nil
	case SeverityIgnore:
		return SeverityIgnore, nil
	case SeverityRaise:
		return SeverityRaise, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Violation kinds.
const (
	KindCount  = "count"
	KindDomain = "domain"
	KindRange  = "range"
)

// ValidationError describes a single violation. It is returned when the
// severity is raise.
type ValidationError struct {
	Kind         string
	EntityID     string
	ClassCode    string
	PropertyCode string

	// Set for count violations.
	Actual   int
	Expected string

	// Set for domain and range violations.
	SourceID      string
	TargetID      string
	ExpectedClass string

	message string
}

func (e *ValidationError) Error() string {
	return e.message
}

// Validator runs checks against one schema registry.
type Validator struct {
	reg *crm.Registry
}

// New returns a validator for reg, or for the embedded schema when reg is
// nil.
func New(reg *crm.Registry) *Validator {
	if reg == nil {
		reg = crm.Default()
	}
	return &Validator{reg: reg}
}

// handle applies the severity to a violation and returns the message to
// report, plus the error when the severity is raise.
func handle(verr *ValidationError, sev Severity) (string, error) {
	switch sev {
	case SeverityIgnore:
		return "", nil
	case SeverityRaise:
		return verr.message, verr
	default:
		logger.Warn(
			"[Validate] "+verr.message,
			"kind", verr.Kind,
			"entity_id", verr.EntityID,
			"class", verr.ClassCode,
			"property", verr.PropertyCode,
		)
		return verr.message, nil
	}
}

// Summary aggregates the results of a batch check.
type Summary struct {
	TotalEntities      int                 `json:"total_entities"`
	EntitiesWithIssues int                 `json:"entities_with_issues"`
	TotalIssues        int                 `json:"total_issues"`
	Results            map[string][]string `json:"validation_results"`
}

// Summarize builds a Summary from a batch result.
func Summarize(totalEntities int, results map[string][]string) Summary {
	s := Summary{
		TotalEntities:      totalEntities,
		EntitiesWithIssues: len(results),
		Results:            results,
	}
	for _, msgs := range results {
		s.TotalIssues += len(msgs)
	}
	return s
}

// Report is the combined outcome of the quantifier and typing passes.
type Report struct {
	Quantifiers Summary `json:"quantifiers"`
	Typing      Summary `json:"typing"`
}

// Valid reports whether neither pass found a violation.
func (r Report) Valid() bool {
	return r.Quantifiers.TotalIssues == 0 && r.Typing.TotalIssues == 0
}

// Check runs both passes over a graph. With raise severity it stops at the
// first violation.
func (v *Validator) Check(graph *crm.Graph, sev Severity) (Report, error) {
	quantifiers, err := v.BatchQuantifiers(graph.Entities, sev)
	if err != nil {
		return Report{Quantifiers: Summarize(len(graph.Entities), quantifiers)}, err
	}
	typing, err := v.BatchTyping(graph, sev)
	report := Report{
		Quantifiers: Summarize(len(graph.Entities), quantifiers),
		Typing:      Summarize(len(graph.Entities), typing),
	}
	return report, err
}
