// Package validate checks stat records against cross-field business rules.
// Issues are severity-tagged findings, never hard failures: the caller
// decides whether Error-severity issues block persistence.
package validate

import (
	"fmt"

	"github.com/albapepper/pfr-ingest/internal/pfr"
)

// Severity ranks a validation finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one finding against one field of a record.
type Issue struct {
	Field    string
	Message  string
	Severity Severity
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Field, i.Message)
}

// relationRules are the cross-field invariants. Both fields must be present
// for a rule to fire; a missing field is reported separately at Warning.
var relationRules = []struct {
	lesser  string
	greater string
	message string
}{
	{"cmp", "att", "completions exceed attempts"},
	{"gs", "g", "games started exceed games played"},
	{"fl", "fmb", "fumbles lost exceed fumbles"},
	{"fr", "fmb", "fumbles recovered exceed fumbles"},
}

// expectedFields are checked for presence on season-total records; absence
// is a Warning, never an Error.
var expectedFields = []string{"g", "cmp", "att", "yds", "td", "int", "rate"}

// Check validates one record. The record is never mutated.
func Check(rec *pfr.StatRecord) []Issue {
	var issues []Issue

	// Schema range checks.
	for _, name := range rec.FieldNames() {
		field, known := pfr.Fields[name]
		if !known {
			issues = append(issues, Issue{
				Field:    name,
				Message:  "field not in schema",
				Severity: SeverityWarning,
			})
			continue
		}
		v := rec.Stats[name]
		if v < field.Min || v > field.Max {
			issues = append(issues, Issue{
				Field:    name,
				Message:  fmt.Sprintf("value %g outside range [%g, %g]", v, field.Min, field.Max),
				Severity: SeverityError,
			})
		}
	}

	for _, rule := range relationRules {
		a, okA := rec.Get(rule.lesser)
		b, okB := rec.Get(rule.greater)
		if okA && okB && a > b {
			issues = append(issues, Issue{
				Field:    rule.lesser,
				Message:  fmt.Sprintf("%s (%g > %g)", rule.message, a, b),
				Severity: SeverityError,
			})
		}
	}

	// Touchdown sub-categories must not exceed the reported total.
	if total, ok := rec.Get("total_td"); ok {
		sub := 0.0
		for _, f := range []string{"td", "rush_td", "fr_td"} {
			if v, ok := rec.Get(f); ok {
				sub += v
			}
		}
		if sub > total {
			issues = append(issues, Issue{
				Field:    "total_td",
				Message:  fmt.Sprintf("touchdown sub-categories sum to %g, above reported total %g", sub, total),
				Severity: SeverityError,
			})
		}
	}

	if rec.IsSeasonTotal() {
		for _, f := range expectedFields {
			if _, ok := rec.Get(f); !ok {
				issues = append(issues, Issue{
					Field:    f,
					Message:  "expected field missing",
					Severity: SeverityWarning,
				})
			}
		}
	}

	if rec.Team != "" && !pfr.IsValidTeam(rec.Team) {
		issues = append(issues, Issue{
			Field:    "team",
			Message:  fmt.Sprintf("unrecognized team code %q", rec.Team),
			Severity: SeverityWarning,
		})
	}

	return issues
}

// HasErrors reports whether any issue carries Error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
