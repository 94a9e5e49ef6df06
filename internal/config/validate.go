// This file adds a lightweight linter/validator for Run values. It performs
// static checks over a decoded Run and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that is surfaced to
	// users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "tasks[1].profile"). Message
// is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasError reports whether any issue in the slice is severity error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateRun performs static validation of a run configuration.
//
// It does not mutate the run. Profile-dependent checks (e.g. whether a bound
// filter key exists in the profile) happen later, once the profile itself is
// loaded.
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if len(r.Tasks) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "tasks",
			Message:  "at least one task is required",
		})
	}

	for i, task := range r.Tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)

		if strings.TrimSpace(task.Profile) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     prefix + ".profile",
				Message:  "profile path must not be empty",
			})
		}
		if strings.TrimSpace(task.InputDir) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     prefix + ".input_dir",
				Message:  "input_dir must not be empty",
			})
		}
		for key, val := range task.Filters {
			if strings.TrimSpace(key) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     prefix + ".filters",
					Message:  "filter key must not be empty",
				})
			}
			if val == "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     fmt.Sprintf("%s.filters.%s", prefix, key),
					Message:  "filter value is empty; records will only match an empty field",
				})
			}
		}
		if strings.TrimSpace(task.Description) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     prefix + ".description",
				Message:  "description is empty; it is used to identify tasks in logs",
			})
		}
	}

	return issues
}
