// This file adds a static validator for decoded profiles, mirroring the run
// config linter: checks return []config.Issue and never mutate the profile.
package profile

import (
	"fmt"
	"strings"

	"affilgraph/internal/config"
)

// Validate performs static validation of a profile. All structural errors a
// profile can carry are surfaced here, before any worker starts.
func Validate(p *Profile) []config.Issue {
	var issues []config.Issue

	errf := func(path, format string, args ...any) {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
		})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, config.Issue{
			Severity: config.SeverityWarning,
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if strings.TrimSpace(p.SourceInfo.SourceID) == "" {
		errf("source_info.source_id", "source_id must not be empty")
	}
	if strings.TrimSpace(p.ProcessInfo.ProcessID) == "" {
		errf("process_info.process_id", "process_id must not be empty")
	}
	if strings.TrimSpace(p.RecordIdentifier.Path) == "" {
		errf("record_identifier.path", "path must not be empty")
	}

	ids := p.DeterministicIDs
	if strings.TrimSpace(ids.RecordPrefix) == "" {
		errf("deterministic_ids.record_prefix", "record_prefix must not be empty")
	}
	if strings.TrimSpace(ids.ValuePrefix) == "" {
		errf("deterministic_ids.value_prefix", "value_prefix must not be empty")
	}
	if !strings.Contains(ids.ValueFormat, "{value_type}") ||
		!strings.Contains(ids.ValueFormat, "{value_content}") {
		errf("deterministic_ids.value_format",
			"value_format must contain both {value_type} and {value_content}")
	}

	for key, nv := range p.NullValues {
		if strings.TrimSpace(nv.ValueType) == "" {
			errf("null_values."+key, "value_type must not be empty")
		}
	}

	seen := make(map[string]struct{})
	for i, f := range p.Filters {
		path := fmt.Sprintf("filters[%d]", i)
		if strings.TrimSpace(f.CLIArg) == "" {
			errf(path+".cli_arg", "cli_arg must not be empty")
		} else if _, dup := seen[f.CLIArg]; dup {
			errf(path+".cli_arg", "duplicate cli_arg %q", f.CLIArg)
		} else {
			seen[f.CLIArg] = struct{}{}
		}
		if strings.TrimSpace(f.Path) == "" {
			errf(path+".path", "path must not be empty")
		}
	}

	if len(p.Entities) == 0 {
		warnf("entities", "profile declares no entities; only record rows will be emitted")
	}
	for i := range p.Entities {
		issues = append(issues, validateEntity(&p.Entities[i],
			fmt.Sprintf("entities[%d]", i), 1, p.NullValues)...)
	}

	return issues
}

func validateEntity(e *Entity, path string, depth int, nulls map[string]NullValue) []config.Issue {
	var issues []config.Issue

	errf := func(sub, format string, args ...any) {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     path + sub,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if strings.TrimSpace(e.Name) == "" {
		errf(".name", "name must not be empty")
	}
	if strings.TrimSpace(e.Path) == "" {
		errf(".path", "path must not be empty")
	}

	// Exactly one relationship kind, matching the entity's depth.
	if depth == 1 {
		if e.RelationshipToRecord == "" {
			errf(".relationship_to_record", "top-level entities must set relationship_to_record")
		}
		if e.RelationshipToParent != "" {
			errf(".relationship_to_parent", "top-level entities must not set relationship_to_parent")
		}
	} else {
		if e.RelationshipToParent == "" {
			errf(".relationship_to_parent", "nested entities must set relationship_to_parent")
		}
		if e.RelationshipToRecord != "" {
			errf(".relationship_to_record", "nested entities must not set relationship_to_record")
		}
	}

	if e.ValueExtraction != nil {
		issues = append(issues, validateExtraction(e.ValueExtraction, path+".value_extraction", nulls)...)
	}

	for i := range e.RelatedValues {
		rv := &e.RelatedValues[i]
		sub := fmt.Sprintf("%s.related_values[%d]", path, i)
		if strings.TrimSpace(rv.Path) == "" {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError, Path: sub + ".path",
				Message: "path must not be empty",
			})
		}
		if rv.RelationshipToParent == "" {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError, Path: sub + ".relationship_to_parent",
				Message: "relationship_to_parent must not be empty",
			})
		}
		if rv.FilterCondition != nil && rv.FilterCondition.Field == "" {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError, Path: sub + ".filter_condition.field",
				Message: "field must not be empty",
			})
		}
		issues = append(issues, validateExtraction(&rv.ExtractValue, sub+".extract_value", nulls)...)
	}

	for i := range e.LookupJoins {
		lj := &e.LookupJoins[i]
		sub := fmt.Sprintf("%s.lookup_joins[%d]", path, i)
		for field, val := range map[string]string{
			".lookup_array_path":       lj.LookupArrayPath,
			".lookup_match_field":      lj.LookupMatchField,
			".source_match_field":      lj.SourceMatchField,
			".relationship_to_current": lj.RelationshipToCurrent,
		} {
			if strings.TrimSpace(val) == "" {
				issues = append(issues, config.Issue{
					Severity: config.SeverityError, Path: sub + field,
					Message: "must not be empty",
				})
			}
		}
		issues = append(issues, validateExtraction(&lj.ExtractValue, sub+".extract_value", nulls)...)
	}

	for i := range e.NestedEntities {
		issues = append(issues, validateEntity(&e.NestedEntities[i],
			fmt.Sprintf("%s.nested_entities[%d]", path, i), depth+1, nulls)...)
	}

	return issues
}

func validateExtraction(x *Extraction, path string, nulls map[string]NullValue) []config.Issue {
	var issues []config.Issue

	errf := func(sub, format string, args ...any) {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     path + sub,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	switch x.Type {
	case ExtractField:
		if x.Field == "" {
			errf(".field", "field must not be empty")
		}
	case ExtractCombine:
		if len(x.Fields) == 0 {
			errf(".fields", "fields must not be empty")
		}
	default:
		errf(".type", "unknown extraction type %q (want %q or %q)", x.Type, ExtractField, ExtractCombine)
	}

	if x.TargetValueType == "" {
		errf(".target_value_type", "target_value_type must not be empty")
	}
	if x.UseNull != "" {
		if _, ok := nulls[x.UseNull]; !ok {
			errf(".use_null", "use_null %q has no null_values entry", x.UseNull)
		}
	}

	return issues
}
