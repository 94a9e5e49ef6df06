// Package profile defines the JSON-serializable extraction profile: a static
// description of how to walk a source record, extract typed values, and emit
// relationships. A profile is loaded once per task and treated as immutable
// for the lifetime of the run.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
)

// Extraction clause kinds.
const (
	// ExtractField reads one named field as a string.
	ExtractField = "field"
	// ExtractCombine reads an ordered list of fields, stringifies each, and
	// joins them with a separator; a missing field contributes "".
	ExtractCombine = "combine_fields"
)

// Profile is the top-level object decoded from a profile JSON file.
type Profile struct {
	// ProfileDescription labels the profile in logs. Optional.
	ProfileDescription string `json:"profile_description"`

	SourceInfo  SourceInfo  `json:"source_info"`
	ProcessInfo ProcessInfo `json:"process_info"`

	// RecordIdentifier locates the record's primary identifier (e.g. a DOI).
	RecordIdentifier RecordIdentifier `json:"record_identifier"`

	// DeterministicIDs configures content-derived identifiers.
	DeterministicIDs DeterministicIDs `json:"deterministic_ids"`

	// NullValues maps symbolic keys (e.g. "null_author") to the canonical
	// value substituted when an extraction fails.
	NullValues map[string]NullValue `json:"null_values"`

	// Filters declares the record-level filters a task may bind. Unbound
	// filters are inactive.
	Filters []Filter `json:"filters"`

	// Entities is the ordered extraction tree.
	Entities []Entity `json:"entities"`
}

// SourceInfo identifies the upstream data source; copied into metadata
// outputs verbatim.
type SourceInfo struct {
	SourceID          string `json:"source_id"`
	SourceName        string `json:"source_name"`
	SourceDescription string `json:"source_description"`
}

// ProcessInfo identifies the extraction process; copied into metadata
// outputs and stamped on every relationship row.
type ProcessInfo struct {
	ProcessID          string `json:"process_id"`
	ProcessName        string `json:"process_name"`
	ProcessDescription string `json:"process_description"`
}

// RecordIdentifier is a path plus a required flag. A record whose identifier
// cannot be resolved is skipped.
type RecordIdentifier struct {
	Path     string `json:"path"`
	Required bool   `json:"required"`
}

// DeterministicIDs carries the prefixes and the value identity template.
// ValueFormat contains the literal placeholders {value_type} and
// {value_content}.
type DeterministicIDs struct {
	RecordPrefix string `json:"record_prefix"`
	ValuePrefix  string `json:"value_prefix"`
	ValueFormat  string `json:"value_format"`
}

// NullValue is the canonical substitute emitted when an extraction that
// designates it fails.
type NullValue struct {
	ValueType string `json:"value_type"`
	Content   string `json:"content"`
}

// Filter declares a bindable record filter. When the task binds CLIArg, the
// value at Path must equal the bound value or the record emits nothing.
// FallbackFrom optionally names a path whose value, truncated before its
// first "/", stands in when Path resolves to nothing (the DOI-prefix rule).
type Filter struct {
	CLIArg       string `json:"cli_arg"`
	Path         string `json:"path"`
	FallbackFrom string `json:"fallback_from"`
}

// Entity is one node of the extraction tree. Depth-1 entities relate to the
// record; deeper entities relate to their parent entity's value.
type Entity struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	IsArray bool   `json:"is_array"`

	RelationshipToRecord string `json:"relationship_to_record"`
	RelationshipToParent string `json:"relationship_to_parent"`

	// ValueExtraction produces the entity's own value. It may be absent, in
	// which case the entity emits no value and its children attach to the
	// inherited parent.
	ValueExtraction *Extraction `json:"value_extraction"`

	NestedEntities []Entity       `json:"nested_entities"`
	RelatedValues  []RelatedValue `json:"related_values"`
	LookupJoins    []LookupJoin   `json:"lookup_joins"`
}

// RelatedValue attaches a value to its parent entity without joining the
// parent chain; related values never recurse.
type RelatedValue struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	IsArray bool   `json:"is_array"`

	// FilterCondition optionally restricts which items are considered.
	FilterCondition *FilterCondition `json:"filter_condition"`

	ExtractValue         Extraction `json:"extract_value"`
	RelationshipToParent string     `json:"relationship_to_parent"`
	TakeFirstMatch       bool       `json:"take_first_match"`
}

// LookupJoin resolves an identifier carried by the entity against a sibling
// array at the record root, attaching the matching item's extracted value to
// the entity.
type LookupJoin struct {
	Name string `json:"name"`

	// LookupArrayPath is evaluated on the record root, not the entity.
	LookupArrayPath  string `json:"lookup_array_path"`
	LookupMatchField string `json:"lookup_match_field"`

	// SourceMatchField names the entity field holding the identifier(s).
	SourceMatchField   string `json:"source_match_field"`
	SourceMatchIsArray bool   `json:"source_match_is_array"`

	ExtractValue          Extraction `json:"extract_value"`
	RelationshipToCurrent string     `json:"relationship_to_current"`
	TakeFirstMatch        bool       `json:"take_first_match"`
}

// FilterCondition is an equality test on one field of a candidate item.
type FilterCondition struct {
	Field           string `json:"field"`
	Equals          string `json:"equals"`
	CaseInsensitive bool   `json:"case_insensitive"`
}

// Extraction is a value-extraction clause. Type selects the variant; the
// remaining fields apply per variant.
type Extraction struct {
	// Type is ExtractField or ExtractCombine.
	Type string `json:"type"`

	// Field applies to ExtractField.
	Field string `json:"field"`

	// Fields and Separator apply to ExtractCombine.
	Fields    []string `json:"fields"`
	Separator string   `json:"separator"`

	// TargetValueType is paired with the extracted content to form the
	// value identity.
	TargetValueType string `json:"target_value_type"`

	// UseNull names the null_values entry substituted when extraction
	// fails. Empty means no substitution: the emission is dropped.
	UseNull string `json:"use_null"`
}

// Load reads and decodes a profile JSON file. Unknown fields are rejected so
// a misspelled clause never silently disables extraction.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", path, err)
	}
	return &p, nil
}

// ResolveFilters checks a task's bound filters against the profile and
// returns the active subset. An unknown cli_arg is a configuration error.
func (p *Profile) ResolveFilters(bound map[string]string) (map[string]string, error) {
	if len(bound) == 0 {
		return nil, nil
	}
	declared := make(map[string]struct{}, len(p.Filters))
	for _, f := range p.Filters {
		declared[f.CLIArg] = struct{}{}
	}
	active := make(map[string]string, len(bound))
	for key, val := range bound {
		if _, ok := declared[key]; !ok {
			return nil, fmt.Errorf("filter %q is not declared by the profile", key)
		}
		active[key] = val
	}
	return active, nil
}
