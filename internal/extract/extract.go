// Value extraction clauses. A clause reads one or more fields of a JSON node
// and produces the content string that, paired with the clause's target
// value type, forms the value identity.
package extract

import (
	"strings"

	"affilgraph/internal/jsonptr"
	"affilgraph/internal/profile"
)

// extractContent applies a clause to a node. ok is false when extraction
// failed: the field (or every combined field) was absent or not
// stringifiable, or the node was not an object. Null substitution is the
// caller's decision.
//
// For combine_fields, a missing field contributes the empty string and the
// joined result is kept as long as at least one field was present; the
// result is not trimmed.
func extractContent(x *profile.Extraction, node any) (string, bool) {
	switch x.Type {
	case profile.ExtractField:
		v, ok := jsonptr.Field(node, x.Field)
		if !ok {
			return "", false
		}
		return jsonptr.Stringify(v)

	case profile.ExtractCombine:
		parts := make([]string, len(x.Fields))
		present := false
		for i, f := range x.Fields {
			v, ok := jsonptr.Field(node, f)
			if !ok {
				continue
			}
			s, ok := jsonptr.Stringify(v)
			if !ok {
				continue
			}
			parts[i] = s
			present = true
		}
		if !present {
			return "", false
		}
		return strings.Join(parts, x.Separator), true
	}
	return "", false
}

// matchCondition evaluates a related-value filter condition against one
// candidate item. Missing or non-stringifiable fields never match.
func matchCondition(item any, cond *profile.FilterCondition) bool {
	v, ok := jsonptr.Field(item, cond.Field)
	if !ok {
		return false
	}
	s, ok := jsonptr.Stringify(v)
	if !ok {
		return false
	}
	if cond.CaseInsensitive {
		return strings.EqualFold(s, cond.Equals)
	}
	return s == cond.Equals
}
