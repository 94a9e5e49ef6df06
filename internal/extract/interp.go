// Package extract implements the profile interpreter: it walks one decoded
// record according to the profile's entity tree and appends value and
// relationship rows to a batch. All identifiers are derived here, in the
// worker, so batches reach the writer self-contained.
package extract

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"affilgraph/internal/emit"
	"affilgraph/internal/jsonptr"
	"affilgraph/internal/profile"
)

// Skip classifies why a record produced no rows.
type Skip int

const (
	// SkipNone means the record was interpreted and emitted rows.
	SkipNone Skip = iota
	// SkipMissingID means the record identifier was absent or empty.
	SkipMissingID
	// SkipFiltered means a bound filter did not match.
	SkipFiltered
)

// nullEntry is a precomputed null value: its canonical content and the
// value ID it hashes to.
type nullEntry struct {
	valueType string
	content   string
	valueID   string
}

// Interpreter executes one profile against records. It is immutable after
// construction and safe for concurrent use by multiple workers.
type Interpreter struct {
	prof      *profile.Profile
	filters   map[string]string
	nulls     map[string]nullEntry
	processID string
	timestamp string
}

// NewInterpreter builds an interpreter for one task. activeFilters must
// already be resolved against the profile (see Profile.ResolveFilters);
// timestamp is the task start time stamped on every relationship row.
func NewInterpreter(p *profile.Profile, activeFilters map[string]string, timestamp string) *Interpreter {
	nulls := make(map[string]nullEntry, len(p.NullValues))
	for key, nv := range p.NullValues {
		identity := FormatValueIdentity(p.DeterministicIDs.ValueFormat, nv.ValueType, nv.Content)
		nulls[key] = nullEntry{
			valueType: nv.ValueType,
			content:   nv.Content,
			valueID:   DeterministicID(p.DeterministicIDs.ValuePrefix, identity),
		}
	}
	return &Interpreter{
		prof:      p,
		filters:   activeFilters,
		nulls:     nulls,
		processID: p.ProcessInfo.ProcessID,
		timestamp: timestamp,
	}
}

// NullRows returns a value row for every null the profile defines, in
// symbolic-key order. The writer appends these at the end of the run so
// downstream joins against null IDs always resolve.
func (it *Interpreter) NullRows() []emit.ValueRow {
	keys := make([]string, 0, len(it.nulls))
	for k := range it.nulls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]emit.ValueRow, 0, len(keys))
	for _, k := range keys {
		n := it.nulls[k]
		rows = append(rows, emit.ValueRow{
			ValueID:      n.valueID,
			ValueType:    n.valueType,
			ValueContent: n.content,
		})
	}
	return rows
}

// Record interprets one record root. On SkipNone the batch gained the
// record's rows in emission order; on any other skip the batch is untouched.
func (it *Interpreter) Record(root any, b *emit.Batch) Skip {
	doi := it.recordIdentifier(root)
	if doi == "" {
		return SkipMissingID
	}

	for i := range it.prof.Filters {
		f := &it.prof.Filters[i]
		bound, ok := it.filters[f.CLIArg]
		if !ok {
			continue
		}
		got, ok := it.filterValue(root, f)
		if !ok || got != bound {
			return SkipFiltered
		}
	}
	recordID := DeterministicID(it.prof.DeterministicIDs.RecordPrefix, doi)

	b.Records = append(b.Records, emit.RecordRow{RecordID: recordID, DOI: doi})
	b.ProcessRecords = append(b.ProcessRecords, emit.ProcessRecordRow{
		ID:               RelationshipID(TagProcessRecord, "source", it.processID, recordID),
		ProcessID:        it.processID,
		RecordID:         recordID,
		RelationshipType: "source",
		Timestamp:        it.timestamp,
	})

	ord := make(ordinals)
	for i := range it.prof.Entities {
		it.walkEntity(&it.prof.Entities[i], root, root, recordID, "", 1, ord, b)
	}
	b.RecordCount++
	return SkipNone
}

// recordIdentifier resolves and trims the record's primary identifier.
// Empty means missing.
func (it *Interpreter) recordIdentifier(root any) string {
	res := jsonptr.Resolve(root, it.prof.RecordIdentifier.Path)
	if res.Kind != jsonptr.Node {
		return ""
	}
	s, ok := jsonptr.Stringify(res.Value)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// filterValue resolves the comparison value for one bound filter. When the
// primary path resolves to nothing and a fallback is declared, the fallback
// value truncated before its first "/" stands in (the DOI-prefix rule).
func (it *Interpreter) filterValue(root any, f *profile.Filter) (string, bool) {
	res := jsonptr.Resolve(root, f.Path)
	if res.Kind == jsonptr.Node {
		return jsonptr.Stringify(res.Value)
	}
	if res.Kind != jsonptr.NotFound || f.FallbackFrom == "" {
		return "", false
	}
	fb := jsonptr.Resolve(root, f.FallbackFrom)
	if fb.Kind != jsonptr.Node {
		return "", false
	}
	s, ok := jsonptr.Stringify(fb.Value)
	if !ok {
		return "", false
	}
	prefix, _, found := strings.Cut(s, "/")
	if !found {
		return "", false
	}
	return prefix, true
}

// ordinals assigns dense zero-based positions per (parent, relationship
// type) group within one record. The counter advances only on emission.
type ordinals map[ordKey]int

type ordKey struct {
	parent  string
	relType string
}

func (o ordinals) next(parent, relType string) int {
	k := ordKey{parent, relType}
	n := o[k]
	o[k] = n + 1
	return n
}

// walkEntity interprets one entity spec at node. parentValueID is empty only
// at depth 1; recursion below an entity happens only once a parent value is
// established or inherited.
func (it *Interpreter) walkEntity(e *profile.Entity, node, root any, recordID, parentValueID string, depth int, ord ordinals, b *emit.Batch) {
	res := jsonptr.Resolve(node, e.Path)

	var items []any
	switch {
	case res.Kind == jsonptr.NotFound:
		return
	case e.IsArray:
		if res.Kind != jsonptr.Nodes {
			return
		}
		items = res.List()
	default:
		// A scalar-shaped entity takes whatever resolved, array included;
		// extracting fields from a non-object then fails into the null path.
		items = []any{res.Value}
	}

	for _, item := range items {
		entityValueID := ""

		if x := e.ValueExtraction; x != nil {
			valueType := x.TargetValueType
			content, ok := extractContent(x, item)
			valueID := ""
			if ok {
				valueID = it.valueID(valueType, content)
			} else if n, found := it.null(x.UseNull); found {
				valueType, content, valueID = n.valueType, n.content, n.valueID
			}

			if valueID != "" {
				it.addValue(b, valueID, valueType, content)
				if depth == 1 {
					relType := e.RelationshipToRecord
					o := ord.next(recordID, relType)
					b.RecordValues = append(b.RecordValues, emit.RecordValueRow{
						ID:               RelationshipID(TagRecordValue, relType, recordID, valueID, strconv.Itoa(o)),
						RecordID:         recordID,
						ValueID:          valueID,
						RelationshipType: relType,
						Ordinal:          o,
						ProcessID:        it.processID,
						Timestamp:        it.timestamp,
					})
				} else {
					it.addValueValue(b, parentValueID, valueID, e.RelationshipToParent, ord)
				}
				entityValueID = valueID
			}
		}

		parentForChildren := entityValueID
		if parentForChildren == "" {
			parentForChildren = parentValueID
		}
		if parentForChildren == "" {
			// No value of our own and nothing inherited: children have no
			// anchor.
			continue
		}

		it.relatedValues(e.RelatedValues, item, parentForChildren, ord, b)
		it.lookupJoins(e.LookupJoins, item, root, parentForChildren, ord, b)
		for i := range e.NestedEntities {
			it.walkEntity(&e.NestedEntities[i], item, root, recordID, parentForChildren, depth+1, ord, b)
		}
	}
}

// relatedValues attaches auxiliary values to parentID. A missing path (or a
// single node where an array is required) asserts the designated null; so
// does a present path whose items all fail the filter condition.
func (it *Interpreter) relatedValues(specs []profile.RelatedValue, node any, parentID string, ord ordinals, b *emit.Batch) {
	for i := range specs {
		rv := &specs[i]
		res := jsonptr.Resolve(node, rv.Path)

		if res.Kind == jsonptr.NotFound || (rv.IsArray && res.Kind != jsonptr.Nodes) {
			it.nullAssert(b, rv.ExtractValue.UseNull, parentID, rv.RelationshipToParent, ord)
			continue
		}

		var items []any
		if rv.IsArray {
			items = res.List()
		} else {
			items = []any{res.Value}
		}

		emitted := false
		for _, item := range items {
			if rv.FilterCondition != nil && !matchCondition(item, rv.FilterCondition) {
				continue
			}

			valueType := rv.ExtractValue.TargetValueType
			content, ok := extractContent(&rv.ExtractValue, item)
			var valueID string
			if ok {
				valueID = it.valueID(valueType, content)
			} else if n, found := it.null(rv.ExtractValue.UseNull); found {
				valueType, content, valueID = n.valueType, n.content, n.valueID
			} else {
				continue
			}

			it.addValue(b, valueID, valueType, content)
			it.addValueValue(b, parentID, valueID, rv.RelationshipToParent, ord)
			emitted = true
			if rv.TakeFirstMatch {
				break
			}
		}

		// The path existed but no item passed the condition: assert the
		// null so absence stays distinguishable from silence.
		if !emitted && rv.FilterCondition != nil {
			it.nullAssert(b, rv.ExtractValue.UseNull, parentID, rv.RelationshipToParent, ord)
		}
	}
}

// lookupJoins matches identifiers carried by the entity item against an
// array at the record root and attaches extracted values to currentID.
func (it *Interpreter) lookupJoins(specs []profile.LookupJoin, item, root any, currentID string, ord ordinals, b *emit.Batch) {
	for i := range specs {
		lj := &specs[i]

		v, ok := jsonptr.Field(item, lj.SourceMatchField)
		if !ok {
			continue
		}
		var want []string
		if lj.SourceMatchIsArray {
			arr, ok := v.([]any)
			if !ok {
				continue
			}
			for _, el := range arr {
				if s, ok := jsonptr.Stringify(el); ok {
					want = append(want, s)
				}
			}
		} else if s, ok := jsonptr.Stringify(v); ok {
			want = append(want, s)
		}
		if len(want) == 0 {
			continue
		}

		res := jsonptr.Resolve(root, lj.LookupArrayPath)
		if res.Kind != jsonptr.Nodes {
			continue
		}

		for _, cand := range res.List() {
			mv, ok := jsonptr.Field(cand, lj.LookupMatchField)
			if !ok {
				continue
			}
			ms, ok := jsonptr.Stringify(mv)
			if !ok || !slices.Contains(want, ms) {
				continue
			}

			valueType := lj.ExtractValue.TargetValueType
			content, ok := extractContent(&lj.ExtractValue, cand)
			var valueID string
			if ok {
				valueID = it.valueID(valueType, content)
			} else if n, found := it.null(lj.ExtractValue.UseNull); found {
				valueType, content, valueID = n.valueType, n.content, n.valueID
			} else {
				continue
			}

			it.addValue(b, valueID, valueType, content)
			it.addValueValue(b, currentID, valueID, lj.RelationshipToCurrent, ord)
			if lj.TakeFirstMatch {
				break
			}
		}
	}
}

func (it *Interpreter) valueID(valueType, content string) string {
	identity := FormatValueIdentity(it.prof.DeterministicIDs.ValueFormat, valueType, content)
	return DeterministicID(it.prof.DeterministicIDs.ValuePrefix, identity)
}

func (it *Interpreter) null(key string) (nullEntry, bool) {
	if key == "" {
		return nullEntry{}, false
	}
	n, ok := it.nulls[key]
	return n, ok
}

// addValue appends the value row plus its process edge.
func (it *Interpreter) addValue(b *emit.Batch, valueID, valueType, content string) {
	b.Values = append(b.Values, emit.ValueRow{
		ValueID:      valueID,
		ValueType:    valueType,
		ValueContent: content,
	})
	b.ProcessValues = append(b.ProcessValues, emit.ProcessValueRow{
		ID:               RelationshipID(TagProcessValue, "created", it.processID, valueID),
		ProcessID:        it.processID,
		ValueID:          valueID,
		RelationshipType: "created",
		Confidence:       1.0,
		Timestamp:        it.timestamp,
	})
}

func (it *Interpreter) addValueValue(b *emit.Batch, sourceID, targetID, relType string, ord ordinals) {
	o := ord.next(sourceID, relType)
	b.ValueValues = append(b.ValueValues, emit.ValueValueRow{
		ID:               RelationshipID(TagValueValue, relType, sourceID, targetID, strconv.Itoa(o)),
		SourceValueID:    sourceID,
		TargetValueID:    targetID,
		RelationshipType: relType,
		Ordinal:          o,
		ProcessID:        it.processID,
		Confidence:       1.0,
		Timestamp:        it.timestamp,
	})
}

func (it *Interpreter) nullAssert(b *emit.Batch, useNull, parentID, relType string, ord ordinals) {
	n, found := it.null(useNull)
	if !found {
		return
	}
	it.addValue(b, n.valueID, n.valueType, n.content)
	it.addValueValue(b, parentID, n.valueID, relType, ord)
}
