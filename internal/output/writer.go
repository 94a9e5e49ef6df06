// Package output owns the CSV files of a run. A single Writer instance
// lives for the whole run: tasks append sequentially into the same files,
// and the dedup index spans tasks so merged outputs stay consistent.
//
// Batches arrive self-contained (every ID derived in the workers); the
// writer's only decisions are "seen before?" per row.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"affilgraph/internal/emit"
	"affilgraph/internal/extract"
	"affilgraph/internal/profile"
)

// Data table names, in write order within a batch.
const (
	TableRecords        = "records"
	TableValues         = "values"
	TableProcessRecords = "process_record_relationships"
	TableProcessValues  = "process_value_relationships"
	TableRecordValues   = "record_value_relationships"
	TableValueValues    = "value_value_relationships"
)

var dataHeaders = map[string][]string{
	TableRecords:        {"record_id", "doi"},
	TableValues:         {"value_id", "value_type", "value_content"},
	TableProcessRecords: {"process_record_id", "process_id", "record_id", "relationship_type", "timestamp"},
	TableProcessValues:  {"process_value_id", "process_id", "value_id", "relationship_type", "confidence_score", "timestamp"},
	TableRecordValues:   {"record_value_id", "record_id", "value_id", "relationship_type", "ordinal", "process_id", "timestamp"},
	TableValueValues:    {"value_value_id", "source_value_id", "target_value_id", "relationship_type", "ordinal", "process_id", "confidence_score", "timestamp"},
}

// dataTables fixes the creation order of the output files.
var dataTables = []string{
	TableRecords, TableValues,
	TableProcessRecords, TableProcessValues,
	TableRecordValues, TableValueValues,
}

// Writer owns the CSV files and the dedup index. It is used from exactly
// one goroutine at a time.
type Writer struct {
	dir   string
	files map[string]*os.File
	csvs  map[string]*csv.Writer
	rows  map[string]int64
	seen  *IDSet
}

// NewWriter creates the output directory, the six data CSVs, and writes
// their header rows.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	w := &Writer{
		dir:   dir,
		files: make(map[string]*os.File),
		csvs:  make(map[string]*csv.Writer),
		rows:  make(map[string]int64),
		seen:  NewIDSet(),
	}
	for _, name := range dataTables {
		if err := w.createTable(name, dataHeaders[name]); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Writer) createTable(name string, header []string) error {
	path := filepath.Join(w.dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write header %s: %w", name, err)
	}
	w.files[name] = f
	w.csvs[name] = cw
	return nil
}

// WriteBatch appends a batch's not-yet-seen rows: records, then values,
// then relationships, each in batch order.
func (w *Writer) WriteBatch(b *emit.Batch) error {
	for _, r := range b.Records {
		if !w.seen.Add(r.RecordID) {
			continue
		}
		if err := w.write(TableRecords, r.RecordID, r.DOI); err != nil {
			return err
		}
	}
	for _, v := range b.Values {
		if !w.seen.Add(v.ValueID) {
			continue
		}
		if err := w.write(TableValues, v.ValueID, v.ValueType, v.ValueContent); err != nil {
			return err
		}
	}
	for _, r := range b.ProcessRecords {
		if !w.seen.Add(r.ID) {
			continue
		}
		if err := w.write(TableProcessRecords, r.ID, r.ProcessID, r.RecordID, r.RelationshipType, r.Timestamp); err != nil {
			return err
		}
	}
	for _, r := range b.ProcessValues {
		if !w.seen.Add(r.ID) {
			continue
		}
		if err := w.write(TableProcessValues, r.ID, r.ProcessID, r.ValueID, r.RelationshipType, confidence(r.Confidence), r.Timestamp); err != nil {
			return err
		}
	}
	for _, r := range b.RecordValues {
		if !w.seen.Add(r.ID) {
			continue
		}
		if err := w.write(TableRecordValues, r.ID, r.RecordID, r.ValueID, r.RelationshipType, strconv.Itoa(r.Ordinal), r.ProcessID, r.Timestamp); err != nil {
			return err
		}
	}
	for _, r := range b.ValueValues {
		if !w.seen.Add(r.ID) {
			continue
		}
		if err := w.write(TableValueValues, r.ID, r.SourceValueID, r.TargetValueID, r.RelationshipType, strconv.Itoa(r.Ordinal), r.ProcessID, confidence(r.Confidence), r.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// AppendNullValues ensures every profile-defined null value exists in
// values.csv, whether or not it was ever substituted.
func (w *Writer) AppendNullValues(rows []emit.ValueRow) error {
	for _, v := range rows {
		if !w.seen.Add(v.ValueID) {
			continue
		}
		if err := w.write(TableValues, v.ValueID, v.ValueType, v.ValueContent); err != nil {
			return err
		}
	}
	return nil
}

// WriteMetadata emits sources.csv, processes.csv, and
// source_process_relationships.csv from the profiles used in the run. date
// is the run date (UTC, YYYY-MM-DD) recorded as the relationship start.
func (w *Writer) WriteMetadata(profiles []*profile.Profile, date string) error {
	type metaTable struct {
		name   string
		header []string
	}
	for _, mt := range []metaTable{
		{"sources", []string{"source_id", "source_name", "source_description"}},
		{"processes", []string{"process_id", "process_name", "process_description"}},
		{"source_process_relationships", []string{"source_process_id", "source_id", "process_id", "relationship_type", "start_date", "end_date"}},
	} {
		if _, ok := w.csvs[mt.name]; ok {
			continue
		}
		if err := w.createTable(mt.name, mt.header); err != nil {
			return err
		}
	}

	seenSources := make(map[string]struct{})
	seenProcesses := make(map[string]struct{})
	for _, p := range profiles {
		src, proc := p.SourceInfo, p.ProcessInfo

		if _, ok := seenSources[src.SourceID]; !ok {
			seenSources[src.SourceID] = struct{}{}
			if err := w.write("sources", src.SourceID, src.SourceName, src.SourceDescription); err != nil {
				return err
			}
		}
		if _, ok := seenProcesses[proc.ProcessID]; !ok {
			seenProcesses[proc.ProcessID] = struct{}{}
			if err := w.write("processes", proc.ProcessID, proc.ProcessName, proc.ProcessDescription); err != nil {
				return err
			}
		}

		spID := extract.RelationshipID(extract.TagSourceProcess, "defined_by", src.SourceID, proc.ProcessID)
		if !w.seen.Add(spID) {
			continue
		}
		if err := w.write("source_process_relationships", spID, src.SourceID, proc.ProcessID, "defined_by", date, ""); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) write(table string, fields ...string) error {
	if err := w.csvs[table].Write(fields); err != nil {
		return fmt.Errorf("write %s row: %w", table, err)
	}
	w.rows[table]++
	return nil
}

// RowCounts returns rows written per table, excluding headers.
func (w *Writer) RowCounts() map[string]int64 {
	out := make(map[string]int64, len(w.rows))
	for k, v := range w.rows {
		out[k] = v
	}
	return out
}

// UniqueIDs returns the size of the dedup index.
func (w *Writer) UniqueIDs() int {
	return w.seen.Len()
}

// Flush drains the CSV buffers and reports the first pending write error.
func (w *Writer) Flush() error {
	for name, cw := range w.csvs {
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush %s: %w", name, err)
		}
	}
	return nil
}

// Close flushes and closes every file. The first error wins; all files are
// closed regardless.
func (w *Writer) Close() error {
	err := w.Flush()
	for name, f := range w.files {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", name, cerr)
		}
	}
	w.files = nil
	w.csvs = nil
	return err
}

// confidence renders a confidence score the way downstream loaders expect
// ("1.0", one fractional digit).
func confidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
