package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"affilgraph/internal/emit"
	"affilgraph/internal/profile"
)

func readCSV(t *testing.T, dir, table string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, table+".csv"))
	if err != nil {
		t.Fatalf("open %s: %v", table, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", table, err)
	}
	return rows
}

func TestNewWriter_CreatesHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantHeaders := map[string][]string{
		TableRecords:       {"record_id", "doi"},
		TableValues:        {"value_id", "value_type", "value_content"},
		TableValueValues:   {"value_value_id", "source_value_id", "target_value_id", "relationship_type", "ordinal", "process_id", "confidence_score", "timestamp"},
		TableRecordValues:  {"record_value_id", "record_id", "value_id", "relationship_type", "ordinal", "process_id", "timestamp"},
		TableProcessValues: {"process_value_id", "process_id", "value_id", "relationship_type", "confidence_score", "timestamp"},
	}
	for table, want := range wantHeaders {
		rows := readCSV(t, dir, table)
		if len(rows) != 1 {
			t.Fatalf("%s: rows = %d, want header only", table, len(rows))
		}
		for i, col := range want {
			if rows[0][i] != col {
				t.Fatalf("%s header[%d] = %q, want %q", table, i, rows[0][i], col)
			}
		}
	}
}

func sampleBatch() *emit.Batch {
	return &emit.Batch{
		Records: []emit.RecordRow{{RecordID: "rec_1", DOI: "10.1/x"}},
		Values: []emit.ValueRow{
			{ValueID: "val_1", ValueType: "author_name", ValueContent: "Ada Lovelace"},
			{ValueID: "val_2", ValueType: "affiliation", ValueContent: `Analytical "Engine" Co`},
		},
		ProcessRecords: []emit.ProcessRecordRow{
			{ID: "prr_1", ProcessID: "proc", RecordID: "rec_1", RelationshipType: "source", Timestamp: "ts"},
		},
		ProcessValues: []emit.ProcessValueRow{
			{ID: "pvr_1", ProcessID: "proc", ValueID: "val_1", RelationshipType: "created", Confidence: 1, Timestamp: "ts"},
		},
		RecordValues: []emit.RecordValueRow{
			{ID: "rvr_1", RecordID: "rec_1", ValueID: "val_1", RelationshipType: "has_author", Ordinal: 0, ProcessID: "proc", Timestamp: "ts"},
		},
		ValueValues: []emit.ValueValueRow{
			{ID: "vvr_1", SourceValueID: "val_1", TargetValueID: "val_2", RelationshipType: "has_affiliation", Ordinal: 0, ProcessID: "proc", Confidence: 1, Timestamp: "ts"},
		},
	}
}

func TestWriteBatch_RowsAndDedup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.WriteBatch(sampleBatch()); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	// The same batch again: every row is already seen.
	if err := w.WriteBatch(sampleBatch()); err != nil {
		t.Fatalf("WriteBatch(dup): %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	counts := map[string]int{
		TableRecords:        1,
		TableValues:         2,
		TableProcessRecords: 1,
		TableProcessValues:  1,
		TableRecordValues:   1,
		TableValueValues:    1,
	}
	for table, want := range counts {
		rows := readCSV(t, dir, table)
		if got := len(rows) - 1; got != want {
			t.Fatalf("%s: data rows = %d, want %d", table, got, want)
		}
	}

	// Quoted content round-trips through encoding/csv.
	values := readCSV(t, dir, TableValues)
	if values[2][2] != `Analytical "Engine" Co` {
		t.Fatalf("quoted content = %q", values[2][2])
	}

	// Confidence renders with one fractional digit.
	vv := readCSV(t, dir, TableValueValues)
	if vv[1][6] != "1.0" {
		t.Fatalf("confidence = %q, want 1.0", vv[1][6])
	}
	pv := readCSV(t, dir, TableProcessValues)
	if pv[1][4] != "1.0" {
		t.Fatalf("confidence = %q, want 1.0", pv[1][4])
	}
}

func TestWriteBatch_DedupSpansBatches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	b1 := &emit.Batch{Values: []emit.ValueRow{{ValueID: "val_1", ValueType: "t", ValueContent: "c"}}}
	b2 := &emit.Batch{Values: []emit.ValueRow{
		{ValueID: "val_1", ValueType: "t", ValueContent: "c"},
		{ValueID: "val_2", ValueType: "t", ValueContent: "d"},
	}}
	if err := w.WriteBatch(b1); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBatch(b2); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, dir, TableValues)
	if len(rows)-1 != 2 {
		t.Fatalf("values rows = %d, want 2", len(rows)-1)
	}
	if w.RowCounts()[TableValues] != 2 {
		t.Fatalf("RowCounts = %v", w.RowCounts())
	}
}

func TestAppendNullValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// val_1 was already substituted during the run; only val_null is new.
	if err := w.WriteBatch(&emit.Batch{Values: []emit.ValueRow{
		{ValueID: "val_1", ValueType: "author_name", ValueContent: "[unknown author]"},
	}}); err != nil {
		t.Fatal(err)
	}
	nulls := []emit.ValueRow{
		{ValueID: "val_1", ValueType: "author_name", ValueContent: "[unknown author]"},
		{ValueID: "val_null", ValueType: "ror_id", ValueContent: "[no ror]"},
	}
	if err := w.AppendNullValues(nulls); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, dir, TableValues)
	if len(rows)-1 != 2 {
		t.Fatalf("values rows = %d, want 2", len(rows)-1)
	}
}

func TestWriteMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	profiles := []*profile.Profile{
		{
			SourceInfo:  profile.SourceInfo{SourceID: "src_a", SourceName: "A"},
			ProcessInfo: profile.ProcessInfo{ProcessID: "proc_a", ProcessName: "proc A"},
		},
		{
			// Same source, different process: the source row is written once,
			// both process rows are written.
			SourceInfo:  profile.SourceInfo{SourceID: "src_a", SourceName: "A"},
			ProcessInfo: profile.ProcessInfo{ProcessID: "proc_b"},
		},
	}
	if err := w.WriteMetadata(profiles, "2026-01-02"); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	sources := readCSV(t, dir, "sources")
	if len(sources)-1 != 1 {
		t.Fatalf("sources rows = %d, want 1", len(sources)-1)
	}
	processes := readCSV(t, dir, "processes")
	if len(processes)-1 != 2 {
		t.Fatalf("processes rows = %d, want 2", len(processes)-1)
	}
	rels := readCSV(t, dir, "source_process_relationships")
	if len(rels)-1 != 2 {
		t.Fatalf("source_process rows = %d, want 2", len(rels)-1)
	}
	for _, row := range rels[1:] {
		if row[3] != "defined_by" || row[4] != "2026-01-02" || row[5] != "" {
			t.Fatalf("source_process row = %v", row)
		}
	}
	// Deterministic relationship IDs, not random.
	if rels[1][0] == rels[2][0] {
		t.Fatal("distinct processes share a source_process_id")
	}
}

func TestIDSet(t *testing.T) {
	t.Parallel()

	s := NewIDSet()
	if !s.Add("val_1") {
		t.Fatal("first Add = false")
	}
	if s.Add("val_1") {
		t.Fatal("second Add = true")
	}
	if !s.Add("val_2") {
		t.Fatal("Add of distinct id = false")
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}
