// Package emit defines the row types produced by the profile interpreter and
// the batch container that carries them from workers to the writer. A batch
// is self-contained: every ID is already derived, so the writer needs no
// access to the profile or the source record.
package emit

// RecordRow is one row of records.csv.
type RecordRow struct {
	RecordID string
	DOI      string
}

// ValueRow is one row of values.csv.
type ValueRow struct {
	ValueID      string
	ValueType    string
	ValueContent string
}

// ProcessRecordRow links the processing run to a record.
type ProcessRecordRow struct {
	ID               string
	ProcessID        string
	RecordID         string
	RelationshipType string
	Timestamp        string
}

// ProcessValueRow links the processing run to a value.
type ProcessValueRow struct {
	ID               string
	ProcessID        string
	ValueID          string
	RelationshipType string
	Confidence       float64
	Timestamp        string
}

// RecordValueRow links a record to a value it contains.
type RecordValueRow struct {
	ID               string
	RecordID         string
	ValueID          string
	RelationshipType string
	Ordinal          int
	ProcessID        string
	Timestamp        string
}

// ValueValueRow links two values (parent entity → child value).
type ValueValueRow struct {
	ID               string
	SourceValueID    string
	TargetValueID    string
	RelationshipType string
	Ordinal          int
	ProcessID        string
	Confidence       float64
	Timestamp        string
}

// Batch accumulates the rows of one or more records. Within a batch, rows
// appear in interpreter emission order.
type Batch struct {
	Records        []RecordRow
	Values         []ValueRow
	ProcessRecords []ProcessRecordRow
	ProcessValues  []ProcessValueRow
	RecordValues   []RecordValueRow
	ValueValues    []ValueValueRow

	// RecordCount tracks how many source records contributed to the batch;
	// it is the flow-control unit for batching, not a row count.
	RecordCount int
}

// Empty reports whether the batch carries no rows.
func (b *Batch) Empty() bool {
	return len(b.Records) == 0 && len(b.Values) == 0 &&
		len(b.ProcessRecords) == 0 && len(b.ProcessValues) == 0 &&
		len(b.RecordValues) == 0 && len(b.ValueValues) == 0
}

// Rows returns the total number of rows in the batch across all tables.
func (b *Batch) Rows() int {
	return len(b.Records) + len(b.Values) +
		len(b.ProcessRecords) + len(b.ProcessValues) +
		len(b.RecordValues) + len(b.ValueValues)
}
