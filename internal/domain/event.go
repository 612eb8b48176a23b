package domain

import "time"

// EventRecord is one normalized seismic event.
type EventRecord struct {
	Time      time.Time `json:"time"`
	Magnitude float64   `json:"magnitude"`
	Location  string    `json:"location"`
	Depth     float64   `json:"depth"` // kilometers
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
}

// EventTable is an ordered, positional collection of event records. Records
// carry no identity and duplicates are permitted. A table is built whole at
// ingestion time and replaced, never mutated, on the next refresh or import.
type EventTable struct {
	records []EventRecord
}

// NewEventTable builds a table from records, copying the slice so later
// mutation of the caller's slice cannot leak into the table.
func NewEventTable(records []EventRecord) EventTable {
	if len(records) == 0 {
		return EventTable{}
	}
	copied := make([]EventRecord, len(records))
	copy(copied, records)
	return EventTable{records: copied}
}

// Len returns the number of records.
func (t EventTable) Len() int { return len(t.records) }

// IsEmpty reports whether the table has no records.
func (t EventTable) IsEmpty() bool { return len(t.records) == 0 }

// At returns the record at position i. Panics if i is out of range.
func (t EventTable) At(i int) EventRecord { return t.records[i] }

// Records returns the records in table order. The returned slice is shared
// with the table and must be treated as read-only.
func (t EventTable) Records() []EventRecord { return t.records }

// RawTable is an unvalidated tabular input: named columns of string cells,
// as produced by a CSV or spreadsheet parse. All columns must have equal
// length; Normalize rejects ragged input.
type RawTable struct {
	Columns map[string][]string
}

// Rows returns the row count of the longest column.
func (r RawTable) Rows() int {
	n := 0
	for _, col := range r.Columns {
		if len(col) > n {
			n = len(col)
		}
	}
	return n
}
