package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RequiredColumns is the exact column set a user-supplied table must carry,
// matched case-sensitively by name.
var RequiredColumns = []string{"Magnitude", "Lat", "Lon", "Depth", "Time", "Location"}

// timeLayouts are the accepted textual timestamp formats, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize validates and coerces a raw table into the canonical EventTable.
//
// All required columns must be present or a *SchemaError naming the missing
// set is returned. Coercion is strict: the first cell that fails to convert
// rejects the whole table with a *CoercionError, so a bad import can never
// feed partially corrupted data downstream. Row order is preserved; sorting
// is the consumer's concern.
func Normalize(raw RawTable) (EventTable, error) {
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := raw.Columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return EventTable{}, &SchemaError{Missing: missing}
	}

	rows := raw.Rows()
	for _, name := range RequiredColumns {
		if len(raw.Columns[name]) != rows {
			return EventTable{}, fmt.Errorf("ragged input: column %q has %d values, want %d",
				name, len(raw.Columns[name]), rows)
		}
	}

	records := make([]EventRecord, 0, rows)
	for i := 0; i < rows; i++ {
		ts, err := coerceTime(raw.Columns["Time"][i])
		if err != nil {
			return EventTable{}, &CoercionError{Row: i, Column: "Time", Value: raw.Columns["Time"][i], Err: err}
		}
		rec := EventRecord{Time: ts, Location: raw.Columns["Location"][i]}

		for _, f := range []struct {
			column string
			dst    *float64
		}{
			{"Magnitude", &rec.Magnitude},
			{"Depth", &rec.Depth},
			{"Lat", &rec.Lat},
			{"Lon", &rec.Lon},
		} {
			v, err := coerceFloat(raw.Columns[f.column][i])
			if err != nil {
				return EventTable{}, &CoercionError{Row: i, Column: f.column, Value: raw.Columns[f.column][i], Err: err}
			}
			*f.dst = v
		}
		records = append(records, rec)
	}

	return EventTable{records: records}, nil
}

func coerceFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

// coerceTime accepts the known textual layouts, then falls back to numeric
// epoch values. Epoch values >= 1e12 are taken as milliseconds; the USGS
// feed and most exports use millisecond precision for recent events.
func coerceTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty value")
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n >= 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}
