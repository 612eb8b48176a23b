package domain

import (
	"math"
	"sort"
)

// FieldSummary holds descriptive statistics for one numeric field.
// Quartiles use linear interpolation between order-statistic ranks.
type FieldSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
}

// PeakMagnitude returns the maximum magnitude across the table.
// ok is false on an empty table; there is no sentinel value.
func PeakMagnitude(t EventTable) (mag float64, ok bool) {
	rec, ok := PeakRecord(t)
	return rec.Magnitude, ok
}

// PeakRecord returns the record carrying the peak magnitude. When several
// records share the maximum the first in table order wins, so the result is
// stable across repeated evaluation.
func PeakRecord(t EventTable) (EventRecord, bool) {
	if t.IsEmpty() {
		return EventRecord{}, false
	}
	peak := t.records[0]
	for _, rec := range t.records[1:] {
		if rec.Magnitude > peak.Magnitude {
			peak = rec
		}
	}
	return peak, true
}

// MeanDepth returns the arithmetic mean of depth in kilometers, 0 for an
// empty table. Display rounding is left to the caller.
func MeanDepth(t EventTable) float64 {
	if t.IsEmpty() {
		return 0
	}
	var sum float64
	for _, rec := range t.records {
		sum += rec.Depth
	}
	return sum / float64(len(t.records))
}

// Describe computes summaries for the numeric fields, keyed "magnitude" and
// "depth". It is pure and may be called repeatedly on the same table.
func Describe(t EventTable) map[string]FieldSummary {
	mags := make([]float64, 0, t.Len())
	depths := make([]float64, 0, t.Len())
	for _, rec := range t.records {
		mags = append(mags, rec.Magnitude)
		depths = append(depths, rec.Depth)
	}
	return map[string]FieldSummary{
		"magnitude": summarize(mags),
		"depth":     summarize(depths),
	}
}

func summarize(values []float64) FieldSummary {
	n := len(values)
	if n == 0 {
		return FieldSummary{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}
	std := 0.0
	if n > 1 {
		std = math.Sqrt(sq / float64(n-1))
	}

	return FieldSummary{
		Count:  n,
		Mean:   mean,
		StdDev: std,
		Min:    sorted[0],
		Max:    sorted[n-1],
		P25:    percentile(sorted, 0.25),
		P50:    percentile(sorted, 0.50),
		P75:    percentile(sorted, 0.75),
	}
}

// percentile interpolates linearly between the two nearest ranks of an
// ascending-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
