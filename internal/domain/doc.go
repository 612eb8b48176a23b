// Package domain models seismic event data for the SeismicGuard dashboard.
//
// # Data Sources
//
// Live data comes from the USGS earthquake summary feed
// (https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/), a GeoJSON
// document whose features carry properties.time (epoch milliseconds),
// properties.mag, properties.place, and geometry.coordinates in
// [lon, lat, depth-km] order. The feed adapter maps each feature to the six
// canonical fields and degrades to an empty table on any failure.
//
// User imports arrive as CSV or XLSX with exactly the columns
// Magnitude, Lat, Lon, Depth, Time, Location (case-sensitive). Import
// normalization is strict: a missing column or a single uncoercible cell
// rejects the whole file, so the dashboard never renders a silently
// corrupted table.
//
// # Canonical Table
//
// [EventTable] is immutable once built and positional: records have no
// identity, duplicates are allowed, and input order is preserved. Views that
// need a different order (the timeline) sort their own copy.
//
// # Alerting
//
// [AlertEvaluator] is a two-state machine (armed, fired) owned by one
// session. It fires at most one [AlertIntent] per armed period, when a
// non-empty table's peak magnitude reaches the threshold (5.0 M by default).
// Switching data sources does not re-arm; only a fresh login does. Among
// records tied at the peak, the first in table order is the alert subject.
package domain
