package domain

import "time"

// DefaultAlertThreshold is the magnitude at or above which an alert fires.
const DefaultAlertThreshold = 5.0

// AlertState is the evaluator's position in its two-state machine.
type AlertState int

const (
	// AlertArmed means no alert has been dispatched this armed period.
	AlertArmed AlertState = iota
	// AlertFired means the single alert for this armed period is spent.
	AlertFired
)

func (s AlertState) String() string {
	if s == AlertFired {
		return "fired"
	}
	return "armed"
}

// AlertIntent is the notification payload produced by a firing evaluator:
// the peak magnitude and the location of the peak-magnitude record.
type AlertIntent struct {
	Magnitude float64   `json:"magnitude"`
	Location  string    `json:"location"`
	At        time.Time `json:"at"`
}

// AlertEvaluator performs the one-shot-per-session threshold check. An
// evaluator is owned by a single session and is not safe for concurrent use;
// a new armed period begins only by constructing a fresh evaluator at
// session start.
type AlertEvaluator struct {
	threshold float64
	state     AlertState
}

// NewAlertEvaluator returns an armed evaluator. A threshold <= 0 falls back
// to DefaultAlertThreshold.
func NewAlertEvaluator(threshold float64) *AlertEvaluator {
	if threshold <= 0 {
		threshold = DefaultAlertThreshold
	}
	return &AlertEvaluator{threshold: threshold}
}

// State returns the current machine state.
func (a *AlertEvaluator) State() AlertState { return a.state }

// Evaluate checks the table's peak magnitude against the threshold.
// While armed, a non-empty table with peak >= threshold transitions the
// evaluator to fired and returns exactly one intent. Once fired, Evaluate is
// a no-op no matter how often it is called or how high the peak climbs.
// Empty tables never fire and never change state.
func (a *AlertEvaluator) Evaluate(t EventTable) (AlertIntent, bool) {
	if a.state == AlertFired {
		return AlertIntent{}, false
	}
	peak, ok := PeakRecord(t)
	if !ok || peak.Magnitude < a.threshold {
		return AlertIntent{}, false
	}
	a.state = AlertFired
	return AlertIntent{
		Magnitude: peak.Magnitude,
		Location:  peak.Location,
		At:        clock.Now(),
	}, true
}
