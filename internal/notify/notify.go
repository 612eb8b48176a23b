// Package notify implements best-effort user notifications. The dispatcher
// fans a typed payload out to the configured channels; delivery failures are
// logged and counted, never surfaced into the request flow that triggered
// them.
package notify

import (
	"context"
	"time"
)

// Kind discriminates notification payloads.
type Kind string

const (
	// KindLogin announces a successful login.
	KindLogin Kind = "login"
	// KindAlert announces a threshold alert.
	KindAlert Kind = "alert"
)

// Payload is the notification contract: a login carries the user, an alert
// carries the peak magnitude and its location. To is the recipient contact.
type Payload struct {
	Kind      Kind      `json:"kind"`
	To        string    `json:"-"`
	User      string    `json:"user,omitempty"`
	Magnitude float64   `json:"magnitude,omitempty"`
	Location  string    `json:"location,omitempty"`
	At        time.Time `json:"at"`
}

// Channel delivers a payload over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}
