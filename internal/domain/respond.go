package domain

import (
	"context"
	"fmt"
	"strings"
)

// Lookup resolves a free-text query against an external knowledge source.
type Lookup interface {
	Search(ctx context.Context, query string) (string, error)
}

// KeywordSource matches a query against a fixed set of domain keywords and
// returns the canned explanation for the first hit.
type KeywordSource interface {
	Match(query string) (string, bool)
}

const (
	greetingReply = "Systems online. I can search the web or analyze the current data."
	noDataReply   = "No event data is loaded, so there is nothing to analyze yet."
	// fallbackReply is returned whenever the external lookup fails; lookup
	// errors are logged by the lookup adapter, never propagated to the user.
	fallbackReply = "I searched the web but couldn't find a direct answer. Try rephrasing."
)

var greetings = map[string]bool{"hi": true, "hello": true}

// fillerPhrases are stripped from a query before delegating the residual
// text to the external lookup.
var fillerPhrases = []string{"what is", "explain", "who is"}

// Responder maps a free-text query to an answer. Resolution is checked in
// fixed priority order: exact greeting, data-derived peak query, configured
// keyword explanations, external lookup. The responder holds no per-call
// state; the transcript belongs to the session.
type Responder struct {
	keywords KeywordSource
	lookup   Lookup
}

// NewResponder builds a Responder. Either collaborator may be nil, in which
// case its resolution step is skipped (the lookup step then yields the
// fallback reply).
func NewResponder(keywords KeywordSource, lookup Lookup) *Responder {
	return &Responder{keywords: keywords, lookup: lookup}
}

// Respond resolves query against the current table. It never returns an
// error: external failures degrade to a fixed fallback string.
func (r *Responder) Respond(ctx context.Context, query string, table EventTable) string {
	q := strings.ToLower(strings.TrimSpace(query))

	if greetings[q] {
		return greetingReply
	}

	if strings.Contains(q, "max") {
		peak, ok := PeakRecord(table)
		if !ok {
			return noDataReply
		}
		return fmt.Sprintf("CRITICAL: max magnitude %.1f M detected at %s.", peak.Magnitude, peak.Location)
	}

	if r.keywords != nil {
		if answer, ok := r.keywords.Match(q); ok {
			return answer
		}
	}

	residual := q
	for _, filler := range fillerPhrases {
		residual = strings.ReplaceAll(residual, filler, "")
	}
	residual = strings.TrimSpace(residual)

	if r.lookup == nil || residual == "" {
		return fallbackReply
	}
	answer, err := r.lookup.Search(ctx, residual)
	if err != nil || answer == "" {
		return fallbackReply
	}
	return answer
}
