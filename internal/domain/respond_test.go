package domain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockLookup struct {
	queries []string
	answer  string
	err     error
}

func (m *mockLookup) Search(_ context.Context, query string) (string, error) {
	m.queries = append(m.queries, query)
	return m.answer, m.err
}

type mapKeywords map[string]string

func (m mapKeywords) Match(query string) (string, bool) {
	for k, v := range m {
		if strings.Contains(query, k) {
			return v, true
		}
	}
	return "", false
}

func TestResponder(t *testing.T) {
	ctx := context.Background()
	keywords := mapKeywords{"map": "the map shows events", "frequency": "the histogram"}

	t.Run("exact greeting", func(t *testing.T) {
		lookup := &mockLookup{}
		r := NewResponder(keywords, lookup)

		assert.Equal(t, greetingReply, r.Respond(ctx, "hi", EventTable{}))
		assert.Equal(t, greetingReply, r.Respond(ctx, "Hello", EventTable{}))
		assert.Empty(t, lookup.queries)
	})

	t.Run("max is data derived with tie-break", func(t *testing.T) {
		r := NewResponder(keywords, &mockLookup{})
		table := tableOf(3.1, 5.8, 5.8, 2.0)

		reply := r.Respond(ctx, "what is the max magnitude", table)
		assert.Contains(t, reply, "5.8")
		assert.Contains(t, reply, "Fiji")
	})

	t.Run("max on empty table", func(t *testing.T) {
		r := NewResponder(keywords, &mockLookup{})
		assert.Equal(t, noDataReply, r.Respond(ctx, "max", EventTable{}))
	})

	t.Run("keyword match beats lookup", func(t *testing.T) {
		lookup := &mockLookup{}
		r := NewResponder(keywords, lookup)

		assert.Equal(t, "the map shows events", r.Respond(ctx, "explain the map", EventTable{}))
		assert.Empty(t, lookup.queries)
	})

	t.Run("filler phrases stripped before delegation", func(t *testing.T) {
		lookup := &mockLookup{answer: "A magnitude is a measure of earthquake size."}
		r := NewResponder(keywords, lookup)

		reply := r.Respond(ctx, "what is magnitude", EventTable{})
		assert.Equal(t, "A magnitude is a measure of earthquake size.", reply)
		assert.Equal(t, []string{"magnitude"}, lookup.queries)
	})

	t.Run("lookup failure degrades to fallback", func(t *testing.T) {
		lookup := &mockLookup{err: errors.New("network interference")}
		r := NewResponder(keywords, lookup)

		assert.Equal(t, fallbackReply, r.Respond(ctx, "who is charles richter", EventTable{}))
	})

	t.Run("empty residual does not hit lookup", func(t *testing.T) {
		lookup := &mockLookup{answer: "should not be used"}
		r := NewResponder(keywords, lookup)

		assert.Equal(t, fallbackReply, r.Respond(ctx, "what is", EventTable{}))
		assert.Empty(t, lookup.queries)
	})

	t.Run("nil collaborators", func(t *testing.T) {
		r := NewResponder(nil, nil)
		assert.Equal(t, fallbackReply, r.Respond(ctx, "tsunami", EventTable{}))
	})
}
