package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismicguard/seismicguard/internal/domain"
)

func tableOf(mags ...float64) domain.EventTable {
	records := make([]domain.EventRecord, len(mags))
	for i, m := range mags {
		records[i] = domain.EventRecord{
			Time:      time.Date(2026, 8, 29, 0, i, 0, 0, time.UTC),
			Magnitude: m,
			Location:  "somewhere",
		}
	}
	return domain.NewEventTable(records)
}

func TestManager_CreateAndResolve(t *testing.T) {
	m := NewManager("test-secret", 12*time.Hour, 5.0)

	s, token, err := m.Create("ada", "ada@example.com", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resolved, err := m.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, resolved.ID)
	assert.Equal(t, "ada", resolved.User)
	assert.Equal(t, "ada@example.com", resolved.Email)
	assert.False(t, resolved.IsAdmin)
}

func TestManager_Resolve_BadToken(t *testing.T) {
	m := NewManager("test-secret", 12*time.Hour, 5.0)

	_, err := m.Resolve("not-a-jwt")
	assert.ErrorIs(t, err, ErrNotFound)

	other := NewManager("different-secret", 12*time.Hour, 5.0)
	_, token, err := other.Create("ada", "", false)
	require.NoError(t, err)

	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Expiry(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(clockwork.NewRealClock()) })

	m := NewManager("test-secret", time.Hour, 5.0)
	_, token, err := m.Create("ada", "", false)
	require.NoError(t, err)

	_, err = m.Resolve(token)
	require.NoError(t, err)

	fake.Advance(2 * time.Hour)
	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrNotFound)

	// Resolving an expired token also evicts its session state.
	assert.Equal(t, 0, m.Count())
}

func TestManager_CreateSweepsExpiredSessions(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(clockwork.NewRealClock()) })

	m := NewManager("test-secret", time.Hour, 5.0)
	for range 5 {
		_, _, err := m.Create("ada", "", false)
		require.NoError(t, err)
	}
	require.Equal(t, 5, m.Count())

	// Their tokens lapse unused; the next login reclaims all of them.
	fake.Advance(2 * time.Hour)
	live, _, err := m.Create("grace", "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	m.mu.RLock()
	_, ok := m.sessions[live.ID]
	m.mu.RUnlock()
	assert.True(t, ok)
}

func TestManager_Destroy(t *testing.T) {
	m := NewManager("test-secret", 12*time.Hour, 5.0)
	s, token, err := m.Create("ada", "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	m.Destroy(s.ID)
	assert.Equal(t, 0, m.Count())

	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsHaveIndependentAlertState(t *testing.T) {
	m := NewManager("test-secret", 12*time.Hour, 5.0)
	a, _, err := m.Create("ada", "", false)
	require.NoError(t, err)
	b, _, err := m.Create("grace", "", false)
	require.NoError(t, err)

	table := tableOf(6.2)

	var fired bool
	a.Alert(func(ev *domain.AlertEvaluator) {
		_, fired = ev.Evaluate(table)
	})
	assert.True(t, fired)

	// The other session's evaluator is still armed.
	b.Alert(func(ev *domain.AlertEvaluator) {
		_, fired = ev.Evaluate(table)
	})
	assert.True(t, fired)

	// And the first one has fired and stays quiet.
	a.Alert(func(ev *domain.AlertEvaluator) {
		_, fired = ev.Evaluate(table)
	})
	assert.False(t, fired)
}

func TestSession_ImportedTable(t *testing.T) {
	m := NewManager("test-secret", 12*time.Hour, 5.0)
	s, _, err := m.Create("ada", "", false)
	require.NoError(t, err)

	_, ok := s.Imported()
	assert.False(t, ok, "new sessions follow the live feed")

	table := tableOf(3.1, 5.8)
	s.SetImported(table)
	got, ok := s.Imported()
	require.True(t, ok)
	assert.Equal(t, 2, got.Len())

	s.ClearImported()
	_, ok = s.Imported()
	assert.False(t, ok)
}

func TestSession_ChatTranscript(t *testing.T) {
	m := NewManager("test-secret", 12*time.Hour, 5.0)
	s, _, err := m.Create("ada", "", false)
	require.NoError(t, err)

	at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	s.AppendChat("user", "hi", at)
	s.AppendChat("assistant", "Hello! Ask me about the current seismic data.", at)

	turns := s.Chat()
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "assistant", turns[1].Role)

	// The returned slice is a copy.
	turns[0].Text = "mutated"
	assert.Equal(t, "hi", s.Chat()[0].Text)
}
