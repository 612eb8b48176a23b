package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismicguard/seismicguard/internal/assist"
	"github.com/seismicguard/seismicguard/internal/domain"
	"github.com/seismicguard/seismicguard/internal/notify"
	"github.com/seismicguard/seismicguard/internal/observability"
	"github.com/seismicguard/seismicguard/internal/session"
	"github.com/seismicguard/seismicguard/internal/source/fileimport"
	"github.com/seismicguard/seismicguard/internal/source/usgs"
	"github.com/seismicguard/seismicguard/internal/userstore"
)

const feedBody = `{
	"features": [
		{
			"properties": {"mag": 3.1, "place": "Honshu, Japan", "time": 1756400000000},
			"geometry": {"coordinates": [142.4, 38.3, 10.0]}
		},
		{
			"properties": {"mag": 5.8, "place": "Fiji region", "time": 1756401000000},
			"geometry": {"coordinates": [178.1, -17.8, 600.0]}
		}
	]
}`

const quietFeedBody = `{
	"features": [
		{
			"properties": {"mag": 2.2, "place": "Alaska", "time": 1756400000000},
			"geometry": {"coordinates": [-149.9, 61.2, 35.0]}
		}
	]
}`

type testEnv struct {
	server   *Server
	sessions *session.Manager
	notified *captureChannel
}

func newTestEnv(t *testing.T, feedJSON string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, feedJSON)
	}))
	t.Cleanup(feedSrv.Close)

	users, err := userstore.Open(context.Background(), "sqlite",
		filepath.Join(t.TempDir(), "users.db"), "admin", "admin123", logger)
	require.NoError(t, err)
	t.Cleanup(func() { users.Close() })

	sessions := session.NewManager("test-secret", time.Hour, 5.0)
	feed := usgs.NewClient(feedSrv.URL, 5*time.Second, logger, metrics)
	importer := fileimport.NewProvider(logger, metrics)
	responder := domain.NewResponder(assist.NewKnowledge(), nil)

	capture := &captureChannel{}
	dispatcher := notify.NewDispatcher(logger, metrics, capture)

	srv := NewServer("127.0.0.1:0", logger, metrics, users, sessions, feed, importer,
		responder, dispatcher, rand.New(rand.NewSource(1)))
	return &testEnv{server: srv, sessions: sessions, notified: capture}
}

// captureChannel records dispatched payloads. Deliveries happen off the
// request goroutine, so access is mutex-guarded and tests poll with
// Eventually.
type captureChannel struct {
	mu   sync.Mutex
	sent []notify.Payload
}

func (c *captureChannel) Name() string { return "capture" }

func (c *captureChannel) Send(_ context.Context, p notify.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, p)
	return nil
}

func (c *captureChannel) payloads() []notify.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Payload, len(c.sent))
	copy(out, c.sent)
	return out
}

// awaitPayload polls for a delivered payload of the given kind.
func (e *testEnv) awaitPayload(t *testing.T, kind notify.Kind) notify.Payload {
	t.Helper()
	var found notify.Payload
	require.Eventually(t, func() bool {
		for _, p := range e.notified.payloads() {
			if p.Kind == kind {
				found = p
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "no %s notification delivered", kind)
	return found
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, user, pass string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/auth/login", "",
		strings.NewReader(fmt.Sprintf(`{"username":%q,"password":%q}`, user, pass)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, feedBody)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_RequiresFirstFetch(t *testing.T) {
	env := newTestEnv(t, feedBody)

	rec := env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	token := env.login(t, "admin", "admin123")
	env.do(t, http.MethodGet, "/v1/events", token, nil)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, feedBody)

	t.Run("register then login", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/auth/register", "",
			strings.NewReader(`{"username":"ada","email":"ada@example.com","password":"hunter2"}`))
		require.Equal(t, http.StatusCreated, rec.Code)

		token := env.login(t, "ada", "hunter2")
		assert.NotEmpty(t, token)

		p := env.awaitPayload(t, notify.KindLogin)
		assert.Equal(t, "ada@example.com", p.To)
		assert.Equal(t, "ada", p.User)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/auth/register", "",
			strings.NewReader(`{"username":"ada","email":"x@example.com","password":"pw"}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("bad credentials rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/auth/login", "",
			strings.NewReader(`{"username":"ada","password":"wrong"}`))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("logout invalidates token", func(t *testing.T) {
		token := env.login(t, "ada", "hunter2")
		rec := env.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodGet, "/v1/events", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("protected route without token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/events", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestEvents_AlertFiresOncePerSession(t *testing.T) {
	env := newTestEnv(t, feedBody)
	token := env.login(t, "admin", "admin123")

	rec := env.do(t, http.MethodGet, "/v1/events", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var first eventsResponse
	decodeBody(t, rec, &first)
	assert.Equal(t, "live", first.Source)
	assert.Equal(t, 2, first.Count)
	require.NotNil(t, first.Alert)
	assert.Equal(t, 5.8, first.Alert.Magnitude)
	assert.Equal(t, "Fiji region", first.Alert.Location)

	alertMail := env.awaitPayload(t, notify.KindAlert)
	assert.Equal(t, 5.8, alertMail.Magnitude)
	assert.Equal(t, "Fiji region", alertMail.Location)

	// Second view of the same data stays quiet.
	rec = env.do(t, http.MethodGet, "/v1/events", token, nil)
	var second eventsResponse
	decodeBody(t, rec, &second)
	assert.Nil(t, second.Alert)

	// A fresh session re-arms.
	other := env.login(t, "admin", "admin123")
	rec = env.do(t, http.MethodGet, "/v1/events", other, nil)
	var third eventsResponse
	decodeBody(t, rec, &third)
	assert.NotNil(t, third.Alert)
}

func TestEvents_BelowThresholdNeverAlerts(t *testing.T) {
	env := newTestEnv(t, quietFeedBody)
	token := env.login(t, "admin", "admin123")

	for range 3 {
		rec := env.do(t, http.MethodGet, "/v1/events", token, nil)
		var resp eventsResponse
		decodeBody(t, rec, &resp)
		assert.Nil(t, resp.Alert)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, feedBody)
	token := env.login(t, "admin", "admin123")

	rec := env.do(t, http.MethodGet, "/v1/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 5.8, resp.Peak)
	assert.InDelta(t, 305.0, resp.MeanDepth, 0.001)
	assert.Contains(t, resp.Describe, "magnitude")
	assert.Contains(t, resp.Describe, "depth")
}

func TestStats_EmptyTable(t *testing.T) {
	env := newTestEnv(t, `{"features": []}`)
	token := env.login(t, "admin", "admin123")

	rec := env.do(t, http.MethodGet, "/v1/stats", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func multipartFile(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartFile(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/v1/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

const validCSV = `Magnitude,Lat,Lon,Depth,Time,Location
6.1,38.3,142.4,10.0,2026-08-29T10:00:00Z,Honshu
2.4,61.2,-149.9,35.0,2026-08-29T11:00:00Z,Alaska
`

func TestImport(t *testing.T) {
	env := newTestEnv(t, quietFeedBody)
	token := env.login(t, "admin", "admin123")

	t.Run("valid csv switches source", func(t *testing.T) {
		rec := env.upload(t, token, "events.csv", validCSV)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		events := env.do(t, http.MethodGet, "/v1/events", token, nil)
		var resp eventsResponse
		decodeBody(t, events, &resp)
		assert.Equal(t, "import", resp.Source)
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("switch back to live discards import", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/source/live", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		events := env.do(t, http.MethodGet, "/v1/events", token, nil)
		var resp eventsResponse
		decodeBody(t, events, &resp)
		assert.Equal(t, "live", resp.Source)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("missing columns rejected with detail", func(t *testing.T) {
		rec := env.upload(t, token, "bad.csv", "Magnitude,Lat\n5.0,1.0\n")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp errorBody
		decodeBody(t, rec, &resp)
		assert.Equal(t, "schema mismatch", resp.Error)
		assert.Contains(t, resp.Detail, "Depth")
	})

	t.Run("bad value rejected with detail", func(t *testing.T) {
		bad := strings.Replace(validCSV, "6.1", "not-a-number", 1)
		rec := env.upload(t, token, "bad.csv", bad)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp errorBody
		decodeBody(t, rec, &resp)
		assert.Equal(t, "value coercion failed", resp.Error)
		assert.Contains(t, resp.Detail, "Magnitude")
	})

	t.Run("unsupported extension rejected", func(t *testing.T) {
		rec := env.upload(t, token, "events.txt", validCSV)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestImport_AlertEvaluatesAgainstImportedTable(t *testing.T) {
	env := newTestEnv(t, quietFeedBody)
	token := env.login(t, "admin", "admin123")

	// Live feed peaks at 2.2, no alert.
	rec := env.do(t, http.MethodGet, "/v1/events", token, nil)
	var resp eventsResponse
	decodeBody(t, rec, &resp)
	require.Nil(t, resp.Alert)

	// The imported table peaks at 6.1 and fires.
	require.Equal(t, http.StatusOK, env.upload(t, token, "events.csv", validCSV).Code)
	rec = env.do(t, http.MethodGet, "/v1/events", token, nil)
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Alert)
	assert.Equal(t, 6.1, resp.Alert.Magnitude)

	// Switching back to live does not re-arm the evaluator.
	env.do(t, http.MethodPost, "/v1/source/live", token, nil)
	require.Equal(t, http.StatusOK, env.upload(t, token, "events.csv", validCSV).Code)
	rec = env.do(t, http.MethodGet, "/v1/events", token, nil)
	decodeBody(t, rec, &resp)
	assert.Nil(t, resp.Alert)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, feedBody)
	token := env.login(t, "admin", "admin123")

	rec := env.do(t, http.MethodPost, "/v1/chat", token, strings.NewReader(`{"query":"hi"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var reply struct {
		Reply string `json:"reply"`
	}
	decodeBody(t, rec, &reply)
	assert.Contains(t, reply.Reply, "Systems online")

	rec = env.do(t, http.MethodPost, "/v1/chat", token, strings.NewReader(`{"query":"show me the max event"}`))
	decodeBody(t, rec, &reply)
	assert.Contains(t, reply.Reply, "5.8 M")
	assert.Contains(t, reply.Reply, "Fiji region")

	rec = env.do(t, http.MethodGet, "/v1/chat", token, nil)
	var transcript struct {
		Transcript []session.ChatTurn `json:"transcript"`
	}
	decodeBody(t, rec, &transcript)
	require.Len(t, transcript.Transcript, 4)
	assert.Equal(t, "user", transcript.Transcript[0].Role)
	assert.Equal(t, "hi", transcript.Transcript[0].Text)
}

func TestLossCurve(t *testing.T) {
	env := newTestEnv(t, feedBody)
	token := env.login(t, "admin", "admin123")

	rec := env.do(t, http.MethodPost, "/v1/lab/losscurve", token, strings.NewReader(`{"iterations":30}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Loss      []float64 `json:"loss"`
		Predicted float64   `json:"predicted"`
	}
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Loss, 30)
	assert.GreaterOrEqual(t, resp.Predicted, 4.0)
}

func TestLossCurve_ConcurrentRequests(t *testing.T) {
	env := newTestEnv(t, feedBody)
	token := env.login(t, "admin", "admin123")

	// Requests share one seeded generator; access must be serialized.
	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := env.do(t, http.MethodPost, "/v1/lab/losscurve", token, strings.NewReader(`{"iterations":50}`))
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestReport(t *testing.T) {
	env := newTestEnv(t, feedBody)
	token := env.login(t, "admin", "admin123")

	t.Run("pdf", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/report?format=pdf", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/report?format=xlsx", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/report?format=doc", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, feedBody)

	rec := env.do(t, http.MethodPost, "/v1/auth/register", "",
		strings.NewReader(`{"username":"ada","email":"ada@example.com","password":"pw"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	adminToken := env.login(t, "admin", "admin123")
	userToken := env.login(t, "ada", "pw")

	t.Run("users listing for admin", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/admin/users", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Users []userstore.User `json:"users"`
		}
		decodeBody(t, rec, &resp)
		assert.Len(t, resp.Users, 2)
	})

	t.Run("raw feed for admin", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/admin/raw", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("forbidden for non-admin", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/admin/users", userToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodGet, "/v1/admin/raw", userToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
