package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/seismicguard/seismicguard/internal/domain"
	"github.com/seismicguard/seismicguard/internal/lab"
	"github.com/seismicguard/seismicguard/internal/notify"
	"github.com/seismicguard/seismicguard/internal/report"
	"github.com/seismicguard/seismicguard/internal/session"
	"github.com/seismicguard/seismicguard/internal/userstore"
)

const maxImportBytes = 10 << 20 // 10 MiB upload cap

// --- auth ---

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := s.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, userstore.ErrTaken) {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		s.logger.Error("registration failed", "user", req.Username, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("user registered", "user", req.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, ok, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Error("authentication failed", "user", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}
	if !ok {
		s.metrics.Logins.WithLabelValues("denied").Inc()
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sess, token, err := s.sessions.Create(user.Username, user.Email, user.IsAdmin)
	if err != nil {
		s.logger.Error("session creation failed", "user", user.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "could not open session")
		return
	}
	s.metrics.Logins.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", "user", user.Username, "session", sess.ID)

	s.notifyAsync(notify.Payload{
		Kind: notify.KindLogin,
		To:   user.Email,
		User: user.Username,
		At:   time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"username": user.Username,
		"is_admin": user.IsAdmin,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	s.sessions.Destroy(sess.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// --- events and stats ---

type alertBody struct {
	Magnitude float64   `json:"magnitude"`
	Location  string    `json:"location"`
	At        time.Time `json:"at"`
}

type eventsResponse struct {
	Source string               `json:"source"`
	Count  int                  `json:"count"`
	Events []domain.EventRecord `json:"events"`
	Alert  *alertBody           `json:"alert,omitempty"`
}

// handleEvents returns the session's current table. Evaluating the alert
// is a side effect of viewing the data, matching dashboard refresh
// semantics: at most one alert fires per session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	table, source := s.currentTable(r.Context(), sess)

	var fired *alertBody
	sess.Alert(func(ev *domain.AlertEvaluator) {
		if intent, ok := ev.Evaluate(table); ok {
			fired = &alertBody{Magnitude: intent.Magnitude, Location: intent.Location, At: intent.At}
		}
	})
	if fired != nil {
		s.metrics.AlertsFired.Inc()
		s.logger.Warn("alert fired", "session", sess.ID, "magnitude", fired.Magnitude, "location", fired.Location)
		s.notifyAsync(notify.Payload{
			Kind:      notify.KindAlert,
			To:        sess.Email,
			User:      sess.User,
			Magnitude: fired.Magnitude,
			Location:  fired.Location,
			At:        fired.At,
		})
	}

	records := table.Records()
	if records == nil {
		records = []domain.EventRecord{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Source: source,
		Count:  table.Len(),
		Events: records,
		Alert:  fired,
	})
}

type statsResponse struct {
	Count     int                            `json:"count"`
	Peak      float64                        `json:"peak_magnitude"`
	MeanDepth float64                        `json:"mean_depth"`
	Describe  map[string]domain.FieldSummary `json:"describe"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	table, _ := s.currentTable(r.Context(), sess)
	if table.IsEmpty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	peak, _ := domain.PeakMagnitude(table)
	writeJSON(w, http.StatusOK, statsResponse{
		Count:     table.Len(),
		Peak:      peak,
		MeanDepth: domain.MeanDepth(table),
		Describe:  domain.Describe(table),
	})
}

// --- import and source switching ---

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	var table domain.EventTable
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		table, err = s.importer.FromCSV(file)
	case ".xlsx":
		table, err = s.importer.FromXLSX(file)
	default:
		writeError(w, http.StatusBadRequest, "unsupported file type, expected .csv or .xlsx")
		return
	}

	if err != nil {
		var schemaErr *domain.SchemaError
		var coercionErr *domain.CoercionError
		switch {
		case errors.As(err, &schemaErr):
			writeErrorDetail(w, http.StatusUnprocessableEntity, "schema mismatch", schemaErr.Error())
		case errors.As(err, &coercionErr):
			writeErrorDetail(w, http.StatusUnprocessableEntity, "value coercion failed", coercionErr.Error())
		default:
			writeErrorDetail(w, http.StatusUnprocessableEntity, "could not parse file", err.Error())
		}
		return
	}

	sess.SetImported(table)
	s.logger.Info("import accepted", "session", sess.ID, "file", header.Filename, "rows", table.Len())
	writeJSON(w, http.StatusOK, map[string]any{"status": "imported", "count": table.Len()})
}

func (s *Server) handleSourceLive(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	sess.ClearImported()
	writeJSON(w, http.StatusOK, map[string]string{"status": "live", "source": "live"})
}

// currentTable resolves the session's active data source: the pinned
// import when present, otherwise a fresh feed fetch.
func (s *Server) currentTable(ctx context.Context, sess *session.Session) (domain.EventTable, string) {
	if table, ok := sess.Imported(); ok {
		return table, "import"
	}
	table, _ := s.feed.Fetch(ctx)
	return table, "live"
}

// --- chat ---

type chatRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	table, _ := s.currentTable(r.Context(), sess)
	reply := s.responder.Respond(r.Context(), req.Query, table)

	now := time.Now().UTC()
	sess.AppendChat("user", req.Query, now)
	sess.AppendChat("assistant", reply, now)

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleChatTranscript(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	turns := sess.Chat()
	if turns == nil {
		turns = []session.ChatTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcript": turns})
}

// --- lab ---

type lossCurveRequest struct {
	Iterations int `json:"iterations"`
}

func (s *Server) handleLossCurve(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	var req lossCurveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.rngMu.Lock()
	curve := lab.Generate(req.Iterations, s.rng)
	s.rngMu.Unlock()
	writeJSON(w, http.StatusOK, curve)
}

// --- report ---

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	table, _ := s.currentTable(r.Context(), sess)
	now := time.Now().UTC()

	switch r.URL.Query().Get("format") {
	case "pdf", "":
		data, err := report.BuildPDF(table, now)
		if err != nil {
			s.logger.Error("pdf report failed", "error", err)
			writeError(w, http.StatusInternalServerError, "report generation failed")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=seismicguard-%s.pdf", now.Format("20060102-1504")))
		w.Write(data)
	case "xlsx":
		data, err := report.BuildXLSX(table, now)
		if err != nil {
			s.logger.Error("xlsx report failed", "error", err)
			writeError(w, http.StatusInternalServerError, "report generation failed")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=seismicguard-%s.xlsx", now.Format("20060102-1504")))
		w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "unknown format, expected pdf or xlsx")
	}
}

// --- admin ---

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("user listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "user listing unavailable")
		return
	}
	if users == nil {
		users = []userstore.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleAdminRaw dumps the current live feed table without any session
// source override, for operator inspection.
func (s *Server) handleAdminRaw(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	table, _ := s.feed.Fetch(r.Context())
	records := table.Records()
	if records == nil {
		records = []domain.EventRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": table.Len(), "events": records})
}

// notifyAsync delivers a notification off the request path. Delivery is
// best effort; the dispatcher logs failures.
func (s *Server) notifyAsync(p notify.Payload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.dispatcher.Dispatch(ctx, p)
	}()
}
