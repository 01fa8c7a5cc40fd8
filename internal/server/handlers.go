package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/tasks"
)

// conversionTimeout bounds a background conversion started over HTTP.
const conversionTimeout = 15 * time.Minute

// API implements the conversion endpoints. Conversions run in the
// background; clients poll progress by id and claim the result once.
type API struct {
	engine   *tasks.Engine
	sessions tasks.SessionStore
	logger   *log.Logger
}

func NewAPI(engine *tasks.Engine, sessions tasks.SessionStore, logger *log.Logger) *API {
	return &API{engine: engine, sessions: sessions, logger: logger}
}

func (a *API) Routes() []string {
	return []string{
		"POST /api/convert",
		"GET /api/progress/{id}",
		"GET /api/result/{id}",
		"POST /api/fix",
	}
}

func (a *API) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch {
	case req.Method == http.MethodPost && req.URL.Path == "/api/convert":
		a.handleConvert(w, req)
	case req.Method == http.MethodPost && req.URL.Path == "/api/fix":
		a.handleFix(w, req)
	case req.Method == http.MethodGet && req.PathValue("id") != "":
		a.handleSession(w, req)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleConvert validates the request, assigns a session id, and starts the
// conversion in the background. Responds 202 with the id to poll.
func (a *API) handleConvert(w http.ResponseWriter, req *http.Request) {
	var body tasks.ConvertRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Link == "" || body.Destination == "" {
		writeError(w, http.StatusBadRequest, "link and destination are required")
		return
	}

	body.ID = shared.GenerateID()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), conversionTimeout)
		defer cancel()

		if _, err := a.engine.Convert(ctx, body, nil); err != nil {
			a.logger.Error("conversion failed", "id", body.ID, "err", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": body.ID})
}

// handleSession serves both progress polls and one-shot result claims.
func (a *API) handleSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	var (
		payload json.RawMessage
		err     error
	)
	switch {
	case pathHasPrefix(req, "/api/progress/"):
		payload, err = a.sessions.Progress(id)
	case pathHasPrefix(req, "/api/result/"):
		payload, err = a.sessions.TakeResult(id)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if errors.Is(err, shared.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "unknown or expired session")
		return
	}
	if err != nil {
		a.logger.Error("session lookup failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (a *API) handleFix(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Platform string      `json:"platform"`
		Fixes    []tasks.Fix `json:"fixes"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Platform == "" || len(body.Fixes) == 0 {
		writeError(w, http.StatusBadRequest, "platform and fixes are required")
		return
	}

	summary, err := a.engine.ApplyFixes(req.Context(), body.Platform, body.Fixes)
	if errors.Is(err, shared.ErrUnknownPlatform) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.logger.Error("fix batch failed", "platform", body.Platform, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func pathHasPrefix(req *http.Request, prefix string) bool {
	return len(req.URL.Path) > len(prefix) && req.URL.Path[:len(prefix)] == prefix
}
