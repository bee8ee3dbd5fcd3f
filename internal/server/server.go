package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"agentgames/internal/backend"
	"agentgames/internal/game"
	"agentgames/internal/logging"
	"agentgames/internal/metrics"
	"agentgames/internal/render"
	"agentgames/internal/replay"
	"agentgames/internal/result"
	"agentgames/internal/session"
	"agentgames/internal/storage"
)

const maxResultBytes = 10 << 20

// Deps are the collaborators the server routes requests to. Loader, Metrics,
// Logger and Static may be nil.
type Deps struct {
	Registry *game.Registry
	Manager  *session.Manager
	Store    *storage.Store
	Loader   *backend.Loader
	Renderer *render.Renderer
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
	Static   fs.FS
}

// Server is the HTTP server.
type Server struct {
	router   chi.Router
	registry *game.Registry
	manager  *session.Manager
	store    *storage.Store
	loader   *backend.Loader
	renderer *render.Renderer
	metrics  *metrics.Recorder
	logger   *slog.Logger
	static   fs.FS
}

// New creates a server with all routes.
func New(d Deps) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		registry: d.Registry,
		manager:  d.Manager,
		store:    d.Store,
		loader:   d.Loader,
		renderer: d.Renderer,
		metrics:  d.Metrics,
		logger:   d.Logger,
		static:   d.Static,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger, s.metrics))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/games", s.handleListGames)

		r.Post("/results", s.handleCreateResult)
		r.Get("/results", s.handleListResults)
		r.Get("/results/{id}", s.handleGetResult)
		r.Delete("/results/{id}", s.handleDeleteResult)
		r.Get("/results/{id}/table", s.handleResultTable)
		r.Post("/results/{id}/refresh", s.handleRefreshResult)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{code}", s.handleGetSession)
		r.Delete("/sessions/{code}", s.handleDeleteSession)
		r.Post("/sessions/{code}/intents", s.handleIntent)
		r.Get("/sessions/{code}/ws", s.handleWebSocket)
	})

	// HTML views
	r.Get("/results/{id}", s.handleResultPage)
	r.Get("/sessions/{code}", s.handleSessionPage)

	if s.static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.static))))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.requestLogger(r))
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List(), s.requestLogger(r))
}

// --- results ---

type createResultResponse struct {
	ID   string `json:"id"`
	Game string `json:"game"`
}

func (s *Server) handleCreateResult(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	res, err := result.Decode(http.MaxBytesReader(w, r.Body, maxResultBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid result body", logger)
		return
	}
	if err := s.store.SaveResult(r.Context(), res); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.Info(logger, "result stored", logging.FieldResultID, res.ID, logging.FieldGame, res.Game)
	writeJSON(w, http.StatusCreated, createResultResponse{ID: res.ID, Game: res.Game}, logger)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListResults(r.Context(), strings.TrimSpace(r.URL.Query().Get("game")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []storage.ResultRow{}
	}
	writeJSON(w, http.StatusOK, rows, s.requestLogger(r))
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res, s.requestLogger(r))
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteResult(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tableOptions reads ?self=, ?highlight= and ?visible= query parameters.
func tableOptions(r *http.Request) render.TableOptions {
	q := r.URL.Query()
	flag := func(key string) bool {
		v, err := strconv.ParseBool(q.Get(key))
		return err == nil && v
	}
	return render.TableOptions{
		Self:             q.Get("self"),
		HighlightSelf:    flag("highlight"),
		InitiallyVisible: flag("visible"),
	}
}

func (s *Server) handleResultTable(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tv := render.Table(res, tableOptions(r))
	if tv == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, tv, s.requestLogger(r))
}

// handleRefreshResult pulls the latest version of a result from the backend.
// With ?session=code the result is loaded into that session, and loads for
// the same session supersede each other.
func (s *Server) handleRefreshResult(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	if s.loader == nil {
		writeError(w, r, http.StatusServiceUnavailable, "backend not configured", logger)
		return
	}
	id := chi.URLParam(r, "id")
	code := r.URL.Query().Get("session")
	key := id
	if code != "" {
		if _, ok := s.manager.Get(code); !ok {
			writeError(w, r, http.StatusNotFound, session.ErrNotFound.Error(), logger)
			return
		}
		key = "session:" + code
	}

	if code == "" {
		res, err := s.loader.Load(r.Context(), key, id, func(res *result.MatchResult) error {
			return s.store.SaveResult(r.Context(), res)
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, createResultResponse{ID: res.ID, Game: res.Game}, logger)
		return
	}
	var view session.View
	_, err := s.loader.Load(r.Context(), key, id, func(res *result.MatchResult) error {
		v, err := s.manager.Reload(r.Context(), code, res)
		if err != nil {
			return err
		}
		if sess, ok := s.manager.Get(code); ok {
			sess.Broadcast(encodeWSMsg(msgFrame, v))
		}
		view = v
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view, logger)
}

// --- sessions ---

type createSessionRequest struct {
	ResultID string `json:"resultId"`
}

type sessionResponse struct {
	Info session.Info `json:"info"`
	View session.View `json:"view"`
	Log  []string     `json:"log,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", logger)
		return
	}
	req.ResultID = strings.TrimSpace(req.ResultID)
	if req.ResultID == "" {
		writeError(w, r, http.StatusBadRequest, "resultId required", logger)
		return
	}
	sess, err := s.manager.Open(r.Context(), req.ResultID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	info := sess.Info()
	logging.Info(logger, "session opened",
		logging.FieldSession, sess.Code, logging.FieldResultID, req.ResultID, logging.FieldKind, string(info.Kind))
	writeJSON(w, http.StatusCreated, sessionResponse{Info: info, View: sess.View()}, logger)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List(), s.requestLogger(r))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Get(chi.URLParam(r, "code"))
	if !ok {
		writeError(w, r, http.StatusNotFound, session.ErrNotFound.Error(), s.requestLogger(r))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Info: sess.Info(), View: sess.View(), Log: sess.Log()}, s.requestLogger(r))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, ok := s.manager.Get(code); !ok {
		writeError(w, r, http.StatusNotFound, session.ErrNotFound.Error(), s.requestLogger(r))
		return
	}
	s.manager.Remove(r.Context(), code)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	code := chi.URLParam(r, "code")
	var in replay.Intent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid intent body", logger)
		return
	}
	view, err := s.applyIntent(r, code, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view, logger)
}

// applyIntent runs an intent and pushes the new frame to every websocket
// viewer of the session.
func (s *Server) applyIntent(r *http.Request, code string, in replay.Intent) (session.View, error) {
	view, err := s.manager.Apply(r.Context(), code, in)
	if err != nil {
		return view, err
	}
	logging.Info(s.requestLogger(r), "intent applied",
		logging.FieldSession, code, logging.FieldIntent, string(in.Type))
	if sess, ok := s.manager.Get(code); ok {
		sess.Broadcast(encodeWSMsg(msgFrame, view))
	}
	return view, nil
}

// --- HTML ---

func (s *Server) title(name string) string {
	if a, ok := s.registry.Get(name); ok {
		return a.Info().Title
	}
	if name != "" {
		return name
	}
	return "Match result"
}

func (s *Server) handleResultPage(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.htmlError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.ResultPage(w, s.title(res.Game), render.Table(res, tableOptions(r))); err != nil {
		logging.Error(s.requestLogger(r), "render result page failed", err)
	}
}

func (s *Server) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	sess, ok := s.manager.Get(code)
	if !ok {
		s.htmlError(w, r, session.ErrNotFound)
		return
	}
	view := sess.View()
	page := render.Page{
		Code:  code,
		Title: s.title(sess.Info().Game),
		State: view.State,
		Frame: view.Frame,
		Table: render.Table(sess.Result(), tableOptions(r)),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.SessionPage(w, page); err != nil {
		logging.Error(s.requestLogger(r), "render session page failed", err)
	}
}

func (s *Server) htmlError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Error(s.requestLogger(r), "request failed", err)
	}
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, session.ErrNotFound) {
		http.Error(w, "not found", status)
		return
	}
	http.Error(w, http.StatusText(status), status)
}
