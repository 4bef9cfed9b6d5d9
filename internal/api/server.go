// Package api exposes the crawl pipeline over HTTP: trigger crawls, read
// sessions, and query stored properties.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"propcrawl/internal/logger"
	"propcrawl/internal/models"
	"propcrawl/internal/orchestrator"
	"propcrawl/internal/storage"
)

// Server wires the HTTP routes to the orchestrator and the store.
type Server struct {
	store  storage.Store
	orch   *orchestrator.Orchestrator
	log    *logger.Logger
	router *mux.Router
}

// NewServer registers all routes and returns a ready server.
func NewServer(store storage.Store, orch *orchestrator.Orchestrator, log *logger.Logger) *Server {
	s := &Server{
		store:  store,
		orch:   orch,
		log:    log,
		router: mux.NewRouter(),
	}

	s.router.HandleFunc("/api/scrape", s.handleScrape).Methods(http.MethodPost)
	s.router.HandleFunc("/api/sessions", s.handleSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions/{id:[0-9]+}", s.handleSession).Methods(http.MethodGet)
	s.router.HandleFunc("/api/properties", s.handleProperties).Methods(http.MethodGet)
	s.router.HandleFunc("/api/properties/recent", s.handleRecentProperties).Methods(http.MethodGet)
	s.router.HandleFunc("/api/properties/updated", s.handleUpdatedProperties).Methods(http.MethodGet)
	s.router.HandleFunc("/api/properties/{id:[0-9]+}/history", s.handleHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/api/statistics", s.handleStatistics).Methods(http.MethodGet)

	return s
}

// Handler returns the router for mounting into an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// scrapeRequest is the POST /api/scrape body. Source empty means all
// enabled sources.
type scrapeRequest struct {
	Source   string               `json:"source,omitempty"`
	MaxPages int                  `json:"maxPages,omitempty"`
	Filters  models.SearchFilters `json:"filters"`
}

type scrapeResponse struct {
	Results []models.SessionResult `json:"results"`
}

// handleScrape runs a crawl synchronously and returns the per-source
// results. Long crawls are expected; callers should set generous timeouts
// or cap pages.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		results []models.SessionResult
		err     error
	)

	if req.Source != "" {
		var result models.SessionResult

		result, err = s.orch.CrawlOne(r.Context(), req.Source, req.Filters, req.MaxPages)
		results = []models.SessionResult{result}
	} else {
		results, err = s.orch.CrawlAll(r.Context(), req.Filters, req.MaxPages)
	}

	if err != nil {
		var confErr *orchestrator.ConfigurationError
		if errors.As(err, &confErr) {
			s.writeError(w, http.StatusBadRequest, confErr.Error())
			return
		}

		s.log.Error("scrape failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "crawl failed")

		return
	}

	s.writeJSON(w, http.StatusOK, scrapeResponse{Results: results})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	var sourceName *string

	if v := r.URL.Query().Get("source"); v != "" {
		sourceName = &v
	}

	limit := queryInt(r, "limit", 50)

	sessions, err := s.store.GetSessions(r.Context(), sourceName, limit)
	if err != nil {
		s.log.Error("list sessions failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not list sessions")

		return
	}

	if sessions == nil {
		sessions = []models.CrawlSession{}
	}

	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	session, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, storage.ErrSessionNotFound) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err != nil {
		s.log.Error("get session failed", "sessionId", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load session")

		return
	}

	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := queryInt(r, "limit", 50)

	properties, err := s.store.SearchProperties(r.Context(), filters, limit)
	if err != nil {
		s.log.Error("search properties failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not search properties")

		return
	}

	if properties == nil {
		properties = []models.StoredProperty{}
	}

	s.writeJSON(w, http.StatusOK, properties)
}

func (s *Server) handleRecentProperties(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	properties, err := s.store.GetRecentProperties(r.Context(), limit)
	if err != nil {
		s.log.Error("recent properties failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load properties")

		return
	}

	if properties == nil {
		properties = []models.StoredProperty{}
	}

	s.writeJSON(w, http.StatusOK, properties)
}

// handleUpdatedProperties lists properties whose stored fields changed
// within the requested window (default 24 hours).
func (s *Server) handleUpdatedProperties(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	limit := queryInt(r, "limit", 50)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	properties, err := s.store.GetUpdatedProperties(r.Context(), since, limit)
	if err != nil {
		s.log.Error("updated properties failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load properties")

		return
	}

	if properties == nil {
		properties = []models.StoredProperty{}
	}

	s.writeJSON(w, http.StatusOK, properties)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStatistics(r.Context(), time.Now().UTC())
	if err != nil {
		s.log.Error("statistics failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load statistics")

		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	history, err := s.store.History(r.Context(), id)
	if err != nil {
		s.log.Error("history failed", "propertyId", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load history")

		return
	}

	if history == nil {
		history = []models.ChangeEntry{}
	}

	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}

	return n
}

// filtersFromQuery maps query parameters onto the optional search bounds.
func filtersFromQuery(r *http.Request) (models.SearchFilters, error) {
	var filters models.SearchFilters

	q := r.URL.Query()

	if v := q.Get("propertyType"); v != "" {
		pt := models.PropertyType(v)
		filters.PropertyType = &pt
	}

	if v := q.Get("operationType"); v != "" {
		ot := models.OperationType(v)
		filters.OperationType = &ot
	}

	if v := q.Get("currency"); v != "" {
		c := models.Currency(v)
		filters.Currency = &c
	}

	var err error

	if filters.MinPrice, err = queryFloat(q.Get("minPrice")); err != nil {
		return filters, errors.New("minPrice must be a number")
	}

	if filters.MaxPrice, err = queryFloat(q.Get("maxPrice")); err != nil {
		return filters, errors.New("maxPrice must be a number")
	}

	if filters.MinArea, err = queryFloat(q.Get("minArea")); err != nil {
		return filters, errors.New("minArea must be a number")
	}

	if filters.MaxArea, err = queryFloat(q.Get("maxArea")); err != nil {
		return filters, errors.New("maxArea must be a number")
	}

	if filters.MinBedrooms, err = queryIntPtr(q.Get("minBedrooms")); err != nil {
		return filters, errors.New("minBedrooms must be an integer")
	}

	if filters.MaxBedrooms, err = queryIntPtr(q.Get("maxBedrooms")); err != nil {
		return filters, errors.New("maxBedrooms must be an integer")
	}

	if filters.MinBathrooms, err = queryIntPtr(q.Get("minBathrooms")); err != nil {
		return filters, errors.New("minBathrooms must be an integer")
	}

	if filters.MaxBathrooms, err = queryIntPtr(q.Get("maxBathrooms")); err != nil {
		return filters, errors.New("maxBathrooms must be an integer")
	}

	for param, dst := range map[string]**string{
		"province":     &filters.Province,
		"city":         &filters.City,
		"neighborhood": &filters.Neighborhood,
	} {
		if v := q.Get(param); v != "" {
			value := v
			*dst = &value
		}
	}

	return filters, nil
}

func queryFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}

	return &f, nil
}

func queryIntPtr(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}

	return &n, nil
}

// Serve runs the HTTP server until the context is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, log *logger.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
