// Package server exposes the player over HTTP: catalog queries, commands
// and the live stream endpoint.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/morea-atlas/campaign-player/internal/campaign"
	"github.com/morea-atlas/campaign-player/internal/catalog"
	"github.com/morea-atlas/campaign-player/internal/dispatcher"
	"github.com/morea-atlas/campaign-player/internal/handlers"
	"github.com/morea-atlas/campaign-player/internal/history"
	"github.com/morea-atlas/campaign-player/internal/monitor"
	"github.com/morea-atlas/campaign-player/internal/playback"
)

// Commander runs named commands. *dispatcher.Dispatcher satisfies it.
type Commander interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Sampler reports the current status. *monitor.Service satisfies it.
type Sampler interface {
	Sample() monitor.Report
}

// History lists recently fired events. *history.Recorder satisfies it.
type History interface {
	Recent(campaignID string) []history.Entry
}

// Dependencies holds what the HTTP layer serves.
type Dependencies struct {
	Catalog  *catalog.Catalog
	Commands Commander
	Status   Sampler
	History  History      // may be nil
	Stream   http.Handler // websocket endpoint, may be nil
	Version  string
	Logger   *slog.Logger
}

const timelineCacheSize = 64

type Server struct {
	deps      Dependencies
	timelines *lru.Cache[string, []campaign.TimelineEntry]
}

// CampaignSummary is one row of the campaign list.
type CampaignSummary struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	TimeSpanLabel string  `json:"timeSpanLabel"`
	Units         int     `json:"units"`
	Clips         int     `json:"clips"`
	MaxTime       float64 `json:"maxTime"`
}

// RouteSummary describes one route.
type RouteSummary struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind,omitempty"`
	Points   int     `json:"points"`
	LengthKm float64 `json:"lengthKm"`
}

type commandRequest struct {
	Args []string `json:"args"`
}

type commandResponse struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New constructs the HTTP router.
func New(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	timelines, _ := lru.New[string, []campaign.TimelineEntry](timelineCacheSize)
	s := &Server{deps: deps, timelines: timelines}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthcheck", s.handleHealthcheck)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/routes", s.handleRoutes)
		r.Get("/campaigns", s.handleCampaigns)
		r.Get("/campaigns/{id}", s.handleCampaign)
		r.Get("/campaigns/{id}/timeline", s.handleTimeline)
		r.Post("/commands/{command}", s.handleCommand)
	})
	if deps.Stream != nil {
		r.Handle("/ws", deps.Stream)
	}
	return r
}

// CommandName maps a URL segment such as "jump-event" to ":JUMP:EVENT:".
func CommandName(segment string) string {
	segment = strings.Trim(segment, ":")
	segment = strings.NewReplacer("-", ":", "_", ":").Replace(segment)
	return ":" + strings.ToUpper(segment) + ":"
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.deps.Version})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Status.Sample())
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	idx := s.deps.Catalog.RouteIndex()
	out := make([]RouteSummary, 0, len(s.deps.Catalog.Routes))
	for _, rt := range s.deps.Catalog.Routes {
		length, _ := idx.Length(rt.ID)
		out = append(out, RouteSummary{
			ID:       rt.ID,
			Kind:     rt.Kind,
			Points:   len(rt.Points),
			LengthKm: length,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	out := make([]CampaignSummary, 0, len(s.deps.Catalog.Campaigns))
	for i := range s.deps.Catalog.Campaigns {
		c := &s.deps.Catalog.Campaigns[i]
		out = append(out, CampaignSummary{
			ID:            c.ID,
			Title:         c.Title,
			TimeSpanLabel: c.TimeSpanLabel,
			Units:         len(c.Units),
			Clips:         len(c.Clips),
			MaxTime:       c.MaxTime(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Catalog.Campaign(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Catalog.Campaign(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	entries, ok := s.timelines.Get(c.ID)
	if !ok {
		entries = campaign.Timeline(c)
		if entries == nil {
			entries = []campaign.TimelineEntry{}
		}
		s.timelines.Add(c.ID, entries)
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHistory lists recently fired events, filtered by ?campaign=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	entries := s.deps.History.Recent(r.URL.Query().Get("campaign"))
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCommand takes arguments from a JSON body {"args": [...]} or,
// without a body, from repeated ?arg= parameters.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := CommandName(chi.URLParam(r, "command"))

	var req commandRequest
	if r.ContentLength != 0 && r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request body")
			return
		}
	}
	if len(req.Args) == 0 {
		req.Args = r.URL.Query()["arg"]
	}

	result, err := s.deps.Commands.Dispatch(dispatcher.Event{
		Command:   name,
		Args:      req.Args,
		Source:    "http",
		Timestamp: time.Now(),
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Command: name, Result: result})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatcher.ErrUnknownCommand),
		errors.Is(err, catalog.ErrCampaignNotFound),
		errors.Is(err, campaign.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, handlers.ErrBadArgs):
		return http.StatusBadRequest
	case errors.Is(err, campaign.ErrNoCampaign),
		errors.Is(err, campaign.ErrNoClips):
		return http.StatusConflict
	case errors.Is(err, dispatcher.ErrQueueFull),
		errors.Is(err, playback.ErrLoopStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.deps.Logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
