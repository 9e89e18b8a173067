package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/djedi-go/djedi"
	appmw "github.com/briangreenhill/djedi-go/internal/http/middleware"
	"github.com/briangreenhill/djedi-go/internal/jobs"
)

// Enqueuer is the part of asynq.Client the warm endpoint needs
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Router *chi.Mux
	Client *djedi.Client
	Queue  Enqueuer // nil disables /warm
}

type ServerOptions struct {
	Client *djedi.Client
	Queue  Enqueuer
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, Client: opts.Client, Queue: opts.Queue}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Get("/node", s.handleNode)
	r.Get("/rendered", s.handleRenderedList)
	r.Delete("/rendered", s.handleRenderedRemove)

	r.Group(func(jr chi.Router) {
		jr.Use(appmw.RequireJSON)
		jr.Post("/prefetch", s.handlePrefetch)
		jr.Post("/rendered", s.handleRenderedReport)
		jr.Post("/warm", s.handleWarm)
	})

	return s
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write json response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// writeFetchError maps client errors to a status. Upstream failures become 502.
func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, djedi.ErrMissing):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, err.Error())
	default:
		hlog.FromRequest(r).Warn().Err(err).Msg("content service request failed")
		writeError(w, r, http.StatusBadGateway, err.Error())
	}
}

func decodeNodes(r *http.Request) (map[string]*string, error) {
	var nodes map[string]*string
	if err := json.NewDecoder(r.Body).Decode(&nodes); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, errors.New("no nodes given")
	}
	return nodes, nil
}

// handleNode resolves one node. Concurrent requests are batched into a single
// upstream call by the client.
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("uri")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "uri required")
		return
	}

	node := djedi.Node{URI: raw}
	if q.Has("default") {
		node.Value = djedi.String(q.Get("default"))
	}

	n, err := s.Client.LoadBatched(r.Context(), node)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, n)
}

// handlePrefetch registers the posted nodes, prefetches and answers with the
// dehydration snapshot for them.
func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	nodes, err := decodeNodes(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	uris := make([]string, 0, len(nodes))
	for raw, value := range nodes {
		s.Client.ReportPrefetchableNode(djedi.Node{URI: raw, Value: value})
		uris = append(uris, raw)
	}
	sort.Strings(uris)

	if _, err := s.Client.Prefetch(r.Context(), djedi.PrefetchOptions{}); err != nil {
		writeFetchError(w, r, err)
		return
	}

	snapshot := s.Client.Snapshot(uris)
	hlog.FromRequest(r).Debug().Int("requested", len(uris)).Int("resolved", len(snapshot)).Msg("prefetch")
	writeJSON(w, r, http.StatusOK, snapshot)
}

func (s *Server) handleRenderedList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Client.RenderedNodes())
}

func (s *Server) handleRenderedReport(w http.ResponseWriter, r *http.Request) {
	var node djedi.Node
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil || node.URI == "" {
		writeError(w, r, http.StatusBadRequest, "body must be {\"uri\": ..., \"value\": ...}")
		return
	}
	s.Client.ReportRenderedNode(node)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenderedRemove(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("uri")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "uri required")
		return
	}
	s.Client.ReportRemovedNode(raw)
	w.WriteHeader(http.StatusNoContent)
}

// handleWarm queues nodes for the worker to load into the shared cache.
func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no queue configured")
		return
	}

	nodes, err := decodeNodes(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	normalized := make(map[string]*string, len(nodes))
	for raw, value := range nodes {
		normalized[s.Client.Normalize(raw)] = value
	}

	task, err := jobs.NewWarmNodesTask(normalized)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	info, err := s.Queue.Enqueue(task)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("enqueue warm task")
		writeError(w, r, http.StatusInternalServerError, "failed to queue warm job")
		return
	}

	hlog.FromRequest(r).Info().Str("task_id", info.ID).Int("nodes", len(normalized)).Msg("warm job queued")
	writeJSON(w, r, http.StatusAccepted, map[string]string{"task_id": info.ID})
}
