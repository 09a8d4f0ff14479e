// Package server exposes the queue over HTTP: enqueue, cancel, snapshots, a
// server-sent-events stream of lifecycle events, prometheus metrics and the
// dashboard.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/subpirate/analyzer/internal/dashboard"
	"github.com/subpirate/analyzer/internal/domain"
	"github.com/subpirate/analyzer/internal/queue"
)

// Server wires HTTP routes to a queue manager.
type Server struct {
	manager *queue.Manager
	logger  *slog.Logger
	router  *mux.Router
}

// New builds the HTTP surface around the given queue.
func New(manager *queue.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{manager: manager, logger: logger, router: mux.NewRouter()}

	s.router.HandleFunc("/api/analyze/{subreddit}", s.handleEnqueue).Methods(http.MethodPost)
	s.router.HandleFunc("/api/tasks", s.handleListTasks).Methods(http.MethodGet)
	s.router.HandleFunc("/api/tasks/{id}", s.handleGetTask).Methods(http.MethodGet)
	s.router.HandleFunc("/api/tasks/{id}", s.handleCancelTask).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/dashboard", dashboard.Handler(manager.Snapshot)).Methods(http.MethodGet)

	return s
}

// Handler returns the root handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	subreddit := mux.Vars(r)["subreddit"]
	id, err := s.manager.Enqueue(subreddit)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQueueFull):
			s.writeError(w, http.StatusTooManyRequests, err)
		case errors.Is(err, domain.ErrDuplicateTask):
			s.writeError(w, http.StatusConflict, err)
		default:
			s.writeError(w, http.StatusBadRequest, err)
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.manager.Task(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.manager.Cancel(id); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": string(domain.StatusFailed)})
}

// handleEvents streams queue events as server-sent events until the client
// disconnects. Slow clients drop events rather than stalling the queue.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan domain.Event, 64)
	push := func(ev domain.Event) {
		select {
		case events <- ev:
		default:
		}
	}
	unsubProgress := s.manager.SubscribeProgress(push)
	unsubError := s.manager.SubscribeError(push)
	defer unsubProgress()
	defer unsubError()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
