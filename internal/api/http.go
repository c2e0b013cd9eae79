package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// Server mounts the Resolver behind plain JSON-over-HTTP handlers. Request
// and response framing (REST vs. GraphQL, routing) is out of scope per the
// query surface's own specification, so this is the minimal net/http
// surface that exercises the resolver rather than a generated transport
// layer.
type Server struct {
	resolver *Resolver
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewServer wires resolver behind an http.Handler.
func NewServer(resolver *Resolver, logger *zap.Logger) *Server {
	s := &Server{resolver: resolver, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /monitors", s.handleMonitors)
	s.mux.HandleFunc("GET /monitors/{id}", s.handleMonitor)
	s.mux.HandleFunc("GET /monitors/{id}/entities", s.handleEntities)
	s.mux.HandleFunc("GET /unattributed/entities", s.handleEntities)
	s.mux.HandleFunc("GET /entities/{id}", s.handleEntity)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.resolver.Monitors(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, monitors)
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	monitor, err := s.resolver.Monitor(r.Context(), &id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if monitor == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, monitor)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return
	}
	view, err := s.resolver.Entity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, view)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	var monitorID *string
	if id := r.PathValue("id"); id != "" {
		monitorID = &id
	}

	args, err := parsePageArgs(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.resolver.Entities(r.Context(), model.Monitor{ID: monitorID}, args)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, conn)
}

func parsePageArgs(r *http.Request) (PageArgs, error) {
	q := r.URL.Query()
	var args PageArgs

	if v := strings.TrimSpace(q.Get("first")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return PageArgs{}, err
		}
		args.First = &n
	}
	if v := strings.TrimSpace(q.Get("last")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return PageArgs{}, err
		}
		args.Last = &n
	}
	if v := strings.TrimSpace(q.Get("after")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return PageArgs{}, err
		}
		args.After = &n
	}
	if v := strings.TrimSpace(q.Get("before")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return PageArgs{}, err
		}
		args.Before = &n
	}
	return args, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("api: write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Error("api: request failed", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}
