// Package rest exposes the process engine over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/indigo423/kuwaiba-sub029/internal/config"
	"github.com/indigo423/kuwaiba-sub029/internal/log"
	"github.com/indigo423/kuwaiba-sub029/internal/rest/middleware"
	"github.com/indigo423/kuwaiba-sub029/pkg/process"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	PaginationDefaultPage int = 1
	PaginationDefaultSize int = 10

	maxDefinitionSize = 8 << 20
	maxArtifactSize   = 32 << 20
)

type Server struct {
	engine *process.Engine
	addr   string
	server *http.Server
}

func NewServer(engine *process.Engine, conf config.Config) *Server {
	s := Server{
		engine: engine,
		addr:   conf.Server.Addr,
	}
	root := chi.NewRouter()
	root.Use(middleware.Cors())
	root.Use(middleware.CorrelationId())
	root.Use(middleware.Opentelemetry(conf))

	r := root
	if conf.Server.Context != "" && conf.Server.Context != "/" {
		r = chi.NewRouter()
		root.Mount(conf.Server.Context, r)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.NormalizeQueryParams())
		r.Route("/process-definitions", func(r chi.Router) {
			r.Get("/", s.getProcessDefinitions)
			r.Post("/reload", s.reloadProcessDefinitions)
			r.Get("/{definitionId}", s.getProcessDefinition)
			r.Put("/{definitionId}", s.importProcessDefinition)
			r.Delete("/{definitionId}", s.deleteProcessDefinition)
			r.Get("/{definitionId}/activities/{activityId}", s.getActivityDefinition)
			r.Get("/{definitionId}/activities/{activityId}/join", s.getJoinActivity)
		})
		r.Route("/process-instances", func(r chi.Router) {
			r.Get("/", s.getProcessInstances)
			r.Post("/", s.createProcessInstance)
			r.Get("/{instanceKey}", s.getProcessInstance)
			r.Put("/{instanceKey}", s.updateProcessInstance)
			r.Delete("/{instanceKey}", s.deleteProcessInstance)
			r.Get("/{instanceKey}/current-activity", s.getCurrentActivity)
			r.Get("/{instanceKey}/next-activity", s.getNextActivity)
			r.Get("/{instanceKey}/path", s.getActivitiesPath)
			r.Get("/{instanceKey}/snapshot", s.getSnapshot)
			r.Get("/{instanceKey}/kpis", s.getProcessKpis)
			r.Get("/{instanceKey}/activities/{activityId}/artifact", s.getArtifact)
			r.Put("/{instanceKey}/activities/{activityId}/artifact", s.updateActivity)
			r.Post("/{instanceKey}/activities/{activityId}/commit", s.commitActivity)
			r.Get("/{instanceKey}/activities/{activityId}/kpis", s.getActivityKpis)
		})
	})
	// register system endpoints
	root.Route("/system", func(r chi.Router) {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, engine.Status())
		})
	})

	s.server = &http.Server{
		ReadHeaderTimeout: 3 * time.Second,
		Handler:           root,
		Addr:              conf.Server.Addr,
	}
	return &s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	log.Info("Process engine REST server listening on %s", listener.Addr())
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("Error starting server: %s", err)
		}
	}()
	return listener, nil
}

func (s *Server) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Error("Error stopping server: %s", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		log.Error("Server error: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apiError(err)
	if status == http.StatusInternalServerError {
		log.Errorf(r.Context(), "%s %s failed: %s", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ApiError{
		Code:    "BAD_REQUEST",
		Message: message,
		Type:    "BAD_REQUEST",
	})
}

// pagination reads page and size from the query, falling back to the defaults for missing or invalid values.
func pagination(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = PaginationDefaultPage
	}
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size < 1 {
		size = PaginationDefaultSize
	}
	return page, size
}

func paginate[T any](items []T, page int, size int) Page[T] {
	totalCount := len(items)
	startIndex := (page - 1) * size
	if startIndex >= totalCount {
		return Page[T]{
			Items:        []T{},
			PageMetadata: PageMetadata{Page: page, Size: size, Count: 0, TotalCount: totalCount},
		}
	}
	endIndex := min(startIndex+size, totalCount)
	pagedItems := items[startIndex:endIndex]
	return Page[T]{
		Items: pagedItems,
		PageMetadata: PageMetadata{
			Page:       page,
			Size:       size,
			Count:      len(pagedItems),
			TotalCount: totalCount,
		},
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
