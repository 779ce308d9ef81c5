// Package http exposes task control and the live event stream over HTTP.
package http

import (
	"net/http"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TabSetter records the tab the host says the user is on.
type TabSetter interface {
	SetActive(url string)
}

// EventSource hands out buffered event subscriptions.
type EventSource interface {
	SubscribeChan(buffer int) (<-chan entity.Event, func())
}

type Options struct {
	// RequestLogs enables httplog access logging.
	RequestLogs bool
	// EventBuffer sizes each websocket subscriber's queue.
	EventBuffer int
}

type Server struct {
	tasks  input.TaskController
	tabs   TabSetter
	events EventSource
	logger output.LoggerPort
	opts   Options
	router chi.Router
}

func NewServer(tasks input.TaskController, tabs TabSetter, events EventSource, logger output.LoggerPort, opts Options) *Server {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	s := &Server{
		tasks:  tasks,
		tabs:   tabs,
		events: events,
		logger: logger,
		opts:   opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	if s.opts.RequestLogs {
		r.Use(httplog.RequestLogger(httplog.NewLogger("browser-pilot", httplog.Options{Concise: true})))
	}
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/task", s.startTask)
		r.Get("/task", s.getTask)
		r.Post("/task/cancel", s.control(s.tasks.CancelTask))
		r.Post("/task/pause", s.control(s.tasks.PauseTask))
		r.Post("/task/resume", s.control(s.tasks.ResumeTask))
		r.Put("/tabs/active", s.setActiveTab)
		r.Get("/events", s.streamEvents)
	})
	return r
}
