// Package server exposes the CRM over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/admitdesk/admitdesk/pkg/config"
	"github.com/admitdesk/admitdesk/pkg/crm/students"
	"github.com/admitdesk/admitdesk/pkg/crm/team"
	"github.com/admitdesk/admitdesk/pkg/observability/logger"
	"github.com/admitdesk/admitdesk/pkg/observability/metrics"
	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators.
type Options struct {
	Config   *config.Config
	Students *students.Service
	Team     *team.Service
	Health   HealthChecker
	Logger   logger.Logger
	Metrics  *metrics.Registry
}

// Server is the HTTP front of the CRM.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	cfg    *config.Config
	log    logger.Logger

	students *students.Service
	team     *team.Service
	health   HealthChecker
}

// New builds the router with all middleware and routes registered.
func New(opts Options) *Server {
	if opts.Config.Service.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(Logging(opts.Logger))
	if opts.Metrics != nil {
		engine.Use(Metrics(opts.Metrics))
	}
	if opts.Config.RateLimit.Enabled {
		engine.Use(RateLimit(NewTokenBucketLimiter(opts.Config.RateLimit.RPS, opts.Config.RateLimit.Burst)))
	}

	s := &Server{
		engine:   engine,
		cfg:      opts.Config,
		log:      opts.Logger,
		students: opts.Students,
		team:     opts.Team,
		health:   opts.Health,
	}
	s.routes(opts.Metrics)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Config.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: opts.Config.HTTP.WriteTimeout,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}
	return s
}

func (s *Server) routes(reg *metrics.Registry) {
	s.engine.GET("/healthz", s.handleHealthz)
	if reg != nil {
		s.engine.GET("/metrics", gin.WrapH(reg.Handler()))
	}

	v1 := s.engine.Group("/api/v1")

	st := v1.Group("/students")
	st.GET("", s.handleListStudents)
	st.GET("/stats", s.handleStudentStats)
	st.POST("", s.handleCreateStudent)
	st.GET("/:id", s.handleGetStudent)
	st.PATCH("/:id", s.handleUpdateStudent)
	st.DELETE("/:id", s.handleDeleteStudent)

	st.GET("/:id/notes", s.handleListNotes)
	st.POST("/:id/notes", s.handleAddNote)
	st.PATCH("/:id/notes/:noteId", s.handleUpdateNote)
	st.DELETE("/:id/notes/:noteId", s.handleDeleteNote)

	st.GET("/:id/communications", s.handleListCommunications)
	st.POST("/:id/communications", s.handleAddCommunication)
	st.PATCH("/:id/communications/:commId", s.handleUpdateCommunication)
	st.DELETE("/:id/communications/:commId", s.handleDeleteCommunication)

	st.GET("/:id/interactions", s.handleListInteractions)
	st.POST("/:id/interactions", s.handleAddInteraction)

	tm := v1.Group("/team/members")
	tm.GET("", s.handleListMembers)
	tm.POST("", s.handleCreateMember)
	tm.GET("/:id", s.handleGetMember)
	tm.PATCH("/:id", s.handleUpdateMember)
	tm.DELETE("/:id", s.handleDeleteMember)

	tk := v1.Group("/tasks")
	tk.GET("", s.handleListTasks)
	tk.GET("/stats", s.handleTaskStats)
	tk.POST("", s.handleCreateTask)
	tk.GET("/:id", s.handleGetTask)
	tk.PATCH("/:id", s.handleUpdateTask)
	tk.DELETE("/:id", s.handleDeleteTask)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then drains within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	s.log.Info("http server draining")
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if s.health != nil {
		if err := s.health.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
