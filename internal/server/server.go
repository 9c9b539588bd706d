// Package server is the composition root: it constructs the agents, the
// store, the archiver and the pipeline exactly once at startup and wires
// them into the HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/agents"
	"github.com/ujpm/Microsmart-PF/internal/archive"
	"github.com/ujpm/Microsmart-PF/internal/config"
	"github.com/ujpm/Microsmart-PF/internal/handler"
	"github.com/ujpm/Microsmart-PF/internal/repository"
	"github.com/ujpm/Microsmart-PF/internal/service"
	"github.com/ujpm/Microsmart-PF/internal/staging"
)

type Server struct {
	httpServer *http.Server
	archiver   *archive.Archiver
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// A missing or unreachable store disables archival and search but never
	// fails startup.
	var store repository.CaseStore
	if cfg.Store.Enabled() {
		remote, err := repository.NewRemoteStore(&cfg.Store, log)
		if err != nil {
			log.Warn("Remote store unavailable, archival and search disabled", zap.Error(err))
		} else {
			store = remote
		}
	} else {
		log.Info("Remote store not configured, archival and search disabled")
	}

	stager := staging.New(cfg.App.StagingDir, log)

	var archiver *archive.Archiver
	if store != nil {
		archiver = archive.New(store, stager, cfg.App.ArchiveWorkers, log)
	}

	detector, reporter := buildAgents(cfg, log)
	if detector == nil || reporter == nil {
		log.Warn("AI agents not fully configured, /analyze will answer 503")
	}

	svc := service.NewDiagnostics(detector, reporter, stager, archiver, store, log)
	h := handler.New(svc, cfg.App.MaxUploadSize, log)

	router.GET("/", h.HealthCheck)
	router.POST("/analyze", h.Analyze)
	router.POST("/search", h.Search)

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:        router,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		archiver: archiver,
		cfg:      cfg,
		log:      log,
	}

	log.Info("Server created",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Bool("memory", store != nil),
		zap.Bool("demo_mode", cfg.App.DemoMode))

	return server, nil
}

// buildAgents selects the analyzer strategy once at construction: simulated
// agents in demo mode, HTTP clients when endpoints are configured, nil
// otherwise (not ready).
func buildAgents(cfg *config.Config, log *zap.Logger) (agents.Detector, agents.Reporter) {
	if cfg.App.DemoMode {
		return agents.NewSimulatedDetector(), agents.NewSimulatedReporter()
	}

	var detector agents.Detector
	if cfg.Vision.Endpoint != "" {
		detector = agents.NewVisionClient(cfg.Vision, log)
	}

	var reporter agents.Reporter
	if cfg.Brain.Endpoint != "" {
		reporter = agents.NewBrainClient(cfg.Brain, log)
	}

	return detector, reporter
}

func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP listener, then drains in-flight archive tasks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	err := s.httpServer.Shutdown(ctx)

	if s.archiver != nil {
		s.archiver.Close()
	}

	return err
}
