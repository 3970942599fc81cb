// Package api provides the HTTP/JSON surface of the memory engine. Handlers
// are a thin translation layer: parse, authorize, delegate to services, map
// errors.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/database"
	"github.com/rajat1299/memoire/pkg/queue"
	"github.com/rajat1299/memoire/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	cfg        *config.Config
	dbClient   *database.Client
	auth       *services.Authorizer
	users      *services.UserService
	sessions   *services.SessionService
	ingestion  *services.IngestionService
	facts      *services.FactService
	recall     *services.RecallService
	workerPool *queue.WorkerPool
}

// NewServer wires the routes over the given services. workerPool may be nil
// (health reports no pool).
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	auth *services.Authorizer,
	users *services.UserService,
	sessions *services.SessionService,
	ingestion *services.IngestionService,
	facts *services.FactService,
	recallSvc *services.RecallService,
	workerPool *queue.WorkerPool,
) *Server {
	s := &Server{
		cfg:        cfg,
		dbClient:   dbClient,
		auth:       auth,
		users:      users,
		sessions:   sessions,
		ingestion:  ingestion,
		facts:      facts,
		recall:     recallSvc,
		workerPool: workerPool,
	}
	s.engine = s.setupRoutes()
	return s
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes registers middleware and all API routes.
func (s *Server) setupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics())

	if len(s.cfg.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, apiKeyHeader)
		router.Use(cors.New(corsCfg))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/users", s.createUserHandler)
		v1.POST("/users/:id/api-key/rotate", s.rotateAPIKeyHandler)
		v1.DELETE("/users/:id/api-key", s.revokeAPIKeyHandler)
		v1.POST("/users/:id/consolidate", s.consolidateHandler)

		v1.POST("/sessions", s.createSessionHandler)
		v1.POST("/ingest", s.ingestHandler)
		v1.GET("/history/:session_id", s.historyHandler)

		v1.POST("/recall", s.recallHandler)
		v1.GET("/conscious/:user_id", s.consciousHandler)

		v1.GET("/facts/:id", s.listFactsHandler)
		v1.DELETE("/facts/:id", s.deleteFactHandler)
		v1.GET("/facts/:id/source", s.factSourceHandler)
	}

	return router
}

// Start runs the HTTP server (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
