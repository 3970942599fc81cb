package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rajat1299/memoire/pkg/database"
	"github.com/rajat1299/memoire/pkg/queue"
	"github.com/rajat1299/memoire/pkg/version"
)

// healthResponse is the GET /health payload.
type healthResponse struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Database   database.HealthStatus   `json:"database"`
	WorkerPool *queue.PoolHealth       `json:"worker_pool,omitempty"`
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth := database.Health(ctx, s.dbClient.Pool())
	response := healthResponse{
		Status:   "healthy",
		Version:  version.Full(),
		Database: dbHealth,
	}
	if s.workerPool != nil {
		response.WorkerPool = s.workerPool.Health(ctx)
	}

	if !dbHealth.Reachable {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
