package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbras/feedpulse/pkg/storage"
	"github.com/mbras/feedpulse/pkg/version"
)

// Health implements GET /health: a liveness probe that never touches
// dependencies.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Full()})
}

// Ready implements GET /ready: a readiness probe that confirms the storage
// pool can still serve a connection.
func Ready(store *storage.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Pool().Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
