package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threatgate/threatgate/interfaces"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status returns the current collection state of every source
func Status(scheduler interfaces.SchedulerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := scheduler.Status(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sources": statuses})
	}
}
