package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/utils"
)

// Stats aggregates the reputation store: per-source and per-country counts plus the
// active/inactive split as of now.
func Stats(reputation interfaces.ReputationRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		bySource, err := reputation.CountBySource(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		byCountry, err := reputation.CountByCountry(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		active, inactive, err := reputation.CountByActivity(ctx, utils.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"bySource":  bySource,
			"byCountry": byCountry,
			"active":    active,
			"inactive":  inactive,
		})
	}
}
