package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/threatgate/threatgate/interfaces"
)

// FirewallExport serves the firewall-consumable block list, paginated and stably
// ordered so consumers can walk pages without duplicates or gaps.
func FirewallExport(export interfaces.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "0"))

		feed, err := export.FirewallFeed(c.Request.Context(), page, perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, feed)
	}
}
