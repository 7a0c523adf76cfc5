package handlers

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threatgate/threatgate/interfaces"
)

// Decide answers whether one IP is currently blocked
func Decide(decision interfaces.DecisionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.Param("ip")
		if net.ParseIP(ip) == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ip address"})
			return
		}

		result, err := decision.Decide(c.Request.Context(), ip)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
