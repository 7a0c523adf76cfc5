package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/threatgate/threatgate/internal/utils"
)

// ActorHeader identifies the operator behind a request; the credential audit log
// records it. Requests without it are attributed to the system actor.
const ActorHeader = "X-Actor"

// CustomContextMiddleware adds custom context to all requests
func CustomContextMiddleware(appSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("Actor", c.GetHeader(ActorHeader))
		ctx := utils.WithCustomContextFromGinRequest(c, appSource)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
