package utils

import (
	"context"

	"github.com/gin-gonic/gin"
)

// CustomContext carries request-scoped identity used by the credential audit log.
type CustomContext struct {
	AppSource string
	Actor     string
}

type customContextKeyType struct{}

var customContextKey = customContextKeyType{}

const SystemActor = "system"

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey, customContext)
}

func WithCustomContextFromGinRequest(c *gin.Context, appSource string) context.Context {
	customContext := &CustomContext{
		AppSource: appSource,
		Actor:     c.GetString("Actor"),
	}
	return WithCustomContext(c.Request.Context(), customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

// GetActorFromContext returns the acting identity, defaulting to the system actor
// so scheduler-originated mutations are still attributable in the audit log.
func GetActorFromContext(ctx context.Context) string {
	actor := GetContext(ctx).Actor
	if actor == "" {
		return SystemActor
	}
	return actor
}
