package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threatgate/threatgate/dto"
	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
	"github.com/threatgate/threatgate/internal/utils"
	"github.com/threatgate/threatgate/services/events"
)

// ListAllowlist returns the allow-list page by page
func ListAllowlist(allowlist interfaces.AllowlistRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paginationParams(c, 100)
		entries, total, err := allowlist.List(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
	}
}

// AddAllowlistEntry adds one IP to the allow-list. The entry overrides every
// reputation signal for that IP from the moment the write lands.
func AddAllowlistEntry(
	allowlist interfaces.AllowlistRepository,
	decision interfaces.DecisionService,
	publisher interfaces.EventPublisher,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "AddAllowlistEntry", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.AddAllowlistRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tracing.TagIP(span, request.IP)

		existing, err := allowlist.GetByIP(ctx, request.IP)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "allowlist entry already exists", "id": existing.ID})
			return
		}

		entry := &models.AllowlistEntry{
			IP:     request.IP,
			Reason: request.Reason,
			Origin: enum.AllowlistManual,
		}
		if err := allowlist.Save(ctx, entry); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		decision.Invalidate(ctx)
		publishListChanged(ctx, publisher)

		c.JSON(http.StatusCreated, entry)
	}
}

// RemoveAllowlistEntry removes one IP from the allow-list
func RemoveAllowlistEntry(
	allowlist interfaces.AllowlistRepository,
	decision interfaces.DecisionService,
	publisher interfaces.EventPublisher,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "RemoveAllowlistEntry", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)
		ip := c.Param("ip")
		tracing.TagIP(span, ip)

		existing, err := allowlist.GetByIP(ctx, ip)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "allowlist entry not found"})
			return
		}

		if err := allowlist.DeleteByIP(ctx, ip); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		decision.Invalidate(ctx)
		publishListChanged(ctx, publisher)

		c.JSON(http.StatusOK, gin.H{"status": "removed", "ip": ip})
	}
}

func publishListChanged(ctx context.Context, publisher interfaces.EventPublisher) {
	if publisher == nil {
		return
	}
	// Best effort, the decision path never depends on the bus
	_ = publisher.PublishEvent(ctx, events.RoutingKeyListChanged, dto.ListChanged{
		List:      "allowlist",
		ChangedAt: utils.Now(),
	})
}
