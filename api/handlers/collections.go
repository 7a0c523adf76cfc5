package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/threatgate/threatgate/interfaces"
	er "github.com/threatgate/threatgate/internal/errors"
	"github.com/threatgate/threatgate/internal/tracing"
)

// TriggerCollection starts a collection run for one source immediately. A source
// with a run already in flight answers 409 without queueing.
func TriggerCollection(scheduler interfaces.SchedulerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "TriggerCollection", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)
		source := c.Param("source")
		tracing.TagSource(span, source)

		runID, err := scheduler.Trigger(ctx, source)
		if err != nil {
			tracing.TraceErr(span, err)
			switch {
			case errors.Is(err, er.ErrRunInProgress):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, er.ErrCredentialNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"runId": runID, "source": source})
	}
}

// CollectionStatus reports every source's scheduling state
func CollectionStatus(scheduler interfaces.SchedulerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := scheduler.Status(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sources": statuses})
	}
}

// ListCollectionRuns returns the run history for one source, newest first
func ListCollectionRuns(runs interfaces.CollectionRunRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paginationParams(c, 50)
		history, total, err := runs.List(c.Request.Context(), c.Param("source"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": history, "total": total})
	}
}
