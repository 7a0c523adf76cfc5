package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/threatgate/threatgate/dto"
	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/enum"
	er "github.com/threatgate/threatgate/internal/errors"
	"github.com/threatgate/threatgate/internal/tracing"
)

// ListCredentials returns every configured source credential. Secrets never leave
// the vault; the model serializes without them.
func ListCredentials(vault interfaces.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		credentials, err := vault.ListAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"credentials": credentials})
	}
}

// GetCredential returns a single source credential
func GetCredential(vault interfaces.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, err := vault.Get(c.Request.Context(), c.Param("source"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if credential == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
			return
		}
		c.JSON(http.StatusOK, credential)
	}
}

// UpsertCredential creates or partially updates the credential for a source
func UpsertCredential(vault interfaces.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "UpsertCredential", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)
		source := c.Param("source")
		tracing.TagSource(span, source)

		var request dto.UpsertCredentialRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		fields := interfaces.CredentialFields{
			Username:        request.Username,
			Secret:          request.Secret,
			Endpoint:        request.Endpoint,
			Enabled:         request.Enabled,
			IntervalSeconds: request.IntervalSeconds,
			ExpiresAt:       request.ExpiresAt,
		}
		if request.Kind != nil {
			kind := enum.SourceKind(*request.Kind)
			fields.Kind = &kind
		}

		credential, err := vault.Upsert(ctx, source, fields)
		if err != nil {
			tracing.TraceErr(span, err)
			if er.IsConfiguration(err) || er.IsValidation(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, credential)
	}
}

// CredentialAudit returns the append-only change history for a source credential
func CredentialAudit(vault interfaces.VaultService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := paginationParams(c, 50)
		audits, err := vault.AuditTrail(c.Request.Context(), c.Param("source"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"audits": audits})
	}
}

func paginationParams(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit <= 0 || limit > 1000 {
		limit = defaultLimit
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
