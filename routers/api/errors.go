package api

import (
	"errors"
	"net/http"

	"scriptslap-server/auth"
	"scriptslap-server/models"
	"scriptslap-server/service"
	"scriptslap-server/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

type insufficientCreditsResponse struct {
	Error            string `json:"error"`
	CreditsNeeded    int    `json:"creditsNeeded"`
	CreditsAvailable int    `json:"creditsAvailable"`
}

// handleServiceError maps service errors to status codes and aborts the request.
func handleServiceError(c *gin.Context, err error) {
	var (
		ve  *service.ValidationError
		ice *models.InsufficientCreditsError
		de  *service.DispatchError
	)

	switch {
	case errors.As(err, &ve):
		resp := ErrorResponse{Error: ve.Message}
		if len(ve.Fields) > 0 {
			resp.Details = ve.Fields
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
	case errors.As(err, &ice):
		c.AbortWithStatusJSON(http.StatusBadRequest, insufficientCreditsResponse{
			Error:            "Insufficient credits",
			CreditsNeeded:    ice.Needed,
			CreditsAvailable: ice.Available,
		})
	case errors.Is(err, auth.ErrTokenMissing):
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Missing authorization header"})
	case errors.Is(err, auth.ErrTokenExpired):
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Token expired"})
	case errors.Is(err, auth.ErrTokenInvalid):
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid token"})
	case errors.Is(err, service.ErrUserMismatch):
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "User ID mismatch"})
	case errors.Is(err, service.ErrCallbackForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "Forbidden"})
	case errors.Is(err, models.ErrProfileNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "User profile not found"})
	case errors.Is(err, models.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "Resource not found"})
	case errors.Is(err, service.ErrRequestInFlight),
		errors.Is(err, service.ErrIdempotencyInFlight),
		errors.Is(err, service.ErrRefinementClosed),
		errors.Is(err, service.ErrScriptNotComplete):
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: rootMessage(err)})
	case errors.Is(err, service.ErrMetadataUnavailable):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Script metadata is not available"})
	case errors.As(err, &de):
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: de.Message, Details: dispatchDetails(de)})
	default:
		zap.L().Error("unhandled service error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

// rootMessage returns the message of the sentinel a conflict error wraps.
func rootMessage(err error) string {
	for _, target := range []error{
		service.ErrRequestInFlight,
		service.ErrIdempotencyInFlight,
		service.ErrRefinementClosed,
		service.ErrScriptNotComplete,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

// dispatchDetails is the downstream body when the webhook answered, the
// transport error otherwise.
func dispatchDetails(de *service.DispatchError) string {
	var we *workflow.WebhookError
	if errors.As(de, &we) && we.Body != "" {
		return we.Body
	}
	return de.Err.Error()
}
