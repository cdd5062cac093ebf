package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/service"
)

// statusFor maps domain error kinds to transport codes. Not-found folds
// into 422 like the rest of the unprocessable-entity family; the clients
// have always been written against that.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAccessDenied:
		return http.StatusForbidden
	case service.KindDuplicateName:
		return http.StatusConflict
	case service.KindNotFound, service.KindUnknownUser, service.KindNotGroupChat:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a domain error as a field-scoped body, or logs and
// hides anything unexpected. Store driver details never reach the wire.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var de *service.DomainError
	if errors.As(err, &de) {
		c.JSON(statusFor(de.Kind), gin.H{"errors": gin.H{de.Field: de.Message}})
		return
	}

	logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// fieldRequired is the boundary-level missing-input error, same body
// shape the services produce for domain rules.
func fieldRequired(c *gin.Context, field string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"errors": gin.H{field: "This field is required"},
	})
}
