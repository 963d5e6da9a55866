package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbras/feedpulse/pkg/storage"
)

// mapError maps a domain-layer error to an HTTP status and body, writing the
// request's correlation_id into every error response per §7.
func mapError(c *gin.Context, correlationID string, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		status := http.StatusBadRequest
		if ve.Code == "UNSUPPORTED_TIME_WINDOW" {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, errorResponse{Error: ve.Message, Code: ve.Code, CorrelationID: correlationID})
		return
	}

	var sve *storage.ValidationError
	if errors.As(err, &sve) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: sve.Error(), Code: "VALIDATION_ERROR", CorrelationID: correlationID})
		return
	}

	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "resource not found", Code: "NOT_FOUND", CorrelationID: correlationID})
		return
	}

	slog.Error("unexpected request error", "correlation_id", correlationID, "error", err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "INTERNAL_ERROR", CorrelationID: correlationID})
}
