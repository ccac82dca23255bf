package handlers

import (
	"errors"
	"net/http"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/storage"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/units"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, units.ErrValidation),
		errors.Is(err, units.ErrInvalidConversion):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status it maps to. Server errors are
// logged and their detail is not returned.
func respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
