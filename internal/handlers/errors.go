package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/utils"
)

// backendStatus maps a failed backend call to the status the gateway answers with.
// Client errors pass through; everything else is a bad gateway.
func backendStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	code := backend.StatusCode(err)
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusNotFound:
		return code
	case code >= 400 && code < 500:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// backendMessage prefers the backend's own text.
func backendMessage(err error, fallback string) string {
	if msg, ok := backend.ServerMessage(err); ok {
		return msg
	}
	return fallback
}

func respondBackendError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	utils.Error(c, backendStatus(err), backendMessage(err, fallback))
}
