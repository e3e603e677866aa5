package api

import (
	"errors"
	"net/http"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/executor"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/tasks"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// writeError maps an error from the session or task client to a response.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated), auth.IsRefreshFailure(err):
		abortWithError(c, http.StatusUnauthorized, "authentication_error", "Not logged in")
	case errors.Is(err, tasks.ErrEmptyText):
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	case errors.Is(err, tasks.ErrNoTask):
		abortWithError(c, http.StatusNotFound, "not_found_error", err.Error())
	case executor.IsTransportError(err):
		log.Warnf("Upstream unreachable: %v", err)
		abortWithError(c, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		if statusErr, ok := executor.AsStatusError(err); ok {
			message := gjson.GetBytes(statusErr.Body, "detail").String()
			if message == "" {
				message = http.StatusText(statusErr.StatusCode)
			}
			abortWithError(c, statusErr.StatusCode, "upstream_error", message)
			return
		}
		log.Errorf("Request failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
}
