package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
	"github.com/noah-isme/edupage-sync/pkg/response"
)

type connectionReader interface {
	Connected(ctx context.Context) bool
}

// HealthHandler answers liveness and readiness probes.
type HealthHandler struct {
	state connectionReader
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(state connectionReader) *HealthHandler {
	return &HealthHandler{state: state}
}

// Live godoc
// @Summary Liveness probe
// @Tags Health
// @Success 200 {object} response.Envelope
// @Router /health [get]
func (h *HealthHandler) Live(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary Readiness probe, healthy only while the portal session is up
// @Tags Health
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.state == nil || !h.state.Connected(c.Request.Context()) {
		response.Error(c, appErrors.ErrNotConnected)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "ready"})
}
