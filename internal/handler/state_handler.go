package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/noah-isme/edupage-sync/internal/middleware"
	"github.com/noah-isme/edupage-sync/internal/service"
	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
	"github.com/noah-isme/edupage-sync/pkg/response"
)

type stateReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Connected(ctx context.Context) bool
}

// StateHandler serves persisted snapshot values and rendered widgets.
type StateHandler struct {
	state stateReader
	known map[string]struct{}
}

// NewStateHandler constructs the handler.
func NewStateHandler(state stateReader) *StateHandler {
	known := make(map[string]struct{}, len(service.StateKeys))
	for _, key := range service.StateKeys {
		known[key] = struct{}{}
	}
	return &StateHandler{state: state, known: known}
}

type stateEntry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Get godoc
// @Summary Read one persisted state value
// @Tags State
// @Produce json
// @Param key path string true "State key, e.g. data.homework_json"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /api/v1/state/{key} [get]
func (h *StateHandler) Get(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if _, ok := h.known[key]; !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown state key"))
		return
	}
	raw, ok := h.read(c, key)
	if !ok {
		return
	}
	entry := stateEntry{Key: key, Value: string(raw)}
	if strings.HasSuffix(key, "_json") && json.Valid(raw) {
		entry.Value = json.RawMessage(raw)
	}
	middleware.SetConnected(c, h.state.Connected(c.Request.Context()))
	response.JSON(c, http.StatusOK, entry, middleware.ExtractMeta(c))
}

// Widget godoc
// @Summary Rendered HTML widget fragment
// @Tags State
// @Produce html
// @Param name path string true "homework, timetable_today, timetable_next, notifications or menu_week"
// @Success 200 {string} string
// @Router /widgets/{name} [get]
func (h *StateHandler) Widget(c *gin.Context) {
	key, ok := service.WidgetKeys[c.Param("name")]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown widget"))
		return
	}
	raw, ok := h.read(c, key)
	if !ok {
		return
	}
	response.HTML(c, raw)
}

func (h *StateHandler) read(c *gin.Context, key string) ([]byte, bool) {
	raw, err := h.state.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, appErrors.ErrStateMiss) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no value synced yet"))
			return nil, false
		}
		response.Error(c, err)
		return nil, false
	}
	return raw, true
}
