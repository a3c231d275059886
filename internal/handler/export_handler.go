package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupage-sync/internal/service"
	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
	"github.com/noah-isme/edupage-sync/pkg/response"
)

type homeworkExporter interface {
	Homework(ctx context.Context, format string) (*service.ExportResult, error)
}

// ExportHandler serves downloadable homework reports.
type ExportHandler struct {
	service homeworkExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(service homeworkExporter) *ExportHandler {
	return &ExportHandler{service: service}
}

// Homework godoc
// @Summary Download the synced homework list
// @Tags Export
// @Produce text/csv,application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /api/v1/export/homework [get]
func (h *ExportHandler) Homework(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	result, err := h.service.Homework(c.Request.Context(), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Payload)
}
