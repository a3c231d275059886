package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/noah-isme/edupage-sync/internal/models"
	"github.com/noah-isme/edupage-sync/internal/widget"
	"github.com/noah-isme/edupage-sync/pkg/export"
	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var homeworkHeaders = []string{"Status", "Subject", "Title", "Due", "Assigned", "Teacher", "Description"}

type stateReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered export document.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders the last persisted homework snapshot as CSV or PDF.
type ExportService struct {
	state  stateReader
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewExportService constructs an ExportService. loc is the school's zone, the
// same one the sync cycle renders widgets in.
func NewExportService(state stateReader, loc *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{state: state, csv: csv, pdf: pdf, logger: logger, loc: loc, now: time.Now}
}

// Homework renders the persisted homework list in the requested format.
func (s *ExportService) Homework(ctx context.Context, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}

	raw, err := s.state.Get(ctx, KeyHomeworkJSON)
	if err != nil {
		if errors.Is(err, appErrors.ErrStateMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no homework snapshot yet")
		}
		return nil, err
	}
	var items []models.Assignment
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode homework snapshot")
	}

	now := s.now().In(s.loc)
	dataset := BuildHomeworkDataset(items, now)
	var payload []byte
	result := &ExportResult{Filename: fmt.Sprintf("homework_%s.%s", now.Format("20060102_1504"), format)}
	switch format {
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Homework")
		result.ContentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		result.ContentType = "text/csv"
	}
	if err != nil {
		s.logger.Error("render homework export failed", zap.String("format", format), zap.Error(err))
		return nil, err
	}
	result.Payload = payload
	return result, nil
}

var homeworkColumnWidths = []float64{1, 1.5, 2.5, 1, 1, 1.5, 3.5}

// BuildHomeworkDataset lays out assignments in board order: upcoming, overdue,
// then every completed item. Unlike the widget, completed items are not capped.
// Dates are split and printed in now's location.
func BuildHomeworkDataset(items []models.Assignment, now time.Time) export.Dataset {
	loc := now.Location()
	p := widget.PartitionAssignments(items, now)
	dataset := export.Dataset{Headers: homeworkHeaders, Widths: homeworkColumnWidths}
	appendRows := func(status string, items []models.Assignment) {
		for _, item := range items {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Status":      status,
				"Subject":     deref(item.Subject),
				"Title":       deref(item.Title),
				"Due":         formatOptionalDay(item.DueDate, loc),
				"Assigned":    formatOptionalDay(item.AssignedDate, loc),
				"Teacher":     deref(item.TeacherName),
				"Description": deref(item.Description),
			})
		}
	}
	appendRows("upcoming", p.Upcoming)
	appendRows("overdue", p.Overdue)
	var done []models.Assignment
	for _, item := range items {
		if item.Done {
			done = append(done, item)
		}
	}
	appendRows("done", done)
	return dataset
}

func formatOptionalDay(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return formatDay(t.In(loc))
}
