package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/export"
)

// Timetable owners.
const (
	TimetableTeacher = "teacher"
	TimetableCourse  = "course"
)

type timetableSource interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleDetail, error)
}

// TimetableExportRequest selects whose weekly timetable to export and in which format.
type TimetableExportRequest struct {
	Owner  string `form:"owner" validate:"required,oneof=teacher course"`
	ID     string `form:"id" validate:"required"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf CSV PDF"`
}

// TimetableExport is a rendered timetable ready to stream.
type TimetableExport struct {
	Filename    string
	ContentType string
	Format      export.Format
	Rows        int
	render      func(w io.Writer) error
}

// WriteTo streams the rendered document.
func (e *TimetableExport) WriteTo(w io.Writer) error {
	return e.render(w)
}

// ExportService renders weekly timetables.
type ExportService struct {
	schedules timetableSource
	audit     *AuditService
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(schedules timetableSource, audit *AuditService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{schedules: schedules, audit: audit, logger: logger, now: time.Now}
}

// Timetable loads the owner's active slots ordered by day and start time and prepares the document.
func (s *ExportService) Timetable(ctx context.Context, req TimetableExportRequest) (*TimetableExport, error) {
	req.Owner = strings.ToLower(strings.TrimSpace(req.Owner))
	if req.Owner == "" || strings.TrimSpace(req.ID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner and id are required")
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	var (
		slots []models.ScheduleDetail
		title string
	)
	switch req.Owner {
	case TimetableTeacher:
		slots, err = s.schedules.ListByTeacher(ctx, req.ID)
		title = "Teacher timetable"
	case TimetableCourse:
		slots, err = s.schedules.ListByCourse(ctx, req.ID)
		title = "Course timetable"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner must be teacher or course")
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].DayOfWeek != slots[j].DayOfWeek {
			return slots[i].DayOfWeek < slots[j].DayOfWeek
		}
		return slots[i].StartTime < slots[j].StartTime
	})
	table := timetableTable(title, slots, req.Owner)
	generatedAt := s.now()

	out := &TimetableExport{
		Filename:    fmt.Sprintf("timetable_%s_%s_%s.%s", req.Owner, sanitizeFilename(req.ID), generatedAt.UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Format:      format,
		Rows:        len(slots),
	}
	if format == export.FormatPDF {
		out.render = func(w io.Writer) error { return export.WritePDF(w, table, generatedAt) }
	} else {
		out.render = func(w io.Writer) error { return export.WriteCSV(w, table) }
	}

	s.audit.Record(ctx, models.AuditActionExport, resourceSchedule, req.ID, map[string]interface{}{
		"owner":  req.Owner,
		"format": format,
		"rows":   len(slots),
	})
	s.logger.Debug("timetable export prepared", zap.String("owner", req.Owner), zap.String("id", req.ID), zap.Int("rows", len(slots)))
	return out, nil
}

func timetableTable(title string, slots []models.ScheduleDetail, owner string) export.Table {
	columns := []export.Column{
		{Key: "day", Title: "Day"},
		{Key: "start", Title: "Start", Weight: 0.7},
		{Key: "end", Title: "End", Weight: 0.7},
		{Key: "subject", Title: "Subject", Weight: 1.6},
	}
	if owner == TimetableTeacher {
		columns = append(columns, export.Column{Key: "course", Title: "Course", Weight: 1.2})
	} else {
		columns = append(columns, export.Column{Key: "teacher", Title: "Teacher", Weight: 1.6})
	}
	columns = append(columns, export.Column{Key: "room", Title: "Room", Weight: 0.8})

	rows := make([]map[string]string, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, map[string]string{
			"day":     slot.DayName(),
			"start":   slot.StartTime.String(),
			"end":     slot.EndTime.String(),
			"subject": slot.SubjectName,
			"course":  slot.CourseName,
			"teacher": slot.TeacherName,
			"room":    slot.Room,
		})
	}
	return export.Table{Title: title, Columns: columns, Rows: rows}
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(strings.TrimSpace(raw))
	if result == "" {
		return "na"
	}
	if len(result) > 64 {
		return result[:64]
	}
	return result
}
