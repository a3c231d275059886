package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/edupage-sync/internal/models"
	"github.com/noah-isme/edupage-sync/internal/upstream"
)

// UnknownName is shown when no name field can be derived.
const UnknownName = "Unknown"

// DeriveDisplayName builds a person's name from whichever naming convention
// the record uses: the combined name, then firstname/lastname, then
// firstName/lastName.
func DeriveDisplayName(ref upstream.RawRef) string {
	if name, ok := deriveName(ref); ok {
		return name
	}
	return UnknownName
}

func deriveName(ref upstream.RawRef) (string, bool) {
	if ref.Name.Populated() {
		return strings.TrimSpace(ref.Name.Value), true
	}
	if name := joinName(ref.Firstname, ref.Lastname); name != "" {
		return name, true
	}
	if name := joinName(ref.FirstName, ref.LastName); name != "" {
		return name, true
	}
	return "", false
}

func joinName(first, last upstream.FlexString) string {
	parts := make([]string, 0, 2)
	for _, part := range []upstream.FlexString{first, last} {
		if part.Populated() {
			parts = append(parts, strings.TrimSpace(part.Value))
		}
	}
	return strings.Join(parts, " ")
}

// StudentsFromRaw converts the raw roster into students with derived names.
func StudentsFromRaw(raw []upstream.RawStudent) []models.Student {
	students := make([]models.Student, 0, len(raw))
	for _, item := range raw {
		students = append(students, models.Student{
			ID:          strings.TrimSpace(item.ID.Value),
			DisplayName: DeriveDisplayName(item.RawRef),
			Raw:         item.Raw,
		})
	}
	return students
}

// ResolveStudent picks the active student for the roster. An exact
// case-insensitive name match wins over a substring match in either
// direction. The boolean is false when a non-blank filter matched nobody and
// the default selection was used instead.
func ResolveStudent(roster []models.Student, filter string) (models.StudentSelection, bool) {
	needle := strings.ToLower(strings.TrimSpace(filter))
	if needle == "" {
		return defaultSelection(roster), true
	}
	for _, student := range roster {
		if strings.ToLower(strings.TrimSpace(student.DisplayName)) == needle {
			return selectStudent(student), true
		}
	}
	for _, student := range roster {
		name := strings.ToLower(strings.TrimSpace(student.DisplayName))
		if name == "" {
			continue
		}
		if strings.Contains(needle, name) || strings.Contains(name, needle) {
			return selectStudent(student), true
		}
	}
	return defaultSelection(roster), false
}

func defaultSelection(roster []models.Student) models.StudentSelection {
	if len(roster) == 0 {
		return models.StudentSelection{}
	}
	return selectStudent(roster[0])
}

func selectStudent(student models.Student) models.StudentSelection {
	return models.StudentSelection{Student: &models.ActiveStudent{ID: student.ID, DisplayName: student.DisplayName}}
}

type rosterSource interface {
	Students(ctx context.Context) ([]upstream.RawStudent, error)
}

// StudentResolver caches the student selection for the lifetime of a session.
type StudentResolver struct {
	filter string
	logger *zap.Logger

	mu       sync.Mutex
	resolved bool
	current  models.StudentSelection
}

// NewStudentResolver constructs a resolver for the configured name filter.
func NewStudentResolver(filter string, logger *zap.Logger) *StudentResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentResolver{filter: filter, logger: logger}
}

// Resolve returns the cached selection, loading the roster on first use. A
// roster failure yields account mode without caching so the next cycle retries.
func (r *StudentResolver) Resolve(ctx context.Context, source rosterSource) models.StudentSelection {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return r.current
	}

	raw, err := source.Students(ctx)
	if err != nil {
		r.logger.Warn("load student roster failed, using account data", zap.Error(err))
		return models.StudentSelection{}
	}
	roster := StudentsFromRaw(raw)
	selection, matched := ResolveStudent(roster, r.filter)
	if !matched {
		r.logger.Warn("student filter matched nobody, using default selection",
			zap.String("filter", r.filter), zap.Int("roster_size", len(roster)))
	}
	if selection.Student != nil {
		r.logger.Info("active student selected",
			zap.String("student_id", selection.Student.ID),
			zap.String("student_name", selection.Student.DisplayName))
	} else {
		r.logger.Info("no students on account, using account data")
	}
	r.current = selection
	r.resolved = true
	return selection
}

// Current returns the cached selection and whether one has been resolved.
func (r *StudentResolver) Current() (models.StudentSelection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.resolved
}

// Reset forgets the cached selection; the next Resolve reloads the roster.
func (r *StudentResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = false
	r.current = models.StudentSelection{}
}
