package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/edupage-sync/internal/models"
	"github.com/noah-isme/edupage-sync/internal/upstream"
	"github.com/noah-isme/edupage-sync/pkg/config"
)

type teacherRosterSource interface {
	Teachers(ctx context.Context) ([]upstream.RawTeacher, error)
}

// TeacherAggregator derives the teacher list from exactly one source per
// cycle: the explicit roster or a scan of timetable and homework records.
type TeacherAggregator struct {
	strategy string
	tag      language.Tag
	logger   *zap.Logger
}

// NewTeacherAggregator constructs an aggregator. Unknown strategies fall back to auto.
func NewTeacherAggregator(strategy string, tag language.Tag, logger *zap.Logger) *TeacherAggregator {
	switch strategy {
	case config.TeacherSourceRoster, config.TeacherSourceScan:
	default:
		strategy = config.TeacherSourceAuto
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherAggregator{strategy: strategy, tag: tag, logger: logger}
}

// Aggregate returns the sorted teacher list and the source that produced it.
func (a *TeacherAggregator) Aggregate(ctx context.Context, source teacherRosterSource, lessons []models.LessonSlot, assignments []models.Assignment) ([]models.Teacher, string, error) {
	if a.strategy == config.TeacherSourceScan {
		return TeachersFromRecords(lessons, assignments, a.tag), config.TeacherSourceScan, nil
	}

	raw, err := source.Teachers(ctx)
	if err != nil {
		if a.strategy == config.TeacherSourceRoster {
			return nil, config.TeacherSourceRoster, fmt.Errorf("load teacher roster: %w", err)
		}
		a.logger.Debug("teacher roster unavailable, scanning records", zap.Error(err))
		return TeachersFromRecords(lessons, assignments, a.tag), config.TeacherSourceScan, nil
	}
	teachers := TeachersFromRoster(raw, a.tag)
	if len(teachers) == 0 && a.strategy == config.TeacherSourceAuto {
		return TeachersFromRecords(lessons, assignments, a.tag), config.TeacherSourceScan, nil
	}
	return teachers, config.TeacherSourceRoster, nil
}

// TeachersFromRoster converts the explicit roster, dropping entries without a
// derivable name.
func TeachersFromRoster(raw []upstream.RawTeacher, tag language.Tag) []models.Teacher {
	teachers := make([]models.Teacher, 0, len(raw))
	for _, item := range raw {
		name, ok := deriveName(item.RawRef)
		if !ok {
			continue
		}
		teachers = append(teachers, models.Teacher{
			ID:          upstream.FirstString(item.ID),
			DisplayName: name,
			ShortCode:   upstream.FirstString(item.Short),
			Subjects:    []string{},
		})
	}
	sortTeachers(teachers, tag)
	return teachers
}

// TeachersFromRecords reconstructs teachers from lesson slots, deduplicated by
// id, with the subjects each one teaches. Homework teachers are matched by
// name and only added when no lesson mentions them.
func TeachersFromRecords(lessons []models.LessonSlot, assignments []models.Assignment, tag language.Tag) []models.Teacher {
	type entry struct {
		teacher  models.Teacher
		subjects map[string]struct{}
	}
	entries := make(map[string]*entry)
	byName := make(map[string]string)
	order := make([]string, 0)

	add := func(key, id, name, subject string) {
		e, ok := entries[key]
		if !ok {
			e = &entry{teacher: models.Teacher{DisplayName: name}, subjects: make(map[string]struct{})}
			lower := strings.ToLower(name)
			if id != "" {
				idCopy := id
				e.teacher.ID = &idCopy
			}
			prev, seen := byName[lower]
			switch {
			case seen && id != "" && strings.HasPrefix(prev, "name:"):
				// The same teacher was first seen without an id; fold it in.
				for subject := range entries[prev].subjects {
					e.subjects[subject] = struct{}{}
				}
				delete(entries, prev)
				for i := range order {
					if order[i] == prev {
						order[i] = key
					}
				}
				byName[lower] = key
			case !seen:
				order = append(order, key)
				byName[lower] = key
			default:
				order = append(order, key)
			}
			entries[key] = e
		}
		if subject != "" {
			e.subjects[subject] = struct{}{}
		}
	}

	for _, lesson := range lessons {
		for i, name := range lesson.TeacherNames {
			id := ""
			if i < len(lesson.TeacherIDs) {
				id = lesson.TeacherIDs[i]
			}
			if id == "" && name == UnknownName {
				continue
			}
			key := "id:" + id
			if id == "" {
				var ok bool
				if key, ok = byName[strings.ToLower(name)]; !ok {
					key = "name:" + strings.ToLower(name)
				}
			}
			add(key, id, name, lesson.Subject)
		}
	}
	for _, item := range assignments {
		if item.TeacherName == nil || *item.TeacherName == UnknownName {
			continue
		}
		name := *item.TeacherName
		key, ok := byName[strings.ToLower(name)]
		if !ok {
			key = "name:" + strings.ToLower(name)
		}
		add(key, "", name, deref(item.Subject))
	}

	col := collate.New(tag)
	teachers := make([]models.Teacher, 0, len(order))
	for _, key := range order {
		e := entries[key]
		subjects := make([]string, 0, len(e.subjects))
		for subject := range e.subjects {
			subjects = append(subjects, subject)
		}
		col.SortStrings(subjects)
		e.teacher.Subjects = subjects
		teachers = append(teachers, e.teacher)
	}
	sortTeachers(teachers, tag)
	return teachers
}

func sortTeachers(teachers []models.Teacher, tag language.Tag) {
	col := collate.New(tag)
	sort.SliceStable(teachers, func(i, j int) bool {
		return col.CompareString(teachers[i].DisplayName, teachers[j].DisplayName) < 0
	})
}

var defaultCollation = language.Und
