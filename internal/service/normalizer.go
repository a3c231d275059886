package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/edupage-sync/internal/models"
	"github.com/noah-isme/edupage-sync/internal/upstream"
)

// NormalizeHomework maps a raw homework record into an Assignment. Dates
// without a zone are read as wall-clock dates in loc.
func NormalizeHomework(raw upstream.RawHomework, loc *time.Location) models.Assignment {
	item := models.Assignment{
		Title:        upstream.FirstString(raw.Title, raw.Name),
		Description:  upstream.FirstString(raw.Details, raw.Description, raw.Text),
		DueDate:      upstream.FirstTime(loc, raw.DueDate, raw.ToDate, raw.Deadline),
		AssignedDate: upstream.FirstTime(loc, raw.AssignedDate, raw.FromDate, raw.Created, raw.DateCreated),
		Done:         upstream.FirstBool(false, raw.IsDone, raw.Done, raw.Finished),
		Subject:      refLabel(raw.Subject),
		TeacherName:  personName(raw.Teacher, raw.Owner),
	}
	if id := upstream.FirstString(raw.HomeworkID, raw.HWID, raw.ID); id != nil {
		item.ID = *id
	}
	ids, scoped := upstream.StudentAssociation(raw.Students, raw.StudentIDs)
	item.Audience = models.Audience{Scoped: scoped, StudentIDs: ids}
	return item
}

// NormalizeAnnouncement maps a raw timeline record into an Announcement.
func NormalizeAnnouncement(raw upstream.RawTimelineItem, loc *time.Location) models.Announcement {
	item := models.Announcement{
		Kind:       upstream.FirstString(raw.Type, raw.Typ, raw.Kind),
		Text:       upstream.FirstString(raw.Text, raw.Body, raw.Message),
		OccurredAt: upstream.FirstTime(loc, raw.Date, raw.Timestamp, raw.AddedAt),
		CreatedAt:  upstream.FirstTime(loc, raw.Created, raw.EventTime),
		AuthorName: personName(raw.Owner, raw.Author, raw.User),
	}
	if id := upstream.FirstString(raw.TimelineID, raw.ID); id != nil {
		item.ID = *id
	}
	ids, scoped := upstream.StudentAssociation(raw.Students, raw.StudentIDs)
	item.Audience = models.Audience{Scoped: scoped, StudentIDs: ids}
	for _, author := range []upstream.RawRef{raw.Owner, raw.Author, raw.User} {
		if author.Present {
			if author.ID.Populated() {
				item.Audience.AuthorID = strings.TrimSpace(author.ID.Value)
			}
			break
		}
	}
	return item
}

// NormalizeHomeworks maps every raw homework record.
func NormalizeHomeworks(raw []upstream.RawHomework, loc *time.Location) []models.Assignment {
	out := make([]models.Assignment, 0, len(raw))
	for _, item := range raw {
		out = append(out, NormalizeHomework(item, loc))
	}
	return out
}

// NormalizeAnnouncements maps every raw timeline record.
func NormalizeAnnouncements(raw []upstream.RawTimelineItem, loc *time.Location) []models.Announcement {
	out := make([]models.Announcement, 0, len(raw))
	for _, item := range raw {
		out = append(out, NormalizeAnnouncement(item, loc))
	}
	return out
}

// ApplyHygiene drops homework duplicates and blank entries from the feed when
// enabled. The input is returned untouched otherwise.
func ApplyHygiene(items []models.Announcement, enabled bool) []models.Announcement {
	if !enabled {
		return items
	}
	out := make([]models.Announcement, 0, len(items))
	for _, item := range items {
		if item.Kind != nil && *item.Kind == models.AnnouncementKindHomework {
			continue
		}
		if item.Text == nil || strings.TrimSpace(*item.Text) == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// FilterAssignments keeps assignments visible to the selected student.
func FilterAssignments(items []models.Assignment, selection models.StudentSelection) []models.Assignment {
	return filterByAudience(items, selection, func(a models.Assignment) models.Audience { return a.Audience })
}

// FilterAnnouncements keeps announcements visible to the selected student.
func FilterAnnouncements(items []models.Announcement, selection models.StudentSelection) []models.Announcement {
	return filterByAudience(items, selection, func(a models.Announcement) models.Audience { return a.Audience })
}

// FilterLessons keeps lessons attended by the selected student.
func FilterLessons(items []models.LessonSlot, selection models.StudentSelection) []models.LessonSlot {
	return filterByAudience(items, selection, func(l models.LessonSlot) models.Audience { return l.Audience })
}

func filterByAudience[T any](items []T, selection models.StudentSelection, audience func(T) models.Audience) []T {
	out := make([]T, 0, len(items))
	id := selection.StudentID()
	for _, item := range items {
		if audience(item).Includes(id) {
			out = append(out, item)
		}
	}
	return out
}

// NormalizeLessons maps one day's raw timetable into lesson slots, keeping
// upstream order.
func NormalizeLessons(raw []upstream.RawLesson, date time.Time) []models.LessonSlot {
	out := make([]models.LessonSlot, 0, len(raw))
	for _, lesson := range raw {
		slot := models.LessonSlot{
			PeriodLabel:  deref(upstream.FirstString(lesson.Period, lesson.PeriodName, lesson.UniPeriod)),
			StartTime:    deref(upstream.FirstString(lesson.StartTime, lesson.Start, lesson.Begin)),
			EndTime:      deref(upstream.FirstString(lesson.EndTime, lesson.End, lesson.Finish)),
			Subject:      deref(refLabel(lesson.Subject)),
			Room:         lessonRoom(lesson),
			Date:         formatDay(lesson.LessonDate(date)),
			TeacherNames: []string{},
			TeacherIDs:   []string{},
		}
		for _, ref := range lessonTeachers(lesson) {
			slot.TeacherNames = append(slot.TeacherNames, DeriveDisplayName(ref))
			slot.TeacherIDs = append(slot.TeacherIDs, strings.TrimSpace(ref.ID.Value))
		}
		ids, scoped := upstream.StudentAssociation(lesson.Students, lesson.StudentIDs)
		slot.Audience = models.Audience{Scoped: scoped, StudentIDs: ids}
		out = append(out, slot)
	}
	return out
}

func lessonTeachers(lesson upstream.RawLesson) []upstream.RawRef {
	refs := make([]upstream.RawRef, 0, len(lesson.Teachers)+1)
	for _, ref := range lesson.Teachers {
		if ref.Present {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 && lesson.Teacher.Present {
		refs = append(refs, lesson.Teacher)
	}
	return refs
}

func lessonRoom(lesson upstream.RawLesson) string {
	if name := refLabel(lesson.Classroom); name != nil {
		return *name
	}
	names := make([]string, 0, len(lesson.Classrooms))
	for _, ref := range lesson.Classrooms {
		if name := refLabel(ref); name != nil {
			names = append(names, *name)
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return deref(upstream.FirstString(lesson.Room))
}

// DistinctSubjects returns the distinct non-null subjects, sorted ascending.
func DistinctSubjects(items []models.Assignment) []string {
	seen := make(map[string]struct{}, len(items))
	subjects := make([]string, 0, len(items))
	for _, item := range items {
		if item.Subject == nil {
			continue
		}
		if _, ok := seen[*item.Subject]; ok {
			continue
		}
		seen[*item.Subject] = struct{}{}
		subjects = append(subjects, *item.Subject)
	}
	sort.Strings(subjects)
	return subjects
}

// refLabel extracts a subject or room label from a nested reference.
func refLabel(ref upstream.RawRef) *string {
	if !ref.Present {
		return nil
	}
	return upstream.FirstString(ref.Name, ref.Short)
}

// personName derives a display name from the first present reference.
func personName(refs ...upstream.RawRef) *string {
	for _, ref := range refs {
		if !ref.Present {
			continue
		}
		name := DeriveDisplayName(ref)
		return &name
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
