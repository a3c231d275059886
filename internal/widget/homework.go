package widget

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/edupage-sync/internal/models"
)

// HistoryLimit caps the number of completed assignments shown.
const HistoryLimit = 2

// Partition is the homework board split.
type Partition struct {
	Overdue  []models.Assignment
	Upcoming []models.Assignment
	History  []models.Assignment
}

// Empty reports whether every section is empty.
func (p Partition) Empty() bool {
	return len(p.Overdue) == 0 && len(p.Upcoming) == 0 && len(p.History) == 0
}

// PartitionAssignments splits assignments relative to today's date. Pending
// items due strictly before today are overdue; other pending items are
// upcoming; done items feed the history, newest due date first, capped at
// HistoryLimit.
func PartitionAssignments(items []models.Assignment, now time.Time) Partition {
	today := startOfDay(now)
	p := Partition{
		Overdue:  []models.Assignment{},
		Upcoming: []models.Assignment{},
		History:  []models.Assignment{},
	}
	for _, item := range items {
		switch {
		case item.Done:
			p.History = append(p.History, item)
		case item.DueDate != nil && startOfDay(item.DueDate.In(now.Location())).Before(today):
			p.Overdue = append(p.Overdue, item)
		default:
			p.Upcoming = append(p.Upcoming, item)
		}
	}

	sort.SliceStable(p.Overdue, func(i, j int) bool {
		return p.Overdue[i].DueDate.After(*p.Overdue[j].DueDate)
	})
	sort.SliceStable(p.Upcoming, func(i, j int) bool {
		a, b := p.Upcoming[i].DueDate, p.Upcoming[j].DueDate
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Before(*b)
	})
	sort.SliceStable(p.History, func(i, j int) bool {
		a, b := p.History[i].DueDate, p.History[j].DueDate
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	if len(p.History) > HistoryLimit {
		p.History = p.History[:HistoryLimit]
	}
	return p
}

// RenderHomework renders the homework board.
func RenderHomework(items []models.Assignment, now time.Time) string {
	p := PartitionAssignments(items, now)

	var b strings.Builder
	b.WriteString(`<div class="edupage-widget edupage-homework">`)
	if p.Empty() {
		b.WriteString(`<div class="widget-empty">Nothing pending</div>`)
		writeFooter(&b, now)
		b.WriteString(`</div>`)
		return b.String()
	}

	if len(p.Upcoming) > 0 {
		writeHomeworkSection(&b, "upcoming", "Upcoming", p.Upcoming)
	}
	if len(p.Overdue) > 0 {
		if len(p.Upcoming) > 0 {
			b.WriteString(`<hr class="widget-separator">`)
		}
		writeHomeworkSection(&b, "overdue", "Overdue", p.Overdue)
	}
	if len(p.History) > 0 {
		if len(p.Upcoming) > 0 || len(p.Overdue) > 0 {
			b.WriteString(`<hr class="widget-separator">`)
		}
		writeHomeworkSection(&b, "history", "Done", p.History)
	}
	writeFooter(&b, now)
	b.WriteString(`</div>`)
	return b.String()
}

func writeHomeworkSection(b *strings.Builder, class, title string, items []models.Assignment) {
	b.WriteString(`<div class="hw-section hw-` + class + `"><h4>` + title + `</h4><ul>`)
	for _, item := range items {
		b.WriteString(`<li class="hw-item">`)
		if item.Subject != nil {
			b.WriteString(`<span class="hw-subject">` + Escape(*item.Subject) + `</span> `)
		}
		title := escapeOpt(item.Title)
		if title == "" {
			title = "Untitled"
		}
		b.WriteString(`<span class="hw-title">` + title + `</span>`)
		if item.DueDate != nil {
			b.WriteString(` <span class="hw-due">` + item.DueDate.Format("02.01.2006") + `</span>`)
		}
		if item.Description != nil {
			b.WriteString(`<div class="hw-description">` + EscapeMultiline(*item.Description) + `</div>`)
		}
		if item.TeacherName != nil {
			b.WriteString(`<div class="hw-teacher">` + Escape(*item.TeacherName) + `</div>`)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></div>`)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func writeFooter(b *strings.Builder, now time.Time) {
	b.WriteString(`<div class="widget-footer">rendered at ` + now.Format("15:04") + `</div>`)
}
