package widget

import (
	"strings"
	"time"

	"github.com/noah-isme/edupage-sync/internal/models"
)

// RenderTimetable renders one day's lessons in their original order.
func RenderTimetable(slots []models.LessonSlot, day, now time.Time) string {
	var b strings.Builder
	b.WriteString(`<div class="edupage-widget edupage-timetable">`)
	b.WriteString(`<h4>` + day.Weekday().String() + ` ` + day.Format("02.01.2006") + `</h4>`)
	if len(slots) == 0 {
		b.WriteString(`<div class="widget-empty">No lessons</div>`)
	} else {
		b.WriteString(`<table class="tt-table">`)
		for _, slot := range slots {
			b.WriteString(`<tr class="tt-row">`)
			b.WriteString(`<td class="tt-period">` + Escape(slot.PeriodLabel) + `</td>`)
			b.WriteString(`<td class="tt-time">` + timeRange(slot.StartTime, slot.EndTime) + `</td>`)
			b.WriteString(`<td class="tt-subject">` + Escape(slot.Subject) + `</td>`)
			b.WriteString(`<td class="tt-teacher">` + Escape(slot.TeacherList()) + `</td>`)
			b.WriteString(`<td class="tt-room">` + Escape(slot.Room) + `</td>`)
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</table>`)
	}
	writeFooter(&b, now)
	b.WriteString(`</div>`)
	return b.String()
}

func timeRange(start, end string) string {
	switch {
	case start != "" && end != "":
		return Escape(start) + " - " + Escape(end)
	case start != "":
		return Escape(start)
	default:
		return Escape(end)
	}
}
