package widget

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/edupage-sync/internal/models"
)

// SortAnnouncements returns a copy ordered by effective timestamp, newest first.
func SortAnnouncements(items []models.Announcement) []models.Announcement {
	sorted := make([]models.Announcement, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveTime().After(sorted[j].EffectiveTime())
	})
	return sorted
}

// RenderNotifications renders the notification feed.
func RenderNotifications(items []models.Announcement, now time.Time) string {
	var b strings.Builder
	b.WriteString(`<div class="edupage-widget edupage-notifications">`)
	if len(items) == 0 {
		b.WriteString(`<div class="widget-empty">No notifications</div>`)
	} else {
		b.WriteString(`<ul>`)
		for _, item := range SortAnnouncements(items) {
			b.WriteString(`<li class="nt-item">`)
			if ts := item.EffectiveTime(); item.OccurredAt != nil || item.CreatedAt != nil {
				b.WriteString(`<span class="nt-time">` + ts.In(now.Location()).Format("02.01. 15:04") + `</span> `)
			}
			if item.AuthorName != nil {
				b.WriteString(`<span class="nt-author">` + Escape(*item.AuthorName) + `</span> `)
			}
			if item.Kind != nil {
				b.WriteString(`<span class="nt-kind">` + Escape(*item.Kind) + `</span>`)
			}
			if item.Text != nil {
				b.WriteString(`<div class="nt-text">` + EscapeMultiline(*item.Text) + `</div>`)
			}
			b.WriteString(`</li>`)
		}
		b.WriteString(`</ul>`)
	}
	writeFooter(&b, now)
	b.WriteString(`</div>`)
	return b.String()
}
