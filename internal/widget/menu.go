package widget

import (
	"strings"
	"time"

	"github.com/noah-isme/edupage-sync/internal/models"
)

// RenderWeeklyMenu renders the Monday to Friday cafeteria table.
func RenderWeeklyMenu(entries []models.MenuEntry, now time.Time) string {
	var b strings.Builder
	b.WriteString(`<div class="edupage-widget edupage-menu">`)
	if len(entries) == 0 {
		b.WriteString(`<div class="widget-empty">No menu</div>`)
	} else {
		b.WriteString(`<table class="menu-table">`)
		for _, entry := range entries {
			label := Escape(entry.Date)
			if d, err := time.Parse("2006-01-02", entry.Date); err == nil {
				label = d.Weekday().String()[:3] + ` ` + d.Format("02.01.")
			}
			dish := `<span class="widget-empty">No data</span>`
			if entry.MainDish != nil {
				dish = EscapeMultiline(*entry.MainDish)
			}
			b.WriteString(`<tr><td class="menu-day">` + label + `</td><td class="menu-dish">` + dish + `</td></tr>`)
		}
		b.WriteString(`</table>`)
	}
	writeFooter(&b, now)
	b.WriteString(`</div>`)
	return b.String()
}
