package service

import "time"

// NextSchoolDay returns the next weekday after t at midnight in t's location.
// Friday, Saturday and Sunday roll over to the following Monday.
func NextSchoolDay(t time.Time) time.Time {
	day := truncateToDay(t)
	switch day.Weekday() {
	case time.Friday:
		return day.AddDate(0, 0, 3)
	case time.Saturday:
		return day.AddDate(0, 0, 2)
	default:
		return day.AddDate(0, 0, 1)
	}
}

// CurrentWeekdays returns Monday through Friday of ref's ISO week.
func CurrentWeekdays(ref time.Time) []time.Time {
	day := truncateToDay(ref)
	// ISO weeks start on Monday, so Sunday belongs to the preceding week.
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	days := make([]time.Time, 0, 5)
	for i := 0; i < 5; i++ {
		days = append(days, monday.AddDate(0, 0, i))
	}
	return days
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func formatDay(t time.Time) string {
	return t.Format("2006-01-02")
}
