package models

import "time"

// Widgets holds the rendered HTML fragments of one cycle.
type Widgets struct {
	Homework       string `json:"homework"`
	TimetableToday string `json:"timetableToday"`
	TimetableNext  string `json:"timetableNext"`
	Notifications  string `json:"notifications"`
	MenuWeek       string `json:"menuWeek"`
}

// Snapshot aggregates the normalized output of one sync cycle.
type Snapshot struct {
	GeneratedAt    time.Time        `json:"generatedAt"`
	Student        StudentSelection `json:"student"`
	Assignments    []Assignment     `json:"assignments"`
	Announcements  []Announcement   `json:"announcements"`
	TodayDate      time.Time        `json:"todayDate"`
	NextDate       time.Time        `json:"nextDate"`
	TimetableToday []LessonSlot     `json:"timetableToday"`
	TimetableNext  []LessonSlot     `json:"timetableNext"`
	Teachers       []Teacher        `json:"teachers"`
	Subjects       []string         `json:"subjects"`
	MenuToday      *string          `json:"menuToday"`
	WeeklyMenu     []MenuEntry      `json:"weeklyMenu"`
	Widgets        Widgets          `json:"widgets"`
}
