package models

import "strings"

// LessonSlot is one normalized timetable row.
type LessonSlot struct {
	PeriodLabel  string   `json:"periodLabel"`
	StartTime    string   `json:"startTime"`
	EndTime      string   `json:"endTime"`
	Subject      string   `json:"subject"`
	TeacherNames []string `json:"teacherNames"`
	// TeacherIDs is aligned with TeacherNames; empty entries mean no id.
	TeacherIDs []string `json:"-"`
	Room       string   `json:"room"`
	Date       string   `json:"date"`

	Audience Audience `json:"-"`
}

// TeacherList joins teacher names for display.
func (l LessonSlot) TeacherList() string {
	return strings.Join(l.TeacherNames, ", ")
}
