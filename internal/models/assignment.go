package models

import "time"

// Assignment is a normalized homework record.
type Assignment struct {
	ID           string     `json:"id"`
	Subject      *string    `json:"subject"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	DueDate      *time.Time `json:"dueDate"`
	AssignedDate *time.Time `json:"assignedDate"`
	Done         bool       `json:"done"`
	TeacherName  *string    `json:"teacherName"`

	Audience Audience `json:"-"`
}

// Audience is the per-record student association carried by upstream data.
// Scoped is false when the record has no student list at all.
type Audience struct {
	Scoped     bool
	StudentIDs []string
	AuthorID   string
}

// Includes reports whether the record is visible to the given student. Records
// without a student list apply to everyone.
func (a Audience) Includes(studentID string) bool {
	if studentID == "" || !a.Scoped {
		return true
	}
	if a.AuthorID != "" && a.AuthorID == studentID {
		return true
	}
	for _, id := range a.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
