package models

import "time"

// AnnouncementKindHomework marks timeline entries that duplicate homework items.
const AnnouncementKindHomework = "homework"

// Announcement is a normalized notification/timeline record.
type Announcement struct {
	ID         string     `json:"id"`
	Kind       *string    `json:"kind"`
	Text       *string    `json:"text"`
	OccurredAt *time.Time `json:"occurredAt"`
	AuthorName *string    `json:"authorName"`

	// CreatedAt is the secondary timestamp used when OccurredAt is missing.
	CreatedAt *time.Time `json:"-"`
	Audience  Audience   `json:"-"`
}

// EffectiveTime returns OccurredAt, else CreatedAt, else the zero epoch.
func (a Announcement) EffectiveTime() time.Time {
	if a.OccurredAt != nil {
		return *a.OccurredAt
	}
	if a.CreatedAt != nil {
		return *a.CreatedAt
	}
	return time.Unix(0, 0).UTC()
}
