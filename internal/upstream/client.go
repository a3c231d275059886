package upstream

import (
	"context"
	"time"
)

// Client is the school-portal collaborator consumed by the sync pipeline.
// Every call may fail; callers classify failures per call site.
type Client interface {
	Login(ctx context.Context, username, password string) error
	RefreshSession(ctx context.Context) error
	RefreshTimeline(ctx context.Context) error
	TimetableForDate(ctx context.Context, date time.Time) ([]RawLesson, error)
	Students(ctx context.Context) ([]RawStudent, error)
	Homeworks(ctx context.Context) ([]RawHomework, error)
	Timeline(ctx context.Context) ([]RawTimelineItem, error)
	Teachers(ctx context.Context) ([]RawTeacher, error)
	User(ctx context.Context) (*RawRef, error)
}

// Transport performs raw JSON requests against arbitrary portal endpoints.
// The menu lookup uses it to probe endpoint variants.
type Transport interface {
	PostJSON(ctx context.Context, url string, payload interface{}) ([]byte, error)
}
