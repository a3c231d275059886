package upstream

import (
	"bytes"
	"time"

	json "github.com/goccy/go-json"
)

// RawRef is a nested reference to a person, subject or room. The portal sends
// it as an object, a bare name, or a bare id depending on the collection.
type RawRef struct {
	ID    FlexString
	Name  FlexString
	Short FlexString
	// Variant A spells name parts in lower case.
	Firstname FlexString
	Lastname  FlexString
	// Variant B spells them in camel case.
	FirstName FlexString
	LastName  FlexString

	Present bool
	Raw     json.RawMessage
}

var (
	refIDKeys    = []string{"id", "teacherid", "studentid", "userid"}
	refNameKeys  = []string{"name"}
	refShortKeys = []string{"short", "shortcode", "code"}
)

func (r *RawRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = RawRef{}
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		return nil
	}
	r.Raw = append(json.RawMessage(nil), data...)

	switch data[0] {
	case '"':
		if err := r.Name.UnmarshalJSON(data); err != nil {
			return err
		}
		r.Present = r.Name.Populated()
		return nil
	case '{':
	case '[':
		return nil
	default:
		if err := r.ID.UnmarshalJSON(data); err != nil {
			return err
		}
		r.Present = r.ID.Valid
		return nil
	}

	var fields map[string]FlexString
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.ID = pick(fields, refIDKeys...)
	r.Name = pick(fields, refNameKeys...)
	r.Short = pick(fields, refShortKeys...)
	r.Firstname = fields["firstname"]
	r.Lastname = fields["lastname"]
	r.FirstName = fields["firstName"]
	r.LastName = fields["lastName"]
	r.Present = true
	return nil
}

func (r RawRef) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return nullLiteral, nil
	}
	return r.Raw, nil
}

func pick(fields map[string]FlexString, keys ...string) FlexString {
	for _, key := range keys {
		if v, ok := fields[key]; ok && v.Valid {
			return v
		}
	}
	return FlexString{}
}

// RawStudent is one entry of the account's student roster.
type RawStudent struct {
	RawRef
}

// RawTeacher is one entry of the explicit teacher roster.
type RawTeacher struct {
	RawRef
}

// RawHomework is a homework record as delivered by the portal.
type RawHomework struct {
	HomeworkID FlexString `json:"homeworkid"`
	HWID       FlexString `json:"hwid"`
	ID         FlexString `json:"id"`

	Title FlexString `json:"title"`
	Name  FlexString `json:"name"`

	Details     FlexString `json:"details"`
	Description FlexString `json:"description"`
	Text        FlexString `json:"text"`

	DueDate  FlexTime `json:"dueDate"`
	ToDate   FlexTime `json:"toDate"`
	Deadline FlexTime `json:"deadline"`

	AssignedDate FlexTime `json:"assignedDate"`
	FromDate     FlexTime `json:"fromDate"`
	Created      FlexTime `json:"created"`
	DateCreated  FlexTime `json:"datecreated"`

	IsDone   FlexBool `json:"isDone"`
	Done     FlexBool `json:"done"`
	Finished FlexBool `json:"finished"`

	Subject RawRef `json:"subject"`
	Teacher RawRef `json:"teacher"`
	Owner   RawRef `json:"owner"`

	Students   []RawRef     `json:"students"`
	StudentIDs []FlexString `json:"studentIds"`
}

// RawTimelineItem is a notification/timeline record.
type RawTimelineItem struct {
	TimelineID FlexString `json:"timelineid"`
	ID         FlexString `json:"id"`

	Type FlexString `json:"type"`
	Typ  FlexString `json:"typ"`
	Kind FlexString `json:"kind"`

	Text    FlexString `json:"text"`
	Body    FlexString `json:"body"`
	Message FlexString `json:"message"`

	Date      FlexTime `json:"date"`
	Timestamp FlexTime `json:"timestamp"`
	AddedAt   FlexTime `json:"cas_pridania"`

	Created   FlexTime `json:"created"`
	EventTime FlexTime `json:"cas_udalosti"`

	Owner  RawRef `json:"owner"`
	Author RawRef `json:"author"`
	User   RawRef `json:"user"`

	Students   []RawRef     `json:"students"`
	StudentIDs []FlexString `json:"studentIds"`
}

// RawLesson is one lesson of a day's timetable.
type RawLesson struct {
	ID       FlexString `json:"id"`
	LessonID FlexString `json:"lessonid"`

	Period     FlexString `json:"period"`
	PeriodName FlexString `json:"periodName"`
	UniPeriod  FlexString `json:"uniperiod"`

	StartTime FlexString `json:"startTime"`
	Start     FlexString `json:"start"`
	Begin     FlexString `json:"begin"`

	EndTime FlexString `json:"endTime"`
	End     FlexString `json:"end"`
	Finish  FlexString `json:"finish"`

	Subject RawRef `json:"subject"`

	Teachers []RawRef `json:"teachers"`
	Teacher  RawRef   `json:"teacher"`

	Classrooms []RawRef   `json:"classrooms"`
	Classroom  RawRef     `json:"classroom"`
	Room       FlexString `json:"room"`

	Date FlexTime `json:"date"`

	Students   []RawRef     `json:"students"`
	StudentIDs []FlexString `json:"studentIds"`
}

// StudentAssociation returns the per-record student id list and whether the
// record carries one at all.
func StudentAssociation(refs []RawRef, ids []FlexString) ([]string, bool) {
	out := make([]string, 0, len(refs)+len(ids))
	for _, ref := range refs {
		if ref.ID.Populated() {
			out = append(out, ref.ID.Value)
		}
	}
	for _, id := range ids {
		if id.Populated() {
			out = append(out, id.Value)
		}
	}
	return out, len(out) > 0
}

// LessonDate returns the lesson's own date, placed in the requested day's
// zone, or the requested day.
func (l RawLesson) LessonDate(requested time.Time) time.Time {
	if l.Date.Valid {
		return l.Date.In(requested.Location())
	}
	return requested
}
