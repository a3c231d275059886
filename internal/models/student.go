package models

// Student is one child on the portal account.
type Student struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Raw         []byte `json:"-"`
}

// ActiveStudent identifies the student whose data a cycle is filtered to.
type ActiveStudent struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// StudentSelection is the resolved student context for a session. A nil
// Student means account-level data is used unfiltered.
type StudentSelection struct {
	Student *ActiveStudent `json:"student"`
}

// AccountMode reports whether no student is active.
func (s StudentSelection) AccountMode() bool {
	return s.Student == nil
}

// StudentID returns the active student id or an empty string.
func (s StudentSelection) StudentID() string {
	if s.Student == nil {
		return ""
	}
	return s.Student.ID
}
