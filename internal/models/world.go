package models

// RosterEntry joins a participant's state with its public profile.
type RosterEntry struct {
	Kind    ParticipantKind
	Profile PartialProfile
	State   PositionState
}

// CourseView is the online population of one course.
type CourseView struct {
	CourseID     int32
	Count        int
	PacePartners []RosterEntry
	Others       []RosterEntry
	Followees    []RosterEntry
}

// WorldView is the snapshot served to polling clients.
type WorldView struct {
	WorldID   int64
	Name      string
	WorldTime int64
	RealTime  int64
	Courses   []CourseView
}

// Course returns the view of courseID, or false if nobody is on it.
func (w WorldView) Course(courseID int32) (CourseView, bool) {
	for _, c := range w.Courses {
		if c.CourseID == courseID {
			return c, true
		}
	}
	return CourseView{}, false
}

// Total is the number of participants across all courses.
func (w WorldView) Total() int {
	n := 0
	for _, c := range w.Courses {
		n += c.Count
	}
	return n
}
