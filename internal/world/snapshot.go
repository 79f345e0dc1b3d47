package world

import (
	"sort"

	"github.com/vogiaan1904/pelotond/internal/models"
)

// snapshotBuilder groups roster entries per course. A zero course filter
// keeps every course.
type snapshotBuilder struct {
	course  int32
	courses map[int32]*models.CourseView
}

func newSnapshotBuilder(course int32) *snapshotBuilder {
	return &snapshotBuilder{course: course, courses: make(map[int32]*models.CourseView)}
}

func (b *snapshotBuilder) add(kind models.ParticipantKind, profile models.PartialProfile, state models.PositionState) {
	course := state.Course()
	if b.course != 0 && course != b.course {
		return
	}
	cv, ok := b.courses[course]
	if !ok {
		cv = &models.CourseView{CourseID: course}
		b.courses[course] = cv
	}

	entry := models.RosterEntry{Kind: kind, Profile: profile, State: state}
	switch kind {
	case models.KindHuman:
		cv.Followees = append(cv.Followees, entry)
	case models.KindPacePartner:
		cv.PacePartners = append(cv.PacePartners, entry)
	default:
		cv.Others = append(cv.Others, entry)
	}
	cv.Count++
}

// addPool projects every member of p. Members that vanish between IDs and
// Position are skipped.
func (b *snapshotBuilder) addPool(p Pool) {
	kind := p.Kind()
	for _, id := range p.IDs() {
		state, ok := p.Position(id)
		if !ok {
			continue
		}
		profile, ok := p.Profile(id)
		if !ok {
			continue
		}
		state.ID = id
		b.add(kind, profile, state)
	}
}

func (b *snapshotBuilder) build(worldTime, realTime int64) models.WorldView {
	v := models.WorldView{WorldTime: worldTime, RealTime: realTime}
	for _, cv := range b.courses {
		sortRoster(cv.Followees)
		sortRoster(cv.PacePartners)
		sortRoster(cv.Others)
		v.Courses = append(v.Courses, *cv)
	}
	sort.Slice(v.Courses, func(i, j int) bool { return v.Courses[i].CourseID < v.Courses[j].CourseID })
	return v
}

func sortRoster(r []models.RosterEntry) {
	sort.Slice(r, func(i, j int) bool { return r[i].State.ID < r[j].State.ID })
}
