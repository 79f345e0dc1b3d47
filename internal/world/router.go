package world

import (
	"sort"

	"github.com/vogiaan1904/pelotond/internal/models"
)

// DefaultProximityRadius is the chat culling radius in world units.
const DefaultProximityRadius = 100000

// Broadcast describes one frame to fan out.
type Broadcast struct {
	Origin models.ParticipantID
	// OriginState overrides the registry lookup of Origin. Frames mirrored
	// from another instance carry it since the origin is not online here.
	OriginState *models.PositionState
	// Course scopes chat with no known origin position to one course.
	Course int32
	// Targets is the recipient list of targeted frame types.
	Targets []models.ParticipantID
	Frame   models.Frame
}

// Router decides who receives a broadcast.
type Router struct {
	Radius float64
}

func NewRouter(radius float64) Router {
	if radius <= 0 {
		radius = DefaultProximityRadius
	}
	return Router{Radius: radius}
}

// Near reports whether a and b see each other for chat and telemetry:
// a spectate relationship in either direction, or the same course and
// either within the radius or on the same road.
func (r Router) Near(a, b models.PositionState) bool {
	if a.Watches(b) {
		return true
	}
	if a.Course() != b.Course() {
		return false
	}
	return a.DistanceTo(b) <= r.Radius || a.RoadID() == b.RoadID()
}

// Route returns the sorted, duplicate-free recipients of b among candidates.
// hasOrigin is false when the origin position is unknown.
func (r Router) Route(b Broadcast, origin models.PositionState, hasOrigin bool, candidates []models.PositionState) []models.ParticipantID {
	seen := make(map[models.ParticipantID]struct{})
	add := func(id models.ParticipantID) {
		if id != 0 {
			seen[id] = struct{}{}
		}
	}

	switch {
	case b.Frame.Type.Targeted():
		online := make(map[models.ParticipantID]struct{}, len(candidates))
		for _, c := range candidates {
			online[c.ID] = struct{}{}
		}
		for _, id := range b.Targets {
			if _, ok := online[id]; ok {
				add(id)
			}
		}

	case b.Frame.Type == models.FrameSegmentResult:
		for _, c := range candidates {
			if c.ID == b.Origin || (hasOrigin && c.Course() == origin.Course()) || (b.Origin != 0 && c.WatchingID == b.Origin) {
				add(c.ID)
			}
		}

	default:
		if hasOrigin {
			add(b.Origin)
		}
		for _, c := range candidates {
			switch {
			case c.ID == b.Origin && hasOrigin:
				add(c.ID)
			case hasOrigin && r.Near(origin, c):
				add(c.ID)
			case !hasOrigin && b.Course != 0 && c.Course() == b.Course:
				add(c.ID)
			}
		}
	}

	out := make([]models.ParticipantID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
