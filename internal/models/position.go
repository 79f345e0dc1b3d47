package models

import "math"

// PositionState is the telemetry snapshot of one participant.
//
// RoadFlags and RoadWord are the packed road location words of the client
// protocol: RoadFlags holds the course id in bits 16-23 and the forward flag
// in bit 2, RoadWord holds the road id in bits 8-15. RoadTime is the
// road-relative progress.
type PositionState struct {
	ID         ParticipantID
	WorldTime  int64
	Distance   int32
	RoadTime   int32
	Laps       int32
	Speed      int32
	Cadence    int32
	Heartrate  int32
	Power      int32
	Heading    int64
	Time       int32
	RoadFlags  uint32
	RoadWord   int32
	Progress   int32
	Calories   int32
	X          float32
	Altitude   float32
	Y          float32
	WatchingID ParticipantID
	GroupID    int64
	Sport      Sport
}

const (
	roadForwardBit = 1 << 2
	courseShift    = 16
	roadShift      = 8
)

func (s PositionState) Course() int32 {
	return int32((s.RoadFlags & 0xff0000) >> courseShift)
}

func (s PositionState) RoadID() int32 {
	return (s.RoadWord & 0xff00) >> roadShift
}

func (s PositionState) IsForward() bool {
	return s.RoadFlags&roadForwardBit != 0
}

// SetRoadLocation packs course, direction and road id into the road words,
// keeping the unrelated bits of both words.
func (s *PositionState) SetRoadLocation(course int32, forward bool, road int32) {
	flags := s.RoadFlags &^ (0xff0000 | roadForwardBit)
	flags |= (uint32(course) & 0xff) << courseShift
	if forward {
		flags |= roadForwardBit
	}
	s.RoadFlags = flags
	s.RoadWord = (s.RoadWord &^ 0xff00) | ((road & 0xff) << roadShift)
}

// DistanceTo is the euclidean 3-D distance in world units.
func (s PositionState) DistanceTo(o PositionState) float64 {
	dx := float64(o.X) - float64(s.X)
	dy := float64(o.Y) - float64(s.Y)
	dz := float64(o.Altitude) - float64(s.Altitude)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Watches reports a spectate relationship in either direction.
func (s PositionState) Watches(o PositionState) bool {
	if s.WatchingID != 0 && s.WatchingID == o.ID {
		return true
	}
	return o.WatchingID != 0 && o.WatchingID == s.ID
}
