package protocol

import (
	"github.com/vogiaan1904/pelotond/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

// PlayerState field numbers of the client schema.
const (
	psID         protowire.Number = 1
	psWorldTime  protowire.Number = 2
	psDistance   protowire.Number = 3
	psRoadTime   protowire.Number = 4
	psLaps       protowire.Number = 5
	psSpeed      protowire.Number = 6
	psCadence    protowire.Number = 9
	psHeartrate  protowire.Number = 11
	psPower      protowire.Number = 12
	psHeading    protowire.Number = 13
	psTime       protowire.Number = 16
	psRoadFlags  protowire.Number = 19
	psRoadWord   protowire.Number = 20
	psProgress   protowire.Number = 21
	psCalories   protowire.Number = 24
	psX          protowire.Number = 25
	psAltitude   protowire.Number = 26
	psY          protowire.Number = 27
	psWatchingID protowire.Number = 28
	psGroupID    protowire.Number = 29
	psSport      protowire.Number = 31
)

func appendPlayerState(b []byte, s models.PositionState) []byte {
	e := encoder{b: b}
	e.int64Always(psID, int64(s.ID))
	e.int64(psWorldTime, s.WorldTime)
	e.int32(psDistance, s.Distance)
	e.int32(psRoadTime, s.RoadTime)
	e.int32(psLaps, s.Laps)
	e.int32(psSpeed, s.Speed)
	e.int32(psCadence, s.Cadence)
	e.int32(psHeartrate, s.Heartrate)
	e.int32(psPower, s.Power)
	e.int64(psHeading, s.Heading)
	e.int32(psTime, s.Time)
	e.uint32(psRoadFlags, s.RoadFlags)
	e.int32(psRoadWord, s.RoadWord)
	e.int32(psProgress, s.Progress)
	e.int32(psCalories, s.Calories)
	e.float32(psX, s.X)
	e.float32(psAltitude, s.Altitude)
	e.float32(psY, s.Y)
	e.int64(psWatchingID, int64(s.WatchingID))
	e.int64(psGroupID, s.GroupID)
	e.int32(psSport, int32(s.Sport))
	return e.b
}

// EncodePlayerState serializes a PositionState as a PlayerState message.
func EncodePlayerState(s models.PositionState) []byte {
	return appendPlayerState(nil, s)
}

// DecodePlayerState parses a PlayerState message.
func DecodePlayerState(b []byte) (models.PositionState, error) {
	var s models.PositionState
	err := walk(b, func(f field) error {
		switch f.num {
		case psID:
			s.ID = models.ParticipantID(f.int64())
		case psWorldTime:
			s.WorldTime = f.int64()
		case psDistance:
			s.Distance = f.int32()
		case psRoadTime:
			s.RoadTime = f.int32()
		case psLaps:
			s.Laps = f.int32()
		case psSpeed:
			s.Speed = f.int32()
		case psCadence:
			s.Cadence = f.int32()
		case psHeartrate:
			s.Heartrate = f.int32()
		case psPower:
			s.Power = f.int32()
		case psHeading:
			s.Heading = f.int64()
		case psTime:
			s.Time = f.int32()
		case psRoadFlags:
			s.RoadFlags = f.uint32()
		case psRoadWord:
			s.RoadWord = f.int32()
		case psProgress:
			s.Progress = f.int32()
		case psCalories:
			s.Calories = f.int32()
		case psX:
			s.X = f.float32()
		case psAltitude:
			s.Altitude = f.float32()
		case psY:
			s.Y = f.float32()
		case psWatchingID:
			s.WatchingID = models.ParticipantID(f.int64())
		case psGroupID:
			s.GroupID = f.int64()
		case psSport:
			s.Sport = models.Sport(f.int32())
		}
		return nil
	})
	return s, err
}
