package protocol

import (
	"github.com/vogiaan1904/pelotond/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	ppPlayerID   protowire.Number = 1
	ppFirstName  protowire.Number = 2
	ppLastName   protowire.Number = 3
	ppCountry    protowire.Number = 4
	ppMale       protowire.Number = 5
	ppPlayerType protowire.Number = 6
	ppRoute      protowire.Number = 7

	reProfile protowire.Number = 1
	reState   protowire.Number = 2

	wID           protowire.Number = 1
	wName         protowire.Number = 2
	wCourseID     protowire.Number = 3
	wWorldTime    protowire.Number = 4
	wRealTime     protowire.Number = 5
	wPlayerCount  protowire.Number = 6
	wFollowees    protowire.Number = 8
	wOthers       protowire.Number = 9
	wPacePartners protowire.Number = 10

	worldsList protowire.Number = 1
)

func EncodePartialProfile(p models.PartialProfile) []byte {
	e := encoder{}
	e.int64Always(ppPlayerID, int64(p.ID))
	e.string(ppFirstName, p.FirstName)
	e.string(ppLastName, p.LastName)
	e.int32(ppCountry, p.CountryCode)
	e.boolAlways(ppMale, p.Male)
	e.int32(ppPlayerType, int32(p.PlayerType))
	e.int64(ppRoute, p.RouteID)
	return e.b
}

func DecodePartialProfile(b []byte) (models.PartialProfile, error) {
	var p models.PartialProfile
	err := walk(b, func(f field) error {
		switch f.num {
		case ppPlayerID:
			p.ID = models.ParticipantID(f.int64())
		case ppFirstName:
			p.FirstName = f.string()
		case ppLastName:
			p.LastName = f.string()
		case ppCountry:
			p.CountryCode = f.int32()
		case ppMale:
			p.Male = f.bool()
		case ppPlayerType:
			p.PlayerType = models.PlayerType(f.int32())
		case ppRoute:
			p.RouteID = f.int64()
		}
		return nil
	})
	return p, err
}

func encodeRosterEntry(r models.RosterEntry) []byte {
	e := encoder{}
	e.bytesAlways(reProfile, EncodePartialProfile(r.Profile))
	e.bytesAlways(reState, EncodePlayerState(r.State))
	return e.b
}

func encodeCourse(v models.WorldView, c models.CourseView) []byte {
	e := encoder{}
	e.int64Always(wID, v.WorldID)
	e.string(wName, v.Name)
	e.int32(wCourseID, c.CourseID)
	e.int64Always(wWorldTime, v.WorldTime)
	e.int64Always(wRealTime, v.RealTime)
	e.int64Always(wPlayerCount, int64(c.Count))
	for _, r := range c.Followees {
		e.bytesAlways(wFollowees, encodeRosterEntry(r))
	}
	for _, r := range c.Others {
		e.bytesAlways(wOthers, encodeRosterEntry(r))
	}
	for _, r := range c.PacePartners {
		e.bytesAlways(wPacePartners, encodeRosterEntry(r))
	}
	return e.b
}

// EncodeWorlds serializes a snapshot as a Worlds message with one World per
// course.
func EncodeWorlds(v models.WorldView) []byte {
	e := encoder{}
	for _, c := range v.Courses {
		e.bytesAlways(worldsList, encodeCourse(v, c))
	}
	return e.b
}

// EncodeWorld serializes a single course, used when the client asks for one
// world by id.
func EncodeWorld(v models.WorldView, c models.CourseView) []byte {
	return encodeCourse(v, c)
}

func decodeRosterEntry(b []byte, kind models.ParticipantKind) (models.RosterEntry, error) {
	r := models.RosterEntry{Kind: kind}
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case reProfile:
			r.Profile, err = DecodePartialProfile(f.buf)
		case reState:
			r.State, err = DecodePlayerState(f.buf)
		}
		return err
	})
	return r, err
}

// DecodeWorlds parses a Worlds message back into a view. Followees decode as
// humans and others as bots, since the wire does not tell bots from ghosts.
func DecodeWorlds(b []byte) (models.WorldView, error) {
	var v models.WorldView
	err := walk(b, func(f field) error {
		if f.num != worldsList {
			return nil
		}
		var c models.CourseView
		err := walk(f.buf, func(wf field) error {
			var (
				r   models.RosterEntry
				err error
			)
			switch wf.num {
			case wID:
				v.WorldID = wf.int64()
			case wName:
				v.Name = wf.string()
			case wCourseID:
				c.CourseID = wf.int32()
			case wWorldTime:
				v.WorldTime = wf.int64()
			case wRealTime:
				v.RealTime = wf.int64()
			case wPlayerCount:
				c.Count = int(wf.int64())
			case wFollowees:
				r, err = decodeRosterEntry(wf.buf, models.KindHuman)
				c.Followees = append(c.Followees, r)
			case wOthers:
				r, err = decodeRosterEntry(wf.buf, models.KindBot)
				c.Others = append(c.Others, r)
			case wPacePartners:
				r, err = decodeRosterEntry(wf.buf, models.KindPacePartner)
				c.PacePartners = append(c.PacePartners, r)
			}
			return err
		})
		if err != nil {
			return err
		}
		v.Courses = append(v.Courses, c)
		return nil
	})
	return v, err
}
