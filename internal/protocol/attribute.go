package protocol

import (
	"github.com/vogiaan1904/pelotond/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	waID        protowire.Number = 1
	waRealm     protowire.Number = 2
	waType      protowire.Number = 3
	waPayload   protowire.Number = 4
	waBorn      protowire.Number = 5
	waX         protowire.Number = 6
	waYAltitude protowire.Number = 7
	waZ         protowire.Number = 8
	waExpire    protowire.Number = 9
	waOrigin    protowire.Number = 10
	waImportant protowire.Number = 11
	waF12       protowire.Number = 12
	waTimestamp protowire.Number = 13
)

// EncodeFrame serializes a frame as a WorldAttribute message.
func EncodeFrame(f models.Frame) []byte {
	e := encoder{}
	e.int64Always(waID, f.ID)
	e.int64Always(waRealm, f.RealmID)
	e.int32(waType, int32(f.Type))
	e.bytesAlways(waPayload, f.Payload)
	e.int64Always(waBorn, f.WorldTimeBorn)
	e.int64(waExpire, f.WorldTimeExpire)
	e.int64(waOrigin, int64(f.OriginID))
	e.int32(waImportant, f.Importance)
	e.int64Always(waF12, 1)
	e.int64(waTimestamp, f.Timestamp)
	return e.b
}

// DecodeFrame parses a WorldAttribute message. Position fields 6-8 are
// accepted and dropped.
func DecodeFrame(b []byte) (models.Frame, error) {
	var fr models.Frame
	err := walk(b, func(f field) error {
		switch f.num {
		case waID:
			fr.ID = f.int64()
		case waRealm:
			fr.RealmID = f.int64()
		case waType:
			fr.Type = models.FrameType(f.int32())
		case waPayload:
			fr.Payload = append([]byte(nil), f.buf...)
		case waBorn:
			fr.WorldTimeBorn = f.int64()
		case waExpire:
			fr.WorldTimeExpire = f.int64()
		case waOrigin:
			fr.OriginID = models.ParticipantID(f.int64())
		case waImportant:
			fr.Importance = f.int32()
		case waTimestamp:
			fr.Timestamp = f.int64()
		}
		return nil
	})
	return fr, err
}

// FrameExpiry reads only the expiry of an encoded WorldAttribute, so queues
// can filter without a full decode.
func FrameExpiry(b []byte) (int64, error) {
	var expire int64
	err := walk(b, func(f field) error {
		if f.num == waExpire {
			expire = f.int64()
		}
		return nil
	})
	return expire, err
}

// SocialAction is the chat payload.
type SocialAction struct {
	PlayerID      models.ParticipantID
	ToPlayerID    models.ParticipantID
	Type          int32
	FirstName     string
	LastName      string
	Message       string
	Avatar        string
	CountryCode   int32
	FlagType      int32
	Mascot        int32
	EventSubgroup int64
}

// SocialActionText is the action type of a text chat message.
const SocialActionText int32 = 1

const (
	spaPlayerID   protowire.Number = 1
	spaToPlayerID protowire.Number = 2
	spaType       protowire.Number = 3
	spaFirstName  protowire.Number = 4
	spaLastName   protowire.Number = 5
	spaMessage    protowire.Number = 6
	spaAvatar     protowire.Number = 7
	spaCountry    protowire.Number = 8
	spaFlagType   protowire.Number = 9
	spaMascot     protowire.Number = 10
	spaSubgroup   protowire.Number = 11
)

func (a SocialAction) Marshal() []byte {
	e := encoder{}
	e.int64Always(spaPlayerID, int64(a.PlayerID))
	e.int64Always(spaToPlayerID, int64(a.ToPlayerID))
	e.int32(spaType, a.Type)
	e.string(spaFirstName, a.FirstName)
	e.string(spaLastName, a.LastName)
	e.string(spaMessage, a.Message)
	e.string(spaAvatar, a.Avatar)
	e.int32(spaCountry, a.CountryCode)
	e.int32(spaFlagType, a.FlagType)
	e.int32(spaMascot, a.Mascot)
	e.int64(spaSubgroup, a.EventSubgroup)
	return e.b
}

func DecodeSocialAction(b []byte) (SocialAction, error) {
	var a SocialAction
	err := walk(b, func(f field) error {
		switch f.num {
		case spaPlayerID:
			a.PlayerID = models.ParticipantID(f.int64())
		case spaToPlayerID:
			a.ToPlayerID = models.ParticipantID(f.int64())
		case spaType:
			a.Type = f.int32()
		case spaFirstName:
			a.FirstName = f.string()
		case spaLastName:
			a.LastName = f.string()
		case spaMessage:
			a.Message = f.string()
		case spaAvatar:
			a.Avatar = f.string()
		case spaCountry:
			a.CountryCode = f.int32()
		case spaFlagType:
			a.FlagType = f.int32()
		case spaMascot:
			a.Mascot = f.int32()
		case spaSubgroup:
			a.EventSubgroup = f.int64()
		}
		return nil
	})
	return a, err
}

// RideOn is the kudos payload.
type RideOn struct {
	RiderID     models.ParticipantID
	ToRiderID   models.ParticipantID
	FirstName   string
	LastName    string
	CountryCode int32
}

const (
	roRiderID   protowire.Number = 1
	roToRiderID protowire.Number = 2
	roFirstName protowire.Number = 3
	roLastName  protowire.Number = 4
	roCountry   protowire.Number = 5
)

func (r RideOn) Marshal() []byte {
	e := encoder{}
	e.int64Always(roRiderID, int64(r.RiderID))
	e.int64Always(roToRiderID, int64(r.ToRiderID))
	e.string(roFirstName, r.FirstName)
	e.string(roLastName, r.LastName)
	e.int32(roCountry, r.CountryCode)
	return e.b
}

func DecodeRideOn(b []byte) (RideOn, error) {
	var r RideOn
	err := walk(b, func(f field) error {
		switch f.num {
		case roRiderID:
			r.RiderID = models.ParticipantID(f.int64())
		case roToRiderID:
			r.ToRiderID = models.ParticipantID(f.int64())
		case roFirstName:
			r.FirstName = f.string()
		case roLastName:
			r.LastName = f.string()
		case roCountry:
			r.CountryCode = f.int32()
		}
		return nil
	})
	return r, err
}

const (
	srID            protowire.Number = 1
	srPlayerID      protowire.Number = 2
	srRealm         protowire.Number = 3
	srCourse        protowire.Number = 4
	srSegment       protowire.Number = 5
	srSubgroup      protowire.Number = 6
	srFirstName     protowire.Number = 7
	srLastName      protowire.Number = 8
	srWorldTime     protowire.Number = 9
	srFinishTimeStr protowire.Number = 10
	srElapsedMs     protowire.Number = 11
	srWeight        protowire.Number = 13
	srAvgPower      protowire.Number = 15
	srMale          protowire.Number = 16
	srPlayerType    protowire.Number = 18
	srAvgHR         protowire.Number = 19
	srSport         protowire.Number = 20
	srActivityID    protowire.Number = 21
)

func EncodeSegmentResult(r models.SegmentResult) []byte {
	e := encoder{}
	e.int64Always(srID, r.ID)
	e.int64Always(srPlayerID, int64(r.PlayerID))
	e.int64Always(srRealm, r.RealmID)
	e.int32(srCourse, r.CourseID)
	e.int64Always(srSegment, r.SegmentID)
	e.int64(srSubgroup, r.EventSubgroupID)
	e.string(srFirstName, r.FirstName)
	e.string(srLastName, r.LastName)
	e.int64(srWorldTime, r.WorldTime)
	e.string(srFinishTimeStr, r.FinishTimeStr)
	e.int64Always(srElapsedMs, r.ElapsedMs)
	e.int32(srWeight, r.WeightGrams)
	e.int32(srAvgPower, r.AvgPower)
	e.boolAlways(srMale, r.Male)
	e.int32(srPlayerType, int32(r.PlayerType))
	e.int32(srAvgHR, r.AvgHR)
	e.int32(srSport, int32(r.Sport))
	e.int64(srActivityID, r.ActivityID)
	return e.b
}

func DecodeSegmentResult(b []byte) (models.SegmentResult, error) {
	var r models.SegmentResult
	err := walk(b, func(f field) error {
		switch f.num {
		case srID:
			r.ID = f.int64()
		case srPlayerID:
			r.PlayerID = models.ParticipantID(f.int64())
		case srRealm:
			r.RealmID = f.int64()
		case srCourse:
			r.CourseID = f.int32()
		case srSegment:
			r.SegmentID = f.int64()
		case srSubgroup:
			r.EventSubgroupID = f.int64()
		case srFirstName:
			r.FirstName = f.string()
		case srLastName:
			r.LastName = f.string()
		case srWorldTime:
			r.WorldTime = f.int64()
		case srFinishTimeStr:
			r.FinishTimeStr = f.string()
		case srElapsedMs:
			r.ElapsedMs = f.int64()
		case srWeight:
			r.WeightGrams = f.int32()
		case srAvgPower:
			r.AvgPower = f.int32()
		case srMale:
			r.Male = f.bool()
		case srPlayerType:
			r.PlayerType = models.PlayerType(f.int32())
		case srAvgHR:
			r.AvgHR = f.int32()
		case srSport:
			r.Sport = models.Sport(f.int32())
		case srActivityID:
			r.ActivityID = f.int64()
		}
		return nil
	})
	return r, err
}

// SubgroupAction is the payload of event join and leave frames.
type SubgroupAction struct {
	EventID    int64
	SubgroupID int64
	PlayerID   models.ParticipantID
}

const (
	esaEventID    protowire.Number = 1
	esaSubgroupID protowire.Number = 2
	esaPlayerID   protowire.Number = 3
)

func (a SubgroupAction) Marshal() []byte {
	e := encoder{}
	e.int64Always(esaEventID, a.EventID)
	e.int64Always(esaSubgroupID, a.SubgroupID)
	e.int64Always(esaPlayerID, int64(a.PlayerID))
	return e.b
}

func DecodeSubgroupAction(b []byte) (SubgroupAction, error) {
	var a SubgroupAction
	err := walk(b, func(f field) error {
		switch f.num {
		case esaEventID:
			a.EventID = f.int64()
		case esaSubgroupID:
			a.SubgroupID = f.int64()
		case esaPlayerID:
			a.PlayerID = models.ParticipantID(f.int64())
		}
		return nil
	})
	return a, err
}

// InviteNotice is the payload of event invite and invite removed frames.
type InviteNotice struct {
	EventID   int64
	Inviter   models.ParticipantID
	Invitee   models.ParticipantID
	Name      string
	StartTime int64
}

const (
	inEventID   protowire.Number = 1
	inInviter   protowire.Number = 2
	inInvitee   protowire.Number = 3
	inName      protowire.Number = 4
	inStartTime protowire.Number = 5
)

func (n InviteNotice) Marshal() []byte {
	e := encoder{}
	e.int64Always(inEventID, n.EventID)
	e.int64Always(inInviter, int64(n.Inviter))
	e.int64Always(inInvitee, int64(n.Invitee))
	e.string(inName, n.Name)
	e.int64(inStartTime, n.StartTime)
	return e.b
}

func DecodeInviteNotice(b []byte) (InviteNotice, error) {
	var n InviteNotice
	err := walk(b, func(f field) error {
		switch f.num {
		case inEventID:
			n.EventID = f.int64()
		case inInviter:
			n.Inviter = models.ParticipantID(f.int64())
		case inInvitee:
			n.Invitee = models.ParticipantID(f.int64())
		case inName:
			n.Name = f.string()
		case inStartTime:
			n.StartTime = f.int64()
		}
		return nil
	})
	return n, err
}
