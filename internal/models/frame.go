package models

// FrameType is the tag of a WorldAttribute. The payload schema is fixed by the
// tag alone.
type FrameType int32

const (
	FrameRideOn             FrameType = 4
	FrameSocialAction       FrameType = 5
	FrameEventJoin          FrameType = 7
	FrameEventLeave         FrameType = 8
	FrameSegmentResult      FrameType = 17
	FrameEventInvite        FrameType = 24
	FrameEventInviteRemoved FrameType = 25
)

func (t FrameType) String() string {
	switch t {
	case FrameRideOn:
		return "ride_on"
	case FrameSocialAction:
		return "social_action"
	case FrameEventJoin:
		return "event_join"
	case FrameEventLeave:
		return "event_leave"
	case FrameSegmentResult:
		return "segment_result"
	case FrameEventInvite:
		return "event_invite"
	case FrameEventInviteRemoved:
		return "event_invite_removed"
	default:
		return "unknown"
	}
}

// Targeted frames go to an explicit recipient list, never through the
// distance test.
func (t FrameType) Targeted() bool {
	switch t {
	case FrameRideOn, FrameEventJoin, FrameEventLeave, FrameEventInvite, FrameEventInviteRemoved:
		return true
	default:
		return false
	}
}

// Frame is a decoded WorldAttribute envelope. Payload stays encoded; decode it
// with the codec matching Type.
type Frame struct {
	ID              int64
	RealmID         int64
	Type            FrameType
	OriginID        ParticipantID
	Payload         []byte
	WorldTimeBorn   int64
	WorldTimeExpire int64
	Timestamp       int64
	Importance      int32
}

// Expired reports whether the frame is past its expiry at world time now.
// A zero expiry never expires.
func (f Frame) Expired(now int64) bool {
	return f.WorldTimeExpire != 0 && now > f.WorldTimeExpire
}
