package models

import "fmt"

// ParticipantID identifies anything that can appear in the world: a human
// account, a pace partner, a bot or a ghost instance.
type ParticipantID int64

func (id ParticipantID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// GhostIDStride separates the id blocks of two ghost games.
const GhostIDStride = 10_000_000

// GhostID derives the synthetic id of the n-th ghost replayed for gameID.
func GhostID(base, gameID, n int64) ParticipantID {
	return ParticipantID(base + gameID*GhostIDStride + n)
}

type ParticipantKind int

const (
	KindHuman ParticipantKind = iota
	KindPacePartner
	KindBot
	KindGhost
)

func (k ParticipantKind) String() string {
	switch k {
	case KindHuman:
		return "human"
	case KindPacePartner:
		return "pace_partner"
	case KindBot:
		return "bot"
	case KindGhost:
		return "ghost"
	default:
		return "unknown"
	}
}

type Sport int32

const (
	SportCycling Sport = 0
	SportRunning Sport = 1
)

// Name is the human-readable sport used by JSON clients.
func (s Sport) Name() string {
	switch s {
	case SportCycling:
		return "CYCLING"
	case SportRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

type PlayerType int32

const (
	PlayerTypeNormal     PlayerType = 1
	PlayerTypeProCyclist PlayerType = 2
	PlayerTypeStaff      PlayerType = 3
	PlayerTypeAmbassador PlayerType = 4
	PlayerTypeVerified   PlayerType = 5
	PlayerTypePacerBot   PlayerType = 10
	PlayerTypeGhost      PlayerType = 11
)
