package world

import (
	"context"

	"github.com/vogiaan1904/pelotond/internal/models"
)

// Pool is a read-only view of simulated participants of one kind.
type Pool interface {
	Kind() models.ParticipantKind
	IDs() []models.ParticipantID
	Position(id models.ParticipantID) (models.PositionState, bool)
	Profile(id models.ParticipantID) (models.PartialProfile, bool)
}

// ProfileStore loads the full profile of a human participant.
type ProfileStore interface {
	LoadFullProfile(ctx context.Context, id models.ParticipantID) (models.FullProfile, error)
}

// Participant is anything that can be looked up in the world. The concrete
// type is one of Human, PacePartner, Bot or Ghost.
type Participant interface {
	ID() models.ParticipantID
	Kind() models.ParticipantKind
	Position() (models.PositionState, bool)
	Profile() (models.PartialProfile, bool)
}

// Human is an online human. Its state and profile are copies taken at lookup
// time.
type Human struct {
	state      models.PositionState
	profile    models.PartialProfile
	hasProfile bool
}

func (h Human) ID() models.ParticipantID               { return h.state.ID }
func (h Human) Kind() models.ParticipantKind           { return models.KindHuman }
func (h Human) Position() (models.PositionState, bool) { return h.state, true }
func (h Human) Profile() (models.PartialProfile, bool) { return h.profile, h.hasProfile }

// poolMember reads through to the owning pool on every call.
type poolMember struct {
	id   models.ParticipantID
	pool Pool
}

func (m poolMember) ID() models.ParticipantID               { return m.id }
func (m poolMember) Position() (models.PositionState, bool) { return m.pool.Position(m.id) }
func (m poolMember) Profile() (models.PartialProfile, bool) { return m.pool.Profile(m.id) }

type PacePartner struct{ poolMember }

func (PacePartner) Kind() models.ParticipantKind { return models.KindPacePartner }

type Bot struct{ poolMember }

func (Bot) Kind() models.ParticipantKind { return models.KindBot }

type Ghost struct{ poolMember }

func (Ghost) Kind() models.ParticipantKind { return models.KindGhost }

func newPoolParticipant(pool Pool, id models.ParticipantID) Participant {
	m := poolMember{id: id, pool: pool}
	switch pool.Kind() {
	case models.KindPacePartner:
		return PacePartner{m}
	case models.KindGhost:
		return Ghost{m}
	default:
		return Bot{m}
	}
}
