package world

import (
	"sort"

	"github.com/vogiaan1904/pelotond/internal/models"
)

type registryEntry struct {
	state models.PositionState
	gen   uint64
}

// registry holds the online humans. Every registration gets a fresh
// generation so late writers can tell whether the participant they started
// working for is still the one online.
type registry struct {
	entries map[models.ParticipantID]*registryEntry
	nextGen uint64
}

func newRegistry() *registry {
	return &registry{entries: make(map[models.ParticipantID]*registryEntry)}
}

func (r *registry) register(id models.ParticipantID, s models.PositionState) uint64 {
	r.nextGen++
	s.ID = id
	r.entries[id] = &registryEntry{state: s, gen: r.nextGen}
	return r.nextGen
}

func (r *registry) update(id models.ParticipantID, s models.PositionState) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	s.ID = id
	e.state = s
	return true
}

func (r *registry) unregister(id models.ParticipantID) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

func (r *registry) get(id models.ParticipantID) (models.PositionState, bool) {
	e, ok := r.entries[id]
	if !ok {
		return models.PositionState{}, false
	}
	return e.state, true
}

// generation returns 0 for absent participants.
func (r *registry) generation(id models.ParticipantID) uint64 {
	if e, ok := r.entries[id]; ok {
		return e.gen
	}
	return 0
}

func (r *registry) ids() []models.ParticipantID {
	out := make([]models.ParticipantID, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *registry) states() []models.PositionState {
	out := make([]models.PositionState, 0, len(r.entries))
	for _, id := range r.ids() {
		out = append(out, r.entries[id].state)
	}
	return out
}
