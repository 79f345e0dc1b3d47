package world

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/util"
)

var errProfileMissing = errors.New("profile missing")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(util.WorldEpochMillis + 1_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[models.ParticipantID]models.FullProfile
	calls    int
	// gate, when set, blocks loads until closed.
	gate chan struct{}
}

func newFakeProfiles(ps ...models.FullProfile) *fakeProfiles {
	f := &fakeProfiles{profiles: make(map[models.ParticipantID]models.FullProfile)}
	for _, p := range ps {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) LoadFullProfile(ctx context.Context, id models.ParticipantID) (models.FullProfile, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return models.FullProfile{}, errProfileMissing
	}
	return p, nil
}

func (f *fakeProfiles) set(p models.FullProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = p
}

func (f *fakeProfiles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePool struct {
	mu       sync.Mutex
	kind     models.ParticipantKind
	states   map[models.ParticipantID]models.PositionState
	profiles map[models.ParticipantID]models.PartialProfile
	// vanish lists ids reported by IDs but gone by Position.
	vanish map[models.ParticipantID]bool
}

func newFakePool(kind models.ParticipantKind) *fakePool {
	return &fakePool{
		kind:     kind,
		states:   make(map[models.ParticipantID]models.PositionState),
		profiles: make(map[models.ParticipantID]models.PartialProfile),
		vanish:   make(map[models.ParticipantID]bool),
	}
}

func (p *fakePool) put(s models.PositionState, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[s.ID] = s
	p.profiles[s.ID] = models.PartialProfile{ID: s.ID, FirstName: name}
}

func (p *fakePool) Kind() models.ParticipantKind { return p.kind }

func (p *fakePool) IDs() []models.ParticipantID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []models.ParticipantID
	for id := range p.states {
		ids = append(ids, id)
	}
	for id := range p.vanish {
		ids = append(ids, id)
	}
	return ids
}

func (p *fakePool) Position(id models.ParticipantID) (models.PositionState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.states[id]
	return s, ok
}

func (p *fakePool) Profile(id models.ParticipantID) (models.PartialProfile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.profiles[id]
	return pr, ok
}

func at(id models.ParticipantID, course int32, road int32, x, y float32) models.PositionState {
	s := models.PositionState{ID: id, X: x, Y: y}
	s.SetRoadLocation(course, true, road)
	return s
}

func startWorld(t *testing.T, clock *fakeClock, profiles ProfileStore, pools ...Pool) *World {
	t.Helper()
	if profiles == nil {
		profiles = newFakeProfiles()
	}
	w := New(Config{QueueDepth: 8, ProximityRadius: DefaultProximityRadius, Now: clock.Now}, profiles, logger.NewNop(), pools...)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func chatFrame(origin models.ParticipantID, expire int64) models.Frame {
	return models.Frame{
		Type:            models.FrameSocialAction,
		OriginID:        origin,
		WorldTimeExpire: expire,
	}
}
