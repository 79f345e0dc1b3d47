package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	repo "github.com/vogiaan1904/pelotond/internal/repository/redis"
	"github.com/vogiaan1904/pelotond/internal/world"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
)

type fakeProducer struct {
	mu       sync.Mutex
	online   []kafka.RiderPresenceEvent
	offline  []kafka.RiderPresenceEvent
	segments []kafka.SegmentResultEvent
	invites  []kafka.EventInviteEvent
}

func (p *fakeProducer) PublishRiderOnline(_ context.Context, ev kafka.RiderPresenceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = append(p.online, ev)
	return nil
}

func (p *fakeProducer) PublishRiderOffline(_ context.Context, ev kafka.RiderPresenceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = append(p.offline, ev)
	return nil
}

func (p *fakeProducer) PublishSegmentResult(_ context.Context, ev kafka.SegmentResultEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.segments = append(p.segments, ev)
	return nil
}

func (p *fakeProducer) PublishEventInvite(_ context.Context, ev kafka.EventInviteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invites = append(p.invites, ev)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type fakeMirror struct {
	mu     sync.Mutex
	events []models.MirrorEvent
}

func (m *fakeMirror) Publish(_ context.Context, ev models.MirrorEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *fakeMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type delivery struct {
	t       models.FrameType
	origin  models.ParticipantID
	targets []models.ParticipantID
	notice  protocol.InviteNotice
}

type fakeDeliverer struct {
	mu   sync.Mutex
	sent []delivery
}

func (d *fakeDeliverer) Deliver(_ context.Context, t models.FrameType, origin models.ParticipantID, targets []models.ParticipantID, payload []byte) int {
	n, _ := protocol.DecodeInviteNotice(payload)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, delivery{t: t, origin: origin, targets: targets, notice: n})
	return len(targets)
}

func (d *fakeDeliverer) take() []delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.sent
	d.sent = nil
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{HTTPPort: 8080, TCPPort: 3025, UDPPort: 3022, PublicIP: "10.0.0.1"},
		Relay: config.RelayConfig{
			HeartbeatInterval: time.Second,
			IdleTimeout:       time.Minute,
			SweepInterval:     time.Second,
			QueueDepth:        16,
			FrameTTL:          time.Minute,
			ProximityRadius:   world.DefaultProximityRadius,
			RealmID:           1,
		},
		JWT: config.JWTConfig{Secret: "test", Issuer: "pelotond", Expiry: time.Hour},
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	cli, err := redis.NewEmbedded()
	if err != nil {
		t.Fatalf("embedded redis: %v", err)
	}
	t.Cleanup(func() { cli.Close() })
	return cli
}

type relayFixture struct {
	svc      RelayService
	world    *world.World
	prod     *fakeProducer
	mirror   *fakeMirror
	segments repo.SegmentResultRepository
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	l := logger.NewNop()
	cli := newTestRedis(t)
	profiles := repo.NewRedisProfileRepository(cli, l)
	segments := repo.NewRedisSegmentResultRepository(cli, l)

	cfg := testConfig()
	w := world.New(world.Config{QueueDepth: cfg.Relay.QueueDepth, ProximityRadius: cfg.Relay.ProximityRadius}, profiles, l)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start world: %v", err)
	}
	t.Cleanup(w.Stop)

	f := &relayFixture{
		world:    w,
		prod:     &fakeProducer{},
		mirror:   &fakeMirror{},
		segments: segments,
	}
	f.svc = NewRelayService(w, profiles, segments, f.prod, f.mirror, cfg, l)
	return f
}

// at places a rider on course at (x, y) on road.
func at(id models.ParticipantID, course int32, road int32, x, y float32) *models.PositionState {
	s := models.PositionState{ID: id, X: x, Y: y}
	s.SetRoadLocation(course, true, road)
	return &s
}

func (f *relayFixture) login(t *testing.T, id models.ParticipantID, st *models.PositionState) *LoginOutput {
	t.Helper()
	out, err := f.svc.Login(context.Background(), LoginInput{
		ParticipantID: id,
		RelayKey:      []byte("0123456789abcdef"),
		State:         st,
		Profile:       &models.FullProfile{FirstName: "Rider", LastName: id.String(), CountryCode: 250},
	})
	if err != nil {
		t.Fatalf("login %d: %v", id, err)
	}
	return out
}

func (f *relayFixture) drainTypes(t *testing.T, id models.ParticipantID) []models.FrameType {
	t.Helper()
	var types []models.FrameType
	for _, raw := range f.world.Drain(context.Background(), id) {
		fr, err := protocol.DecodeFrame(raw)
		if err != nil {
			t.Fatalf("decode queued frame: %v", err)
		}
		types = append(types, fr.Type)
	}
	return types
}
