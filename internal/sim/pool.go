package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
)

// Point is one recorded sample of a route.
type Point struct {
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Altitude float32 `json:"altitude"`
	Course   int32   `json:"course"`
	Road     int32   `json:"road"`
	Forward  bool    `json:"forward"`
	RoadTime int32   `json:"road_time"`
	Speed    int32   `json:"speed"`
	Power    int32   `json:"power"`
	Cadence  int32   `json:"cadence"`
	Distance int32   `json:"distance"`
	Time     int32   `json:"time"`
	Sport    int32   `json:"sport"`
}

func (p Point) state(id models.ParticipantID) models.PositionState {
	s := models.PositionState{
		ID:       id,
		X:        p.X,
		Y:        p.Y,
		Altitude: p.Altitude,
		RoadTime: p.RoadTime,
		Speed:    p.Speed,
		Power:    p.Power,
		Cadence:  p.Cadence,
		Distance: p.Distance,
		Time:     p.Time,
		Sport:    models.Sport(p.Sport),
	}
	s.SetRoadLocation(p.Course, p.Forward, p.Road)
	return s
}

// Route is a precomputed path followed by one simulated participant.
// Ghost routes carry the game they were recorded in instead of an id.
type Route struct {
	ID      models.ParticipantID  `json:"id"`
	GameID  int64                 `json:"game_id,omitempty"`
	Loop    bool                  `json:"loop"`
	Profile models.PartialProfile `json:"profile"`
	Points  []Point               `json:"points"`
}

// LoadRoutes reads a JSON array of routes. An empty path yields no routes.
func LoadRoutes(path string) ([]Route, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim.LoadRoutes: %w", err)
	}
	var routes []Route
	if err := json.Unmarshal(raw, &routes); err != nil {
		return nil, fmt.Errorf("sim.LoadRoutes: decode %s: %w", path, err)
	}
	return routes, nil
}

type member struct {
	route Route
	idx   int
}

// RoutePool replays routes for one kind of simulated participant. It is the
// only writer of its members; the world reads it through the Pool methods.
type RoutePool struct {
	kind models.ParticipantKind
	l    logger.Logger

	mu      sync.RWMutex
	members map[models.ParticipantID]*member
}

// NewRoutePool builds a pool. For ghosts, ids are derived from ghostBase and
// the route's game id; other kinds use the route id as is.
func NewRoutePool(kind models.ParticipantKind, ghostBase int64, routes []Route, l logger.Logger) *RoutePool {
	p := &RoutePool{kind: kind, l: l, members: make(map[models.ParticipantID]*member)}
	perGame := make(map[int64]int64)
	for _, r := range routes {
		if len(r.Points) == 0 {
			continue
		}
		if kind == models.KindGhost {
			r.ID = models.GhostID(ghostBase, r.GameID, perGame[r.GameID])
			perGame[r.GameID]++
		}
		if r.Profile.ID == 0 {
			r.Profile.ID = r.ID
		}
		if kind == models.KindPacePartner && r.Profile.PlayerType == 0 {
			r.Profile.PlayerType = models.PlayerTypePacerBot
		}
		if kind == models.KindGhost && r.Profile.PlayerType == 0 {
			r.Profile.PlayerType = models.PlayerTypeGhost
		}
		p.members[r.ID] = &member{route: r}
	}
	return p
}

func (p *RoutePool) Kind() models.ParticipantKind {
	return p.kind
}

func (p *RoutePool) IDs() []models.ParticipantID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]models.ParticipantID, 0, len(p.members))
	for id := range p.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *RoutePool) Position(id models.ParticipantID) (models.PositionState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.members[id]
	if !ok {
		return models.PositionState{}, false
	}
	return m.route.Points[m.idx].state(id), true
}

func (p *RoutePool) Profile(id models.ParticipantID) (models.PartialProfile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.members[id]
	if !ok {
		return models.PartialProfile{}, false
	}
	return m.route.Profile, true
}

// Advance moves every member one point along its route. Looping routes wrap;
// the others leave the pool after their last point.
func (p *RoutePool) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, m := range p.members {
		m.idx++
		if m.idx < len(m.route.Points) {
			continue
		}
		if m.route.Loop {
			m.idx = 0
			continue
		}
		delete(p.members, id)
	}
}

// Run advances the pool on every tick until ctx is done.
func (p *RoutePool) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.l.Infof(ctx, "sim.RoutePool.Run: %s pool started with %d members", p.kind, len(p.IDs()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Advance()
		}
	}
}
