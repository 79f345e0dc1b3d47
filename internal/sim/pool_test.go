package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
)

func twoPoints() []Point {
	return []Point{
		{X: 1, Course: 6, Road: 3, Forward: true, Power: 200},
		{X: 2, Course: 6, Road: 3, Forward: true, Power: 210},
	}
}

func TestPacePartnerLoops(t *testing.T) {
	p := NewRoutePool(models.KindPacePartner, 0, []Route{{ID: 5, Loop: true, Points: twoPoints()}}, logger.NewNop())

	s, ok := p.Position(5)
	if !ok || s.X != 1 || s.Course() != 6 || s.RoadID() != 3 || !s.IsForward() {
		t.Fatalf("unexpected start %+v", s)
	}
	p.Advance()
	p.Advance()
	if s, _ := p.Position(5); s.X != 1 {
		t.Fatalf("looping route must wrap, got x=%v", s.X)
	}
	prof, _ := p.Profile(5)
	if prof.PlayerType != models.PlayerTypePacerBot || prof.ID != 5 {
		t.Fatalf("unexpected pacer profile %+v", prof)
	}
}

func TestGhostIDsAndExpiry(t *testing.T) {
	routes := []Route{
		{GameID: 3, Points: twoPoints()},
		{GameID: 3, Points: twoPoints()[:1]},
		{GameID: 4, Points: nil},
	}
	p := NewRoutePool(models.KindGhost, 1_000_000_000, routes, logger.NewNop())

	ids := p.IDs()
	want := []models.ParticipantID{models.GhostID(1_000_000_000, 3, 0), models.GhostID(1_000_000_000, 3, 1)}
	if len(ids) != 2 || ids[0] != want[0] || ids[1] != want[1] {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if ids[0] != 1_030_000_000 {
		t.Fatalf("unexpected ghost id arithmetic: %d", ids[0])
	}

	p.Advance()
	if _, ok := p.Position(want[1]); ok {
		t.Fatal("finished ghost must leave the pool")
	}
	if _, ok := p.Position(want[0]); !ok {
		t.Fatal("ghost with points left must stay")
	}
}

func TestLoadRoutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bots.json")
	body := `[{"id": 42, "loop": true, "profile": {"first_name": "Bot"}, "points": [{"x": 1, "course": 6}]}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	routes, err := LoadRoutes(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(routes) != 1 || routes[0].ID != 42 || routes[0].Profile.FirstName != "Bot" {
		t.Fatalf("unexpected routes %+v", routes)
	}

	if routes, err := LoadRoutes(""); err != nil || routes != nil {
		t.Fatalf("empty path must yield nothing, got %v, %v", routes, err)
	}
}
