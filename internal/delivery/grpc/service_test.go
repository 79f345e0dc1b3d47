package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/pelotond/internal/models"
	repo "github.com/vogiaan1904/pelotond/internal/repository/redis"
	"github.com/vogiaan1904/pelotond/internal/service"
	"github.com/vogiaan1904/pelotond/internal/world"
	pkgGrpc "github.com/vogiaan1904/pelotond/pkg/grpc"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newRelay(t *testing.T) (service.RelayService, *world.World) {
	t.Helper()
	l := logger.NewNop()
	cli, err := redis.NewEmbedded()
	if err != nil {
		t.Fatalf("embedded redis: %v", err)
	}
	t.Cleanup(func() { cli.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{UDPPort: 3022, PublicIP: "127.0.0.1"},
		Relay: config.RelayConfig{
			QueueDepth:      16,
			FrameTTL:        time.Minute,
			ProximityRadius: world.DefaultProximityRadius,
			RealmID:         1,
		},
		JWT: config.JWTConfig{Expiry: time.Hour},
	}
	profiles := repo.NewRedisProfileRepository(cli, l)
	w := world.New(world.Config{QueueDepth: 16, ProximityRadius: world.DefaultProximityRadius}, profiles, l)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start world: %v", err)
	}
	t.Cleanup(w.Stop)
	return service.NewRelayService(w, profiles, repo.NewRedisSegmentResultRepository(cli, l), producer.NewNopProducer(), nil, cfg, l), w
}

func newClient(t *testing.T, svc service.RelayService) (pkgGrpc.WorldClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterWorldServiceServer(srv, NewWorldService(svc, logger.NewNop()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	client, cleanup, err := pkgGrpc.NewWorldClient("passthrough:///bufnet", dialer)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(cleanup)

	conn, err := grpc.NewClient("passthrough:///bufnet", dialer, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("health conn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return client, conn
}

func login(t *testing.T, svc service.RelayService, id models.ParticipantID, course int32) {
	t.Helper()
	st := &models.PositionState{ID: id}
	st.SetRoadLocation(course, true, 1)
	if _, err := svc.Login(context.Background(), service.LoginInput{
		ParticipantID: id,
		RelayKey:      []byte("k"),
		State:         st,
		Profile:       &models.FullProfile{FirstName: "Admin", LastName: id.String()},
	}); err != nil {
		t.Fatalf("login %d: %v", id, err)
	}
}

func TestHealthServing(t *testing.T) {
	svc, _ := newRelay(t)
	_, conn := newClient(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pkgGrpc.WaitForHealth(ctx, conn, ""); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestGetWorldCounts(t *testing.T) {
	svc, _ := newRelay(t)
	client, _ := newClient(t, svc)
	login(t, svc, 1, 6)
	login(t, svc, 2, 6)
	login(t, svc, 3, 13)

	out, err := client.GetWorldCounts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	fields := out.GetFields()
	if got := fields["total"].GetNumberValue(); got != 3 {
		t.Fatalf("expected total 3, got %v", got)
	}
	courses := fields["courses"].GetStructValue().GetFields()
	if courses["6"].GetNumberValue() != 2 || courses["13"].GetNumberValue() != 1 {
		t.Fatalf("unexpected per-course counts: %v", courses)
	}
	if fields["online"].GetNumberValue() != 3 {
		t.Fatalf("expected 3 online, got %v", fields["online"])
	}
}

func TestListOnlineAndKick(t *testing.T) {
	svc, w := newRelay(t)
	client, _ := newClient(t, svc)
	login(t, svc, 8, 6)

	list, err := client.ListOnline(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.GetValues()) != 1 {
		t.Fatalf("expected 1 rider, got %d", len(list.GetValues()))
	}
	row := list.GetValues()[0].GetStructValue().GetFields()
	if row["participant_id"].GetNumberValue() != 8 || !row["has_session"].GetBoolValue() {
		t.Fatalf("unexpected row: %v", row)
	}

	if err := client.Kick(context.Background(), 8); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if _, ok := w.Get(context.Background(), 8); ok {
		t.Fatal("expected rider 8 offline after kick")
	}

	tests := []struct {
		name string
		id   int64
		code codes.Code
	}{
		{"offline rider", 8, codes.NotFound},
		{"invalid id", 0, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Kick(context.Background(), tt.id)
			if status.Code(err) != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}
