package tcp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	repo "github.com/vogiaan1904/pelotond/internal/repository/redis"
	"github.com/vogiaan1904/pelotond/internal/service"
	"github.com/vogiaan1904/pelotond/internal/world"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
)

const testHeartbeat = 20 * time.Millisecond

func newRelay(t *testing.T) (service.RelayService, *world.World) {
	t.Helper()
	l := logger.NewNop()
	cli, err := redis.NewEmbedded()
	if err != nil {
		t.Fatalf("embedded redis: %v", err)
	}
	t.Cleanup(func() { cli.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{TCPPort: 3025, UDPPort: 3022, PublicIP: "10.0.0.1"},
		Relay: config.RelayConfig{
			HeartbeatInterval: testHeartbeat,
			QueueDepth:        16,
			FrameTTL:          time.Minute,
			ProximityRadius:   world.DefaultProximityRadius,
			RealmID:           1,
		},
		JWT: config.JWTConfig{Expiry: time.Hour},
	}
	profiles := repo.NewRedisProfileRepository(cli, l)
	w := world.New(world.Config{QueueDepth: 16, ProximityRadius: world.DefaultProximityRadius}, profiles, l)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start world: %v", err)
	}
	t.Cleanup(w.Stop)

	svc := service.NewRelayService(w, profiles, repo.NewRedisSegmentResultRepository(cli, l), producer.NewNopProducer(), nil, cfg, l)
	return svc, w
}

func login(t *testing.T, svc service.RelayService, id models.ParticipantID) *service.LoginOutput {
	t.Helper()
	st := &models.PositionState{ID: id}
	st.SetRoadLocation(6, true, 1)
	out, err := svc.Login(context.Background(), service.LoginInput{
		ParticipantID: id,
		RelayKey:      []byte("0123456789abcdef"),
		State:         st,
		Profile:       &models.FullProfile{FirstName: "Tcp", LastName: id.String()},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return out
}

func readFrame(t *testing.T, c net.Conn) []byte {
	t.Helper()
	if err := c.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	pkt, err := protocol.ReadFrame(c)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return pkt
}

func writeFrame(t *testing.T, c net.Conn, pkt []byte) {
	t.Helper()
	if err := c.SetWriteDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	if err := protocol.WriteFrame(c, pkt); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestStreamBootstrapHeartbeatAndWriteFailure(t *testing.T) {
	svc, w := newRelay(t)
	out := login(t, svc, 5)

	s := NewServer(svc, config.RelayConfig{HeartbeatInterval: testHeartbeat}, logger.NewNop())
	client, srv := net.Pipe()
	done := make(chan struct{})
	go func() {
		s.handle(context.Background(), srv)
		close(done)
	}()

	if got := readFrame(t, client); !bytes.Equal(got, svc.Bootstrap()) {
		t.Fatalf("first frame is not the bootstrap frame")
	}

	// Undecodable frames are dropped without closing the stream.
	writeFrame(t, client, nil)

	hello := protocol.Packet(
		protocol.Header{RelayID: out.RelaySessionID, HasRelayID: true, Seqno: 1, HasSeqno: true},
		protocol.ClientToServer{RealmID: 1, PlayerID: 5, Seqno: 1}.Marshal(),
	)
	writeFrame(t, client, hello)

	_, payload, err := protocol.ParseHeader(readFrame(t, client))
	if err != nil {
		t.Fatalf("parse heartbeat header: %v", err)
	}
	hb, err := protocol.DecodeServerToClient(payload)
	if err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if hb.PlayerID != 5 {
		t.Fatalf("expected heartbeat for 5, got %d", hb.PlayerID)
	}

	sess, ok := w.Session(context.Background(), 5)
	if !ok || !sess.TCPConnected {
		t.Fatal("expected TCP side attached")
	}

	client.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream not torn down after write failure")
	}

	if _, ok := w.Get(context.Background(), 5); !ok {
		t.Fatal("participant 5 must stay online after the stream closes")
	}
	sess, ok = w.Session(context.Background(), 5)
	if !ok {
		t.Fatal("session must survive the stream")
	}
	if sess.TCPConnected || sess.TCP.HasRecv {
		t.Fatalf("expected TCP receive side released, got %+v", sess.TCP)
	}
	if sess.TCP.Sent < hb.Seqno {
		t.Fatalf("send seq must not go back after a close, got %d < %d", sess.TCP.Sent, hb.Seqno)
	}
}

// startStream runs one server-side stream over a pipe and consumes the
// bootstrap frame.
func startStream(t *testing.T, s *Server) (net.Conn, <-chan struct{}) {
	t.Helper()
	client, srv := net.Pipe()
	done := make(chan struct{})
	go func() {
		s.handle(context.Background(), srv)
		close(done)
	}()
	t.Cleanup(func() { client.Close() })
	readFrame(t, client)
	return client, done
}

func streamHello(relayID uint32, connID uint16, seq uint32) []byte {
	return protocol.Packet(
		protocol.Header{
			RelayID: relayID, HasRelayID: true,
			ConnID: connID, HasConnID: true,
			Seqno: seq, HasSeqno: true,
		},
		protocol.ClientToServer{RealmID: 1, PlayerID: 5}.Marshal(),
	)
}

func readHeartbeat(t *testing.T, c net.Conn) protocol.ServerToClient {
	t.Helper()
	_, payload, err := protocol.ParseHeader(readFrame(t, c))
	if err != nil {
		t.Fatalf("parse heartbeat header: %v", err)
	}
	hb, err := protocol.DecodeServerToClient(payload)
	if err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	return hb
}

func waitClosed(t *testing.T, done <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

func TestReconnectSupersedesOldStream(t *testing.T) {
	ctx := context.Background()
	svc, w := newRelay(t)
	out := login(t, svc, 5)
	s := NewServer(svc, config.RelayConfig{HeartbeatInterval: testHeartbeat}, logger.NewNop())

	clientA, doneA := startStream(t, s)
	writeFrame(t, clientA, streamHello(out.RelaySessionID, 1, 1))
	readHeartbeat(t, clientA)
	// Keep reading so stream A is never blocked on a write.
	go func() {
		for {
			if _, err := protocol.ReadFrame(clientA); err != nil {
				return
			}
		}
	}()

	clientB, doneB := startStream(t, s)
	writeFrame(t, clientB, streamHello(out.RelaySessionID, 2, 7))
	first := readHeartbeat(t, clientB)

	waitClosed(t, doneA, "replaced stream A kept running")

	sess, _ := w.Session(ctx, 5)
	if !sess.TCPConnected || sess.TCP.LastRecv != 7 || !sess.TCP.HasRecv {
		t.Fatalf("closing stream A must not touch stream B, got %+v", sess)
	}
	if w.Accept(ctx, 5, models.ChannelTCP, 7) {
		t.Fatal("seqno 7 must stay a duplicate on stream B")
	}

	next := readHeartbeat(t, clientB)
	if next.Seqno <= first.Seqno {
		t.Fatalf("heartbeat seqno went back on stream B: %d -> %d", first.Seqno, next.Seqno)
	}

	clientB.Close()
	waitClosed(t, doneB, "stream B not torn down")
	if sess, _ := w.Session(ctx, 5); sess.TCPConnected {
		t.Fatal("closing the owning stream must release the TCP side")
	}
}

func TestSweptStreamCloses(t *testing.T) {
	ctx := context.Background()
	svc, w := newRelay(t)
	out := login(t, svc, 5)
	s := NewServer(svc, config.RelayConfig{HeartbeatInterval: testHeartbeat}, logger.NewNop())

	client, done := startStream(t, s)
	writeFrame(t, client, streamHello(out.RelaySessionID, 1, 1))
	readHeartbeat(t, client)

	if ids := w.Sweep(ctx, time.Nanosecond); len(ids) != 1 || ids[0] != 5 {
		t.Fatalf("expected 5 swept, got %v", ids)
	}
	go func() {
		for {
			if _, err := protocol.ReadFrame(client); err != nil {
				return
			}
		}
	}()
	waitClosed(t, done, "swept stream kept its socket open")

	if _, ok := w.Get(ctx, 5); !ok {
		t.Fatal("sweep must keep the rider online")
	}
}

func TestStreamWithoutHelloSendsNoHeartbeat(t *testing.T) {
	svc, _ := newRelay(t)
	login(t, svc, 6)

	s := NewServer(svc, config.RelayConfig{HeartbeatInterval: testHeartbeat}, logger.NewNop())
	client, srv := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.handle(ctx, srv)
		close(done)
	}()
	readFrame(t, client)

	if err := client.SetReadDeadline(time.Now().Add(5 * testHeartbeat)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	if _, err := protocol.ReadFrame(client); err == nil {
		t.Fatal("expected no heartbeat before the stream is bound to a rider")
	}

	cancel()
	<-done
	client.Close()
}

func TestServeStopsWithContext(t *testing.T) {
	svc, _ := newRelay(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := NewServer(svc, config.RelayConfig{HeartbeatInterval: testHeartbeat}, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if got := readFrame(t, c); !bytes.Equal(got, svc.Bootstrap()) {
		t.Fatal("expected bootstrap frame")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}
