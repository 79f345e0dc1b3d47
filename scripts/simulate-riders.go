package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/auth"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	pkgGrpc "github.com/vogiaan1904/pelotond/pkg/grpc"
)

var (
	httpAddr  = flag.String("http", "http://localhost:8080", "HTTP base URL")
	udpAddr   = flag.String("udp", "localhost:3022", "UDP relay address")
	grpcAddr  = flag.String("grpc", "localhost:50056", "Admin gRPC address")
	jwtSecret = flag.String("secret", "jwt-secret", "JWT secret shared with the server")
	jwtIssuer = flag.String("issuer", "pelotond", "JWT issuer")
	numRiders = flag.Int("riders", 20, "Number of riders to log in")
	firstID   = flag.Int64("first-id", 1000, "Participant id of the first rider")
	courseID  = flag.Int("course", 6, "Course the riders ride on")
	radius    = flag.Float64("radius", 5000, "Radius of the circle ridden, in world units")
	tick      = flag.Duration("tick", time.Second, "Telemetry interval")
	duration  = flag.Duration("duration", time.Minute, "How long to ride (0 = until Ctrl+C)")
)

type rider struct {
	id    models.ParticipantID
	token string
	conn  net.Conn
	seq   uint32
	angle float64
}

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	authn := auth.NewAuthenticator(config.JWTConfig{Secret: *jwtSecret, Issuer: *jwtIssuer, Expiry: 2 * time.Hour})

	riders := make([]*rider, 0, *numRiders)
	fmt.Printf("\n🚀 Logging in %d riders on course %d...\n", *numRiders, *courseID)
	for i := 0; i < *numRiders; i++ {
		r, err := login(ctx, authn, models.ParticipantID(*firstID+int64(i)), float64(i)*2*math.Pi/float64(*numRiders))
		if err != nil {
			fmt.Printf("❌ Rider %d: %v\n", *firstID+int64(i), err)
			continue
		}
		riders = append(riders, r)
	}
	fmt.Printf("✅ %d riders online\n", len(riders))

	var (
		wg      sync.WaitGroup
		sent    atomic.Int64
		replies atomic.Int64
		nearby  atomic.Int64
	)
	for _, r := range riders {
		wg.Go(func() {
			ride(ctx, r, &sent, &replies, &nearby)
		})
	}

	fmt.Printf("\n🎬 Streaming telemetry every %v, press Ctrl+C to stop\n\n", *tick)
	wg.Wait()

	fmt.Printf("\n📊 Packets sent: %d, replies: %d, avg nearby per reply: %.1f\n",
		sent.Load(), replies.Load(), ratio(nearby.Load(), replies.Load()))
	printWorldCounts()

	for _, r := range riders {
		if err := logout(r); err != nil {
			fmt.Printf("❌ Logout %d: %v\n", r.id, err)
		}
		r.conn.Close()
	}
	fmt.Println("👋 Riders logged out")
}

func login(ctx context.Context, authn *auth.Authenticator, id models.ParticipantID, angle float64) (*rider, error) {
	token, err := authn.Issue(id, []byte(fmt.Sprintf("sim-key-%d", id)))
	if err != nil {
		return nil, err
	}

	x, y := position(angle)
	body, _ := json.Marshal(map[string]any{
		"first_name": "Sim",
		"last_name":  id.String(),
		"course_id":  *courseID,
		"x":          x,
		"y":          y,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *httpAddr+"/api/users/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login status %d", resp.StatusCode)
	}

	conn, err := net.Dial("udp", *udpAddr)
	if err != nil {
		return nil, err
	}
	return &rider{id: id, token: token, conn: conn, angle: angle}, nil
}

func logout(r *rider) error {
	req, err := http.NewRequest(http.MethodPost, *httpAddr+"/api/users/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func ride(ctx context.Context, r *rider, sent, replies, nearby *atomic.Int64) {
	ticker := time.NewTicker(*tick)
	defer ticker.Stop()
	buf := make([]byte, 1<<16)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		r.seq++
		r.angle += 0.01
		x, y := position(r.angle)
		st := models.PositionState{ID: r.id, X: float32(x), Y: float32(y), Speed: 30000, Power: 200}
		st.SetRoadLocation(int32(*courseID), true, 1)

		msg := protocol.ClientToServer{PlayerID: r.id, Seqno: r.seq, State: st, HasState: true}
		pkt := protocol.Packet(protocol.Header{Seqno: r.seq, HasSeqno: true}, msg.Marshal())
		if _, err := r.conn.Write(pkt); err != nil {
			continue
		}
		sent.Add(1)

		_ = r.conn.SetReadDeadline(time.Now().Add(*tick / 2))
		n, err := r.conn.Read(buf)
		if err != nil {
			continue
		}
		_, payload, err := protocol.ParseHeader(buf[:n])
		if err != nil {
			continue
		}
		reply, err := protocol.DecodeServerToClient(payload)
		if err != nil {
			continue
		}
		replies.Add(1)
		nearby.Add(int64(len(reply.States)))
	}
}

func position(angle float64) (float64, float64) {
	return *radius * math.Cos(angle), *radius * math.Sin(angle)
}

func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func printWorldCounts() {
	client, closeFn, err := pkgGrpc.NewWorldClient(*grpcAddr)
	if err != nil {
		fmt.Printf("❌ Admin client: %v\n", err)
		return
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	counts, err := client.GetWorldCounts(ctx)
	if err != nil {
		fmt.Printf("❌ World counts: %v\n", err)
		return
	}
	fmt.Printf("🌍 World counts: %v\n", counts.AsMap())
}
