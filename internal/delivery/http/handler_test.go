package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/auth"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	repo "github.com/vogiaan1904/pelotond/internal/repository/redis"
	"github.com/vogiaan1904/pelotond/internal/service"
	"github.com/vogiaan1904/pelotond/internal/world"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
)

type fixture struct {
	server *httptest.Server
	authn  *auth.Authenticator
	world  *world.World
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := logger.NewNop()

	cli, err := redis.NewEmbedded()
	if err != nil {
		t.Fatalf("embedded redis: %v", err)
	}
	t.Cleanup(func() { cli.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{HTTPPort: 8080, TCPPort: 3025, UDPPort: 3022, PublicIP: "10.0.0.1"},
		Relay: config.RelayConfig{
			HeartbeatInterval: time.Second,
			IdleTimeout:       time.Minute,
			QueueDepth:        16,
			FrameTTL:          time.Minute,
			ProximityRadius:   world.DefaultProximityRadius,
			RealmID:           1,
		},
		JWT: config.JWTConfig{Secret: "test", Issuer: "pelotond", Expiry: time.Hour},
	}

	profiles := repo.NewRedisProfileRepository(cli, l)
	w := world.New(world.Config{QueueDepth: cfg.Relay.QueueDepth, ProximityRadius: cfg.Relay.ProximityRadius}, profiles, l)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start world: %v", err)
	}
	t.Cleanup(w.Stop)

	prod := producer.NewNopProducer()
	relay := service.NewRelayService(w, profiles, repo.NewRedisSegmentResultRepository(cli, l), prod, nil, cfg, l)
	events := service.NewPrivateEventService(
		repo.NewRedisPrivateEventRepository(cli, l),
		repo.NewRedisNotificationRepository(cli, l),
		relay, prod, l,
	)

	authn := auth.NewAuthenticator(cfg.JWT)
	h := NewHTTPHandler(relay, events, authn, cfg.Relay, l)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	return &fixture{server: srv, authn: authn, world: w}
}

func (f *fixture) do(t *testing.T, as models.ParticipantID, method, path string, body []byte, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if as != 0 {
		token, err := f.authn.Issue(as, []byte("0123456789abcdef"))
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func jsonBody(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

var acceptJSON = http.Header{"Accept": []string{"application/json"}}

func (f *fixture) login(t *testing.T, id models.ParticipantID, course int32) {
	t.Helper()
	body := jsonBody(t, map[string]any{"first_name": "Rider", "last_name": id.String(), "course_id": course, "x": 10, "y": 10})
	resp := f.do(t, id, http.MethodPost, "/api/users/login", body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %d: status %d", id, resp.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, 0, http.MethodGet, "/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, 0, http.MethodGet, "/relay/worlds", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, 7, http.MethodPost, "/api/users/login", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			ParticipantID  int64  `json:"participant_id"`
			RelaySessionID uint32 `json:"relay_session_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ParticipantID != 7 || body.Data.RelaySessionID == 0 {
		t.Fatalf("unexpected login body: %+v", body.Data)
	}
	if _, ok := f.world.Get(context.Background(), 7); !ok {
		t.Fatal("expected rider 7 online")
	}

	resp = f.do(t, 7, http.MethodPost, "/api/users/logout", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if _, ok := f.world.Get(context.Background(), 7); ok {
		t.Fatal("expected rider 7 offline")
	}
}

func TestGetWorldsJSONAndProtobuf(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, 6)
	f.login(t, 2, 6)

	resp := f.do(t, 1, http.MethodGet, "/relay/worlds", nil, acceptJSON)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var worlds []worldResp
	if err := json.NewDecoder(resp.Body).Decode(&worlds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(worlds) != 1 || worlds[0].CourseID != 6 || worlds[0].PlayerCount != 2 {
		t.Fatalf("unexpected worlds: %+v", worlds)
	}
	for _, r := range worlds[0].Others {
		if r.Sport != "CYCLING" {
			t.Fatalf("expected sport name, got %q", r.Sport)
		}
	}

	resp = f.do(t, 1, http.MethodGet, "/relay/worlds", nil, nil)
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf-lite" {
		t.Fatalf("expected protobuf content type, got %q", ct)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	v, err := protocol.DecodeWorlds(buf.Bytes())
	if err != nil {
		t.Fatalf("decode worlds: %v", err)
	}
	if v.Total() != 2 {
		t.Fatalf("expected 2 riders, got %d", v.Total())
	}
}

func TestGetWorldUnknownRealm(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, 1, http.MethodGet, "/relay/worlds/9", nil, acceptJSON)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPostAttribute(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, 6)
	f.login(t, 2, 6)

	chat := protocol.EncodeFrame(models.Frame{
		Type:    models.FrameSocialAction,
		Payload: protocol.SocialAction{PlayerID: 1, Type: protocol.SocialActionText, Message: "hi"}.Marshal(),
	})
	resp := f.do(t, 1, http.MethodPost, "/relay/worlds/1/attributes", chat, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if got := f.world.Drain(context.Background(), 2); len(got) == 0 {
		t.Fatal("expected chat queued for rider 2")
	}

	resp = f.do(t, 1, http.MethodPost, "/relay/worlds/1/attributes", []byte{0x0a, 0x05}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed frame, got %d", resp.StatusCode)
	}

	forged := protocol.EncodeFrame(models.Frame{
		Type:     models.FrameSocialAction,
		OriginID: 2,
		Payload:  protocol.SocialAction{PlayerID: 2, Type: protocol.SocialActionText, Message: "as 2"}.Marshal(),
	})
	resp = f.do(t, 1, http.MethodPost, "/relay/worlds/1/attributes", forged, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a frame sent as another rider, got %d", resp.StatusCode)
	}
}

func TestPutStateForOfflineRiderSucceeds(t *testing.T) {
	f := newFixture(t)
	st := models.PositionState{ID: 3, Distance: 100}
	resp := f.do(t, 3, http.MethodPut, "/relay/worlds/1/state", protocol.EncodePlayerState(st), nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
}

func TestRideOnRejectsForgedSender(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, 6)
	f.login(t, 2, 6)

	resp := f.do(t, 1, http.MethodPost, "/api/profiles/2/activities/0/rideon", jsonBody(t, map[string]int64{"profileId": 9}), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp = f.do(t, 1, http.MethodPost, "/api/profiles/2/activities/0/rideon", jsonBody(t, map[string]int64{"profileId": 1}), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := f.world.Drain(context.Background(), 2); len(got) == 0 {
		t.Fatal("expected ride on queued for rider 2")
	}
}

func TestSegmentResults(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, 6)

	res := models.SegmentResult{SegmentID: 42, CourseID: 6, ElapsedMs: 61000}
	resp := f.do(t, 1, http.MethodPost, "/api/segment-results", protocol.EncodeSegmentResult(res), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var created segmentResultIDResp
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected a result id")
	}

	resp = f.do(t, 1, http.MethodGet, "/api/segment-results/"+itoa(created.ID), nil, acceptJSON)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got models.SegmentResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PlayerID != 1 || got.ElapsedMs != 61000 {
		t.Fatalf("unexpected result: %+v", got)
	}

	resp = f.do(t, 1, http.MethodGet, "/api/segment-results/999", nil, acceptJSON)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp = f.do(t, 1, http.MethodGet, "/api/segments/42/leaderboard?limit=5", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestEventSignupQueuesJoinFrame(t *testing.T) {
	f := newFixture(t)
	f.login(t, 4, 6)

	resp := f.do(t, 4, http.MethodPost, "/api/events/77/signup?subgroup=3", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	raw := f.world.Drain(context.Background(), 4)
	if len(raw) != 1 {
		t.Fatalf("expected 1 queued frame, got %d", len(raw))
	}
	fr, err := protocol.DecodeFrame(raw[0])
	if err != nil || fr.Type != models.FrameEventJoin {
		t.Fatalf("expected event join frame, got %v (%v)", fr.Type, err)
	}

	resp = f.do(t, 4, http.MethodDelete, "/api/events/77/signup", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestPrivateEventLifecycle(t *testing.T) {
	f := newFixture(t)

	create := jsonBody(t, map[string]any{
		"name":       "Tuesday loop",
		"start_time": time.Now().Add(time.Hour).Format(time.RFC3339),
		"course_id":  6,
		"invitees":   []int64{2, 3},
	})
	resp := f.do(t, 1, http.MethodPost, "/api/private_event/", create, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Data service.PrivateEventOutput `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	eventPath := "/api/private_event/" + itoa(created.Data.ID)

	resp = f.do(t, 2, http.MethodPut, eventPath+"/accept", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("accept: expected 204, got %d", resp.StatusCode)
	}
	resp = f.do(t, 2, http.MethodPut, eventPath+"/reject", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second answer: expected 409, got %d", resp.StatusCode)
	}
	resp = f.do(t, 9, http.MethodPut, eventPath+"/accept", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("uninvited: expected 404, got %d", resp.StatusCode)
	}

	resp = f.do(t, 2, http.MethodPut, eventPath, jsonBody(t, map[string]any{"invitees": []int64{3}}), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-organizer edit: expected 403, got %d", resp.StatusCode)
	}
	resp = f.do(t, 1, http.MethodPut, eventPath, jsonBody(t, map[string]any{"invitees": []int64{3}}), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d", resp.StatusCode)
	}

	resp = f.do(t, 3, http.MethodGet, "/api/notifications", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications: expected 200, got %d", resp.StatusCode)
	}
	var notifs struct {
		Data []models.Notification `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&notifs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(notifs.Data) != 1 || notifs.Data[0].Read {
		t.Fatalf("expected one unread notification for 3, got %+v", notifs.Data)
	}

	resp = f.do(t, 1, http.MethodDelete, eventPath, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp = f.do(t, 1, http.MethodGet, eventPath, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.StatusCode)
	}
}

func TestCreatePrivateEventValidation(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, 1, http.MethodPost, "/api/private_event/", jsonBody(t, map[string]any{"course_id": 6}), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body.Message, "Validation") {
		t.Fatalf("unexpected message %q", body.Message)
	}

	resp = f.do(t, 1, http.MethodPost, "/api/private_event/", []byte("{not json"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", resp.StatusCode)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
