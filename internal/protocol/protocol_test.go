package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vogiaan1904/pelotond/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

func samplePosition() models.PositionState {
	s := models.PositionState{
		ID:         100,
		WorldTime:  123456,
		Distance:   4200,
		Speed:      35000000,
		Power:      250,
		Heartrate:  140,
		Heading:    -1,
		X:          -1000.5,
		Y:          2000.25,
		Altitude:   9000,
		WatchingID: 200,
		Sport:      models.SportRunning,
	}
	s.SetRoadLocation(6, true, 17)
	return s
}

func TestPlayerStateDecodesWhatItEncodes(t *testing.T) {
	in := samplePosition()
	out, err := DecodePlayerState(EncodePlayerState(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("state mismatch:\n got %+v\nwant %+v", out, in)
	}
	if out.Course() != 6 || out.RoadID() != 17 || !out.IsForward() {
		t.Fatalf("road location lost: course=%d road=%d fwd=%v", out.Course(), out.RoadID(), out.IsForward())
	}
}

func TestPlayerStateFieldNumbers(t *testing.T) {
	b := EncodePlayerState(models.PositionState{ID: 5, Power: 300})
	// id=1 varint 5, power=12 varint 300
	want := protowire.AppendTag(nil, 1, protowire.VarintType)
	want = protowire.AppendVarint(want, 5)
	want = protowire.AppendTag(want, 12, protowire.VarintType)
	want = protowire.AppendVarint(want, 300)
	if !bytes.Equal(b, want) {
		t.Fatalf("unexpected bytes %x, want %x", b, want)
	}
}

func TestDecodeRejectsTruncatedMessage(t *testing.T) {
	b := EncodePlayerState(samplePosition())
	_, err := DecodePlayerState(b[:len(b)-2])
	if !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestClientToServerSkipsUnknownFields(t *testing.T) {
	msg := ClientToServer{RealmID: 1, PlayerID: 100, Seqno: 9, State: samplePosition(), HasState: true}
	b := msg.Marshal()
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future field")

	got, err := DecodeClientToServer(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PlayerID != 100 || got.Seqno != 9 || !got.HasState || got.State.Power != 250 {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestServerToClientCarriesUpdatesVerbatim(t *testing.T) {
	frame := EncodeFrame(models.Frame{ID: 1, Type: models.FrameSocialAction, Payload: []byte{1, 2}})
	msg := ServerToClient{
		RealmID:   1,
		PlayerID:  100,
		WorldTime: 77,
		Seqno:     3,
		States:    []models.PositionState{samplePosition()},
		Updates:   [][]byte{frame},
	}

	got, err := DecodeServerToClient(msg.Marshal())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Updates) != 1 || !bytes.Equal(got.Updates[0], frame) {
		t.Fatalf("updates not carried verbatim: %x", got.Updates)
	}
	if len(got.States) != 1 || got.States[0].ID != 100 {
		t.Fatalf("unexpected states %+v", got.States)
	}
	if got.Seqno != 3 || got.WorldTime != 77 {
		t.Fatalf("unexpected header fields %+v", got)
	}
}

func TestFrameEnvelope(t *testing.T) {
	chat := SocialAction{PlayerID: 100, Type: SocialActionText, FirstName: "Ada", Message: "hello"}
	in := models.Frame{
		ID:              42,
		RealmID:         1,
		Type:            models.FrameSocialAction,
		OriginID:        100,
		Payload:         chat.Marshal(),
		WorldTimeBorn:   1000,
		WorldTimeExpire: 61000,
		Timestamp:       1700000000000000,
	}
	b := EncodeFrame(in)

	out, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != in.ID || out.Type != in.Type || out.OriginID != in.OriginID || out.WorldTimeExpire != in.WorldTimeExpire {
		t.Fatalf("envelope mismatch %+v", out)
	}
	expire, err := FrameExpiry(b)
	if err != nil || expire != 61000 {
		t.Fatalf("FrameExpiry = %d, %v", expire, err)
	}

	gotChat, err := DecodeSocialAction(out.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if gotChat.Message != "hello" || gotChat.FirstName != "Ada" {
		t.Fatalf("unexpected chat %+v", gotChat)
	}
}

func TestSegmentResultPayload(t *testing.T) {
	in := models.SegmentResult{ID: 7, PlayerID: 100, RealmID: 1, CourseID: 6, SegmentID: -12, ElapsedMs: 65000, Male: false, AvgPower: 280}
	out, err := DecodeSegmentResult(EncodeSegmentResult(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("segment mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestWorldsEncoding(t *testing.T) {
	view := models.WorldView{
		WorldID:   1,
		Name:      "Public Watopia",
		WorldTime: 5000,
		RealTime:  1700000000000,
		Courses: []models.CourseView{{
			CourseID:     6,
			Count:        2,
			PacePartners: []models.RosterEntry{{Kind: models.KindPacePartner, Profile: models.PartialProfile{ID: 5, FirstName: "Coco"}, State: models.PositionState{ID: 5}}},
			Followees:    []models.RosterEntry{{Kind: models.KindHuman, Profile: models.PartialProfile{ID: 100, FirstName: "Ada", Male: true}, State: models.PositionState{ID: 100}}},
		}},
	}

	got, err := DecodeWorlds(EncodeWorlds(view))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, ok := got.Course(6)
	if !ok {
		t.Fatalf("course 6 missing: %+v", got)
	}
	if c.Count != 2 || len(c.PacePartners) != 1 || len(c.Followees) != 1 {
		t.Fatalf("unexpected course %+v", c)
	}
	if c.Followees[0].Profile.FirstName != "Ada" || !c.Followees[0].Profile.Male {
		t.Fatalf("unexpected followee %+v", c.Followees[0])
	}
}

func TestHeader(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		size int
	}{
		{"empty", Header{}, 1},
		{"seqno only", Header{Seqno: 9, HasSeqno: true}, 5},
		{"all", Header{RelayID: 0xdeadbeef, HasRelayID: true, ConnID: 3, HasConnID: true, Seqno: 1, HasSeqno: true}, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Packet(tt.h, []byte("payload"))
			if len(b) != tt.size+len("payload") {
				t.Fatalf("expected %d header bytes, got %d", tt.size, len(b)-len("payload"))
			}
			h, rest, err := ParseHeader(b)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if h != tt.h || string(rest) != "payload" {
				t.Fatalf("got %+v %q", h, rest)
			}
		})
	}

	if _, _, err := ParseHeader([]byte{FlagRelayID, 0, 1}); !errors.Is(err, ErrShortPacket) {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}

func TestFraming(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(buf.Bytes()[:2], []byte{0, 3}) {
		t.Fatalf("unexpected length prefix %x", buf.Bytes()[:2])
	}
	got, err := ReadFrame(&buf)
	if err != nil || string(got) != "abc" {
		t.Fatalf("ReadFrame = %q, %v", got, err)
	}
	if err := WriteFrame(&buf, make([]byte, MaxFrameSize+1)); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestBootstrapIsStable(t *testing.T) {
	a := Bootstrap(1, "10.0.0.1", 3022)
	b := Bootstrap(1, "10.0.0.1", 3022)
	if !bytes.Equal(a, b) {
		t.Fatal("bootstrap must be deterministic")
	}

	h, payload, err := ParseHeader(a)
	if err != nil || h != (Header{}) {
		t.Fatalf("bootstrap header = %+v, %v", h, err)
	}
	msg, err := DecodeServerToClient(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.PlayerID != BootstrapPlayerID || msg.UDPConfig == nil {
		t.Fatalf("unexpected bootstrap %+v", msg)
	}
	if addr := msg.UDPConfig.Addresses[0]; addr.IP != "10.0.0.1" || addr.Port != 3022 {
		t.Fatalf("unexpected relay address %+v", addr)
	}
}
