package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	repo "github.com/vogiaan1904/pelotond/internal/repository/redis"
	"github.com/vogiaan1904/pelotond/internal/world"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/util"
)

type RelayService interface {
	Login(ctx context.Context, in LoginInput) (*LoginOutput, error)
	Logout(ctx context.Context, id models.ParticipantID) error
	Kick(ctx context.Context, id models.ParticipantID) error

	IngestFrame(ctx context.Context, sender models.ParticipantID, raw []byte) error
	IngestState(ctx context.Context, id models.ParticipantID, raw []byte) error
	RideOn(ctx context.Context, in RideOnInput) error
	StoreSegmentResult(ctx context.Context, res *models.SegmentResult) (int64, error)
	GetSegmentResult(ctx context.Context, id int64) (*models.SegmentResult, error)
	Leaderboard(ctx context.Context, segmentID int64, limit int64) ([]models.SegmentResult, error)
	JoinEvent(ctx context.Context, in SubgroupInput) error
	LeaveEvent(ctx context.Context, in SubgroupInput) error
	InjectChat(ctx context.Context, in ChatInput) error

	// Deliver sends a targeted frame built by another service.
	Deliver(ctx context.Context, t models.FrameType, origin models.ParticipantID, targets []models.ParticipantID, payload []byte) int
	ApplyMirror(ctx context.Context, ev models.MirrorEvent)

	Snapshot(ctx context.Context, course int32) models.WorldView
	Bootstrap() []byte
	HandlePacket(ctx context.Context, ch models.Channel, addr string, pkt []byte) (models.ParticipantID, []byte, error)
	NewStream() uint64
	HandleStreamPacket(ctx context.Context, stream uint64, pkt []byte) (models.ParticipantID, error)
	HeartbeatPacket(ctx context.Context, id models.ParticipantID, stream uint64) ([]byte, error)
	ReleaseStream(ctx context.Context, id models.ParticipantID, stream uint64)

	Online(ctx context.Context) []OnlineRider
	Stats(ctx context.Context) world.Stats
}

// Mirror publishes routed frames to peer instances.
type Mirror interface {
	Publish(ctx context.Context, ev models.MirrorEvent) error
}

type relayService struct {
	world     *world.World
	profiles  repo.ProfileRepository
	segments  repo.SegmentResultRepository
	prod      producer.Producer
	mirror    Mirror
	relayConf config.RelayConfig
	srvConf   config.ServerConfig
	sessTTL   time.Duration
	bootstrap []byte
	l         logger.Logger
}

// NewRelayService wires the relay. mirror may be nil when only one instance
// runs.
func NewRelayService(
	w *world.World,
	profiles repo.ProfileRepository,
	segments repo.SegmentResultRepository,
	prod producer.Producer,
	mirror Mirror,
	cfg *config.Config,
	l logger.Logger,
) RelayService {
	return &relayService{
		world:     w,
		profiles:  profiles,
		segments:  segments,
		prod:      prod,
		mirror:    mirror,
		relayConf: cfg.Relay,
		srvConf:   cfg.Server,
		sessTTL:   cfg.JWT.Expiry,
		bootstrap: protocol.Bootstrap(cfg.Relay.RealmID, cfg.Server.PublicIP, int32(cfg.Server.UDPPort)),
		l:         l,
	}
}

func (s *relayService) udpConfig() protocol.UDPConfig {
	return protocol.UDPConfig{
		Addresses: []protocol.RelayAddress{{
			Realm: s.relayConf.RealmID,
			IP:    s.srvConf.PublicIP,
			Port:  int32(s.srvConf.UDPPort),
		}},
		Port: int32(s.srvConf.UDPPort),
	}
}

func (s *relayService) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	if in.ParticipantID <= 0 {
		return nil, ErrInvalidInput
	}
	ctx = s.l.WithFields(ctx, "participant_id", int64(in.ParticipantID))

	if in.Profile != nil {
		in.Profile.ID = in.ParticipantID
		if err := s.profiles.Save(ctx, *in.Profile); err != nil {
			s.l.Errorf(ctx, "service.relayService.Login: %v", err)
			return nil, err
		}
	}

	st := models.PositionState{}
	if in.State != nil {
		st = *in.State
	}
	st.ID = in.ParticipantID

	if !s.world.Register(ctx, in.ParticipantID, st) {
		return nil, fmt.Errorf("service.relayService.Login: %w", world.ErrStopped)
	}
	sess, ok := s.world.OpenSession(ctx, in.ParticipantID, in.RelayKey)
	if !ok {
		return nil, fmt.Errorf("service.relayService.Login: %w", world.ErrStopped)
	}

	if _, err := s.world.PartialProfile(ctx, in.ParticipantID); err != nil {
		s.l.Warnf(ctx, "service.relayService.Login: profile not cached: %v", err)
	}

	if err := s.prod.PublishRiderOnline(ctx, kafka.RiderPresenceEvent{
		ParticipantID: int64(in.ParticipantID),
		CourseID:      st.Course(),
	}); err != nil {
		s.l.Warnf(ctx, "service.relayService.Login: publish online: %v", err)
	}

	s.l.Infof(ctx, "service.relayService.Login: relay session %d opened", sess.RelayID)
	return &LoginOutput{
		ParticipantID:  in.ParticipantID,
		RelaySessionID: sess.RelayID,
		ExpiresIn:      int64(s.sessTTL / time.Minute),
		WorldTime:      s.world.WorldTime(),
		UDPConfig:      s.udpConfig(),
		TCPAddress:     net.JoinHostPort(s.srvConf.PublicIP, strconv.Itoa(s.srvConf.TCPPort)),
	}, nil
}

func (s *relayService) Logout(ctx context.Context, id models.ParticipantID) error {
	return s.logout(ctx, id, kafka.OfflineReasonLogout)
}

func (s *relayService) Kick(ctx context.Context, id models.ParticipantID) error {
	return s.logout(ctx, id, kafka.OfflineReasonKicked)
}

func (s *relayService) logout(ctx context.Context, id models.ParticipantID, reason string) error {
	if !s.world.Unregister(ctx, id) {
		return ErrNotOnline
	}
	if err := s.prod.PublishRiderOffline(ctx, kafka.RiderPresenceEvent{
		ParticipantID: int64(id),
		Reason:        reason,
	}); err != nil {
		s.l.Warnf(ctx, "service.relayService.logout: publish offline: %v", err)
	}
	s.l.Infof(ctx, "service.relayService.logout: %d went offline (%s)", id, reason)
	return nil
}

// stamp fills the envelope fields the server owns.
func (s *relayService) stamp(f models.Frame) models.Frame {
	now := time.Now()
	wt := s.world.WorldTime()
	f.RealmID = s.relayConf.RealmID
	if f.WorldTimeBorn == 0 {
		f.WorldTimeBorn = wt
	}
	if f.WorldTimeExpire == 0 && s.relayConf.FrameTTL > 0 {
		f.WorldTimeExpire = f.WorldTimeBorn + s.relayConf.FrameTTL.Milliseconds()
	}
	f.Timestamp = util.MonotonicMicros(now)
	return f
}

func (s *relayService) broadcast(ctx context.Context, b world.Broadcast) (models.Frame, []models.ParticipantID) {
	b.Frame = s.stamp(b.Frame)
	frame, recipients := s.world.Broadcast(ctx, b)
	s.publishMirror(ctx, b, frame)
	return frame, recipients
}

func (s *relayService) publishMirror(ctx context.Context, b world.Broadcast, f models.Frame) {
	if s.mirror == nil {
		return
	}
	ev := models.MirrorEvent{
		OriginID:  b.Origin,
		FrameType: f.Type,
		CourseID:  b.Course,
		Targets:   b.Targets,
		Frame:     protocol.EncodeFrame(f),
		Timestamp: time.Now(),
	}
	if b.Origin != 0 {
		if st, ok := s.world.Get(ctx, b.Origin); ok {
			ev.Origin = &st
		}
	}
	if err := s.mirror.Publish(ctx, ev); err != nil {
		s.l.Warnf(ctx, "service.relayService.publishMirror: %v", err)
	}
}

// IngestFrame accepts a WorldAttribute posted by a client. The frame is
// always sent as sender; a frame or payload naming another rider is refused
// with ErrUnauthorized. Frames from an offline sender are still accepted,
// they just reach fewer riders.
func (s *relayService) IngestFrame(ctx context.Context, sender models.ParticipantID, raw []byte) error {
	f, err := protocol.DecodeFrame(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	f.ID = 0
	if f.OriginID != 0 && f.OriginID != sender {
		return fmt.Errorf("%w: frame origin %d posted by %d", ErrUnauthorized, f.OriginID, sender)
	}
	f.OriginID = sender

	b := world.Broadcast{Origin: f.OriginID, Frame: f}
	switch f.Type {
	case models.FrameSocialAction:
		a, err := protocol.DecodeSocialAction(f.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if a.PlayerID != 0 && a.PlayerID != sender {
			return fmt.Errorf("%w: chat from %d posted by %d", ErrUnauthorized, a.PlayerID, sender)
		}
	case models.FrameRideOn:
		ro, err := protocol.DecodeRideOn(f.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if ro.RiderID != 0 && ro.RiderID != sender {
			return fmt.Errorf("%w: ride on from %d posted by %d", ErrUnauthorized, ro.RiderID, sender)
		}
		b.Targets = []models.ParticipantID{ro.ToRiderID}
	case models.FrameEventJoin, models.FrameEventLeave:
		a, err := protocol.DecodeSubgroupAction(f.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		b.Targets = []models.ParticipantID{a.PlayerID}
	case models.FrameEventInvite, models.FrameEventInviteRemoved:
		n, err := protocol.DecodeInviteNotice(f.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		b.Targets = []models.ParticipantID{n.Invitee}
	case models.FrameSegmentResult:
		if _, err := protocol.DecodeSegmentResult(f.Payload); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	default:
		s.l.Debugf(ctx, "service.relayService.IngestFrame: dropping frame type %d", f.Type)
		return nil
	}

	_, recipients := s.broadcast(ctx, b)
	s.l.Debugf(ctx, "service.relayService.IngestFrame: %s from %d to %d riders", f.Type, f.OriginID, len(recipients))
	return nil
}

// IngestState stores a PlayerState posted over HTTP. Offline senders are
// ignored.
func (s *relayService) IngestState(ctx context.Context, id models.ParticipantID, raw []byte) error {
	st, err := protocol.DecodePlayerState(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	st.ID = id
	if !s.world.Update(ctx, id, st) {
		s.l.Debugf(ctx, "service.relayService.IngestState: %d is offline", id)
	}
	return nil
}

func (s *relayService) RideOn(ctx context.Context, in RideOnInput) error {
	if in.To <= 0 {
		return ErrInvalidInput
	}
	ro := protocol.RideOn{RiderID: in.From, ToRiderID: in.To}
	if p, err := s.world.PartialProfile(ctx, in.From); err == nil {
		ro.FirstName, ro.LastName, ro.CountryCode = p.FirstName, p.LastName, p.CountryCode
	}

	_, recipients := s.broadcast(ctx, world.Broadcast{
		Origin:  in.From,
		Targets: []models.ParticipantID{in.To},
		Frame: models.Frame{
			Type:     models.FrameRideOn,
			OriginID: in.From,
			Payload:  ro.Marshal(),
		},
	})
	if len(recipients) == 0 {
		s.l.Debugf(ctx, "service.relayService.RideOn: %d is offline", in.To)
	}
	return nil
}

// StoreSegmentResult persists a result, then shows it to the course and to
// anyone spectating the rider.
func (s *relayService) StoreSegmentResult(ctx context.Context, res *models.SegmentResult) (int64, error) {
	if res.PlayerID <= 0 || res.SegmentID == 0 {
		return 0, ErrInvalidInput
	}
	if res.WorldTime == 0 {
		res.WorldTime = s.world.WorldTime()
	}
	if res.RealmID == 0 {
		res.RealmID = s.relayConf.RealmID
	}
	if res.FirstName == "" && res.LastName == "" {
		if p, err := s.world.PartialProfile(ctx, res.PlayerID); err == nil {
			res.FirstName, res.LastName = p.FirstName, p.LastName
		}
	}

	id, err := s.segments.Store(ctx, res)
	if err != nil {
		s.l.Errorf(ctx, "service.relayService.StoreSegmentResult: %v", err)
		return 0, err
	}

	s.broadcast(ctx, world.Broadcast{
		Origin: res.PlayerID,
		Course: res.CourseID,
		Frame: models.Frame{
			Type:     models.FrameSegmentResult,
			OriginID: res.PlayerID,
			Payload:  protocol.EncodeSegmentResult(*res),
		},
	})

	if err := s.prod.PublishSegmentResult(ctx, kafka.SegmentResultEvent{
		ResultID:  id,
		PlayerID:  int64(res.PlayerID),
		SegmentID: res.SegmentID,
		CourseID:  res.CourseID,
		ElapsedMs: res.ElapsedMs,
	}); err != nil {
		s.l.Warnf(ctx, "service.relayService.StoreSegmentResult: publish: %v", err)
	}
	return id, nil
}

func (s *relayService) GetSegmentResult(ctx context.Context, id int64) (*models.SegmentResult, error) {
	res, err := s.segments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSegmentResultNotFound
		}
		return nil, err
	}
	return res, nil
}

func (s *relayService) Leaderboard(ctx context.Context, segmentID int64, limit int64) ([]models.SegmentResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.segments.Leaderboard(ctx, segmentID, limit)
}

func (s *relayService) JoinEvent(ctx context.Context, in SubgroupInput) error {
	return s.subgroup(ctx, models.FrameEventJoin, in)
}

func (s *relayService) LeaveEvent(ctx context.Context, in SubgroupInput) error {
	return s.subgroup(ctx, models.FrameEventLeave, in)
}

func (s *relayService) subgroup(ctx context.Context, t models.FrameType, in SubgroupInput) error {
	if in.EventID <= 0 {
		return ErrInvalidInput
	}
	payload := protocol.SubgroupAction{
		EventID:    in.EventID,
		SubgroupID: in.SubgroupID,
		PlayerID:   in.ParticipantID,
	}.Marshal()
	s.Deliver(ctx, t, in.ParticipantID, []models.ParticipantID{in.ParticipantID}, payload)
	return nil
}

// InjectChat broadcasts a message from outside the game. The sender need not
// be online; without a position the message reaches the whole course.
func (s *relayService) InjectChat(ctx context.Context, in ChatInput) error {
	if in.Message == "" {
		return ErrInvalidInput
	}
	spa := protocol.SocialAction{
		PlayerID:  in.FromID,
		Type:      protocol.SocialActionText,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Message:   in.Message,
	}
	_, recipients := s.broadcast(ctx, world.Broadcast{
		Origin: in.FromID,
		Course: in.CourseID,
		Frame: models.Frame{
			Type:     models.FrameSocialAction,
			OriginID: in.FromID,
			Payload:  spa.Marshal(),
		},
	})
	s.l.Debugf(ctx, "service.relayService.InjectChat: delivered to %d riders", len(recipients))
	return nil
}

func (s *relayService) Deliver(ctx context.Context, t models.FrameType, origin models.ParticipantID, targets []models.ParticipantID, payload []byte) int {
	_, recipients := s.broadcast(ctx, world.Broadcast{
		Origin:  origin,
		Targets: targets,
		Frame: models.Frame{
			Type:     t,
			OriginID: origin,
			Payload:  payload,
		},
	})
	return len(recipients)
}

// ApplyMirror delivers a frame routed on a peer instance to local riders.
func (s *relayService) ApplyMirror(ctx context.Context, ev models.MirrorEvent) {
	f, err := protocol.DecodeFrame(ev.Frame)
	if err != nil {
		s.l.Warnf(ctx, "service.relayService.ApplyMirror: %v", err)
		return
	}
	f.ID = 0
	s.world.Broadcast(ctx, world.Broadcast{
		Origin:      ev.OriginID,
		OriginState: ev.Origin,
		Course:      ev.CourseID,
		Targets:     ev.Targets,
		Frame:       f,
	})
}

func (s *relayService) Snapshot(ctx context.Context, course int32) models.WorldView {
	v := s.world.Snapshot(ctx, course)
	v.WorldID = s.relayConf.RealmID
	return v
}

func (s *relayService) Bootstrap() []byte {
	return s.bootstrap
}

// HandlePacket applies one relay packet. UDP packets get a reply carrying
// nearby riders; TCP packets only refresh the session and the reply is nil.
// Stale and duplicate packets come back as errors the transport drops.
func (s *relayService) HandlePacket(ctx context.Context, ch models.Channel, addr string, pkt []byte) (models.ParticipantID, []byte, error) {
	return s.handlePacket(ctx, ch, addr, 0, pkt)
}

func (s *relayService) NewStream() uint64 {
	return s.world.NewStream()
}

// HandleStreamPacket applies a packet read from the TCP stream identified by
// stream. Packets from a stream a newer one replaced come back as
// world.ErrStaleConnection.
func (s *relayService) HandleStreamPacket(ctx context.Context, stream uint64, pkt []byte) (models.ParticipantID, error) {
	id, _, err := s.handlePacket(ctx, models.ChannelTCP, "", stream, pkt)
	return id, err
}

func (s *relayService) handlePacket(ctx context.Context, ch models.Channel, addr string, stream uint64, pkt []byte) (models.ParticipantID, []byte, error) {
	h, payload, err := protocol.ParseHeader(pkt)
	if err != nil {
		return 0, nil, err
	}
	msg, err := protocol.DecodeClientToServer(payload)
	if err != nil {
		return 0, nil, err
	}

	in := world.Inbound{
		Channel:    ch,
		Addr:       addr,
		RelayID:    h.RelayID,
		HasRelayID: h.HasRelayID,
		ConnID:     h.ConnID,
		Stream:     stream,
		Seqno:      h.Seqno,
		HasSeqno:   h.HasSeqno,
		PlayerID:   msg.PlayerID,
		State:      msg.State,
		HasState:   msg.HasState,
	}
	if !in.HasSeqno && msg.Seqno != 0 {
		in.Seqno, in.HasSeqno = msg.Seqno, true
	}
	if in.HasState {
		in.State.ID = msg.PlayerID
	}

	out, err := s.world.Receive(ctx, in)
	if err != nil {
		return msg.PlayerID, nil, err
	}
	if ch == models.ChannelTCP {
		return out.ParticipantID, nil, nil
	}
	return out.ParticipantID, s.reply(out), nil
}

func (s *relayService) reply(out world.Outbound) []byte {
	msg := protocol.ServerToClient{
		RealmID:   s.relayConf.RealmID,
		PlayerID:  out.ParticipantID,
		WorldTime: out.WorldTime,
		Seqno:     out.Seqno,
		States:    out.States,
		Updates:   out.Updates,
	}
	return protocol.Packet(protocol.Header{}, msg.Marshal())
}

// HeartbeatPacket builds the next heartbeat for the stream. A stream that
// no longer owns the session gets world.ErrStaleConnection; a participant
// without a session gets world.ErrUnknownSession.
func (s *relayService) HeartbeatPacket(ctx context.Context, id models.ParticipantID, stream uint64) ([]byte, error) {
	out, err := s.world.Heartbeat(ctx, id, stream)
	if err != nil {
		return nil, err
	}
	return s.reply(out), nil
}

func (s *relayService) ReleaseStream(ctx context.Context, id models.ParticipantID, stream uint64) {
	if !s.world.ReleaseStream(ctx, id, stream) {
		s.l.Debugf(ctx, "service.relayService.ReleaseStream: stream %d of %d no longer bound", stream, id)
		return
	}
	s.l.Debugf(ctx, "service.relayService.ReleaseStream: %d tcp released", id)
}

func (s *relayService) Online(ctx context.Context) []OnlineRider {
	ids := s.world.AllIDs(ctx)
	out := make([]OnlineRider, 0, len(ids))
	for _, id := range ids {
		st, ok := s.world.Get(ctx, id)
		if !ok {
			continue
		}
		r := OnlineRider{ParticipantID: id, CourseID: st.Course(), Sport: st.Sport}
		if sess, ok := s.world.Session(ctx, id); ok {
			r.HasSession = true
			r.TCPConnected = sess.TCPConnected
			r.UDPAddr = sess.UDPAddr
		}
		out = append(out, r)
	}
	return out
}

func (s *relayService) Stats(ctx context.Context) world.Stats {
	return s.world.Stats(ctx)
}
