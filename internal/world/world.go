package world

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/util"
	"golang.org/x/sync/singleflight"
)

type Config struct {
	QueueDepth      int
	ProximityRadius float64
	// Now defaults to time.Now.
	Now func() time.Time
}

// state is everything the actor owns. It is only touched from the run loop.
type state struct {
	registry    *registry
	sessions    *sessionTable
	queues      *updateQueues
	profiles    *profileCache
	nextFrameID int64
}

// World owns the online registry, relay sessions, update queues and the
// profile cache. A single goroutine applies every operation, so each method
// is atomic with respect to all others.
type World struct {
	cfg      Config
	router   Router
	pools    []Pool
	profiles ProfileStore
	l        logger.Logger
	loads    singleflight.Group
	streams  atomic.Uint64

	reqCh  chan func(*state)
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
}

func New(cfg Config, profiles ProfileStore, l logger.Logger, pools ...Pool) *World {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &World{
		cfg:      cfg,
		router:   NewRouter(cfg.ProximityRadius),
		pools:    pools,
		profiles: profiles,
		l:        l,
		reqCh:    make(chan func(*state)),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the actor until ctx is cancelled or Stop is called.
func (w *World) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return fmt.Errorf("world.Start: %w", ErrStopped)
	}
	w.running = true

	st := &state{
		registry: newRegistry(),
		sessions: newSessionTable(),
		queues:   newUpdateQueues(w.cfg.QueueDepth),
		profiles: newProfileCache(),
	}
	go w.run(ctx, st)
	return nil
}

func (w *World) run(ctx context.Context, st *state) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			w.l.Infof(ctx, "world.World.run: context done, %d riders online", len(st.registry.entries))
			return
		case <-w.stopCh:
			return
		case fn := <-w.reqCh:
			fn(st)
		}
	}
}

// Stop ends the actor and waits for it. Pending callers get zero values.
func (w *World) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	running := w.running
	close(w.stopCh)
	w.mu.Unlock()

	if running {
		<-w.doneCh
	}
}

// do runs fn on the actor and waits for it. It reports false when fn did not
// run because ctx ended or the actor is gone. A panic in fn is raised again
// in the caller; the actor keeps running.
func (w *World) do(ctx context.Context, fn func(*state)) bool {
	var (
		done     = make(chan struct{})
		panicked any
	)
	req := func(st *state) {
		defer close(done)
		defer func() {
			panicked = recover()
		}()
		fn(st)
	}
	select {
	case w.reqCh <- req:
	case <-ctx.Done():
		return false
	case <-w.doneCh:
		return false
	case <-w.stopCh:
		return false
	}
	<-done
	if panicked != nil {
		panic(panicked)
	}
	return true
}

func (w *World) now() time.Time {
	return w.cfg.Now()
}

// WorldTime is the current world time in milliseconds.
func (w *World) WorldTime() int64 {
	return util.WorldTime(w.now())
}

func (w *World) Router() Router {
	return w.router
}

// Register puts id online with its initial state. Registering an online id
// overwrites it and forgets its cached profile.
func (w *World) Register(ctx context.Context, id models.ParticipantID, s models.PositionState) bool {
	return w.do(ctx, func(st *state) {
		st.registry.register(id, s)
		st.profiles.invalidate(id)
	})
}

// Update replaces the state of an online participant. Unknown ids are left
// alone and reported as false.
func (w *World) Update(ctx context.Context, id models.ParticipantID, s models.PositionState) bool {
	var ok bool
	w.do(ctx, func(st *state) {
		ok = st.registry.update(id, s)
	})
	return ok
}

// Unregister takes id offline and releases its relay session, update queue
// and cached profile in the same step.
func (w *World) Unregister(ctx context.Context, id models.ParticipantID) bool {
	var ok bool
	w.do(ctx, func(st *state) {
		ok = st.registry.unregister(id)
		st.sessions.close(id)
		st.queues.remove(id)
		st.profiles.invalidate(id)
	})
	return ok
}

func (w *World) Get(ctx context.Context, id models.ParticipantID) (models.PositionState, bool) {
	var (
		s  models.PositionState
		ok bool
	)
	w.do(ctx, func(st *state) {
		s, ok = st.registry.get(id)
	})
	return s, ok
}

func (w *World) AllIDs(ctx context.Context) []models.ParticipantID {
	var ids []models.ParticipantID
	w.do(ctx, func(st *state) {
		ids = st.registry.ids()
	})
	return ids
}

// Lookup resolves id to a Human, PacePartner, Bot or Ghost.
func (w *World) Lookup(ctx context.Context, id models.ParticipantID) (Participant, bool) {
	var (
		h  Human
		ok bool
	)
	w.do(ctx, func(st *state) {
		h.state, ok = st.registry.get(id)
		if ok {
			h.profile, h.hasProfile = st.profiles.get(id, st.registry.generation(id))
		}
	})
	if ok {
		return h, true
	}
	for _, p := range w.pools {
		if _, found := p.Position(id); found {
			return newPoolParticipant(p, id), true
		}
	}
	return nil, false
}

// OpenSession creates the relay session for id, replacing any previous one.
func (w *World) OpenSession(ctx context.Context, id models.ParticipantID, key []byte) (models.RelaySession, bool) {
	var s models.RelaySession
	ok := w.do(ctx, func(st *state) {
		s = st.sessions.open(id, key, w.now())
	})
	return s, ok
}

func (w *World) CloseSession(ctx context.Context, id models.ParticipantID) bool {
	var ok bool
	w.do(ctx, func(st *state) {
		ok = st.sessions.close(id)
	})
	return ok
}

func (w *World) Session(ctx context.Context, id models.ParticipantID) (models.RelaySession, bool) {
	var (
		s  models.RelaySession
		ok bool
	)
	w.do(ctx, func(st *state) {
		var p *models.RelaySession
		if p, ok = st.sessions.get(id); ok {
			s = p.Clone()
		}
	})
	return s, ok
}

// Accept advances the receive sequence of id on ch. It returns false for
// duplicates, regressions and unknown sessions.
func (w *World) Accept(ctx context.Context, id models.ParticipantID, ch models.Channel, seqno uint32) bool {
	var ok bool
	w.do(ctx, func(st *state) {
		s, found := st.sessions.get(id)
		if !found {
			return
		}
		ok = st.sessions.accept(s, ch, seqno, w.now())
	})
	return ok
}

// NextSendSeq returns the next outbound sequence number of id on ch.
func (w *World) NextSendSeq(ctx context.Context, id models.ParticipantID, ch models.Channel) (uint32, bool) {
	var (
		seq uint32
		ok  bool
	)
	w.do(ctx, func(st *state) {
		var s *models.RelaySession
		if s, ok = st.sessions.get(id); ok {
			seq = st.sessions.nextSendSeq(s, ch)
		}
	})
	return seq, ok
}

// NewStream hands out the token a TCP stream identifies itself with. Later
// streams get larger tokens.
func (w *World) NewStream() uint64 {
	return w.streams.Add(1)
}

// ReleaseStream unbinds the TCP side of id's session if stream still owns
// it. It reports false when a newer stream took over, the binding was
// already released or the session is gone. The participant stays online.
func (w *World) ReleaseStream(ctx context.Context, id models.ParticipantID, stream uint64) bool {
	var ok bool
	w.do(ctx, func(st *state) {
		s, found := st.sessions.get(id)
		if !found || !st.sessions.owns(s, stream) {
			return
		}
		st.sessions.release(s, models.ChannelTCP)
		ok = true
	})
	return ok
}

func (w *World) queued(st *state, f models.Frame) (models.Frame, queuedFrame) {
	if f.ID == 0 {
		st.nextFrameID++
		f.ID = st.nextFrameID
	}
	return f, queuedFrame{
		data:       protocol.EncodeFrame(f),
		expire:     f.WorldTimeExpire,
		enqueuedAt: util.WorldTime(w.now()),
	}
}

// Enqueue appends f to the mailbox of an online participant.
func (w *World) Enqueue(ctx context.Context, id models.ParticipantID, f models.Frame) bool {
	return w.EnqueueBroadcast(ctx, []models.ParticipantID{id}, f) == 1
}

// EnqueueBroadcast encodes f once and appends it to the mailbox of every
// online participant in ids. It returns how many mailboxes got it.
func (w *World) EnqueueBroadcast(ctx context.Context, ids []models.ParticipantID, f models.Frame) int {
	n := 0
	w.do(ctx, func(st *state) {
		_, q := w.queued(st, f)
		n = enqueueOnline(st, ids, q)
	})
	return n
}

func enqueueOnline(st *state, ids []models.ParticipantID, q queuedFrame) int {
	n := 0
	for _, id := range ids {
		if _, ok := st.registry.get(id); !ok {
			continue
		}
		st.queues.enqueue(id, q)
		n++
	}
	return n
}

// Drain returns and clears the pending frames of id, minus expired ones.
func (w *World) Drain(ctx context.Context, id models.ParticipantID) [][]byte {
	var out [][]byte
	w.do(ctx, func(st *state) {
		out = st.queues.drain(id, util.WorldTime(w.now()))
	})
	return out
}

// Broadcast routes b and enqueues its frame to every recipient in one step.
// It returns the frame as enqueued and the recipients.
func (w *World) Broadcast(ctx context.Context, b Broadcast) (models.Frame, []models.ParticipantID) {
	var (
		frame      models.Frame
		recipients []models.ParticipantID
	)
	w.do(ctx, func(st *state) {
		origin, hasOrigin := models.PositionState{}, false
		if b.OriginState != nil {
			origin, hasOrigin = *b.OriginState, true
		} else if b.Origin != 0 {
			origin, hasOrigin = st.registry.get(b.Origin)
			if !hasOrigin {
				origin, hasOrigin = w.poolPosition(b.Origin)
			}
		}

		recipients = w.router.Route(b, origin, hasOrigin, st.registry.states())
		var q queuedFrame
		frame, q = w.queued(st, b.Frame)
		enqueueOnline(st, recipients, q)
	})
	return frame, recipients
}

func (w *World) poolPosition(id models.ParticipantID) (models.PositionState, bool) {
	for _, p := range w.pools {
		if s, ok := p.Position(id); ok {
			s.ID = id
			return s, true
		}
	}
	return models.PositionState{}, false
}

// PartialProfile returns the public profile of any participant. Profiles of
// humans are loaded once per registration and cached until they go offline.
func (w *World) PartialProfile(ctx context.Context, id models.ParticipantID) (models.PartialProfile, error) {
	var (
		p      models.PartialProfile
		cached bool
		gen    uint64
	)
	if !w.do(ctx, func(st *state) {
		gen = st.registry.generation(id)
		p, cached = st.profiles.get(id, gen)
	}) {
		return models.PartialProfile{}, ErrStopped
	}
	if cached {
		return p, nil
	}

	if gen == 0 {
		for _, pool := range w.pools {
			if p, ok := pool.Profile(id); ok {
				return p, nil
			}
		}
		return models.PartialProfile{}, ErrParticipantNotFound
	}

	key := strconv.FormatInt(int64(id), 10) + "/" + strconv.FormatUint(gen, 10)
	v, err, _ := w.loads.Do(key, func() (any, error) {
		full, err := w.profiles.LoadFullProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		return full.Partial(), nil
	})
	if err != nil {
		return models.PartialProfile{}, fmt.Errorf("world.PartialProfile: %w", err)
	}
	p = v.(models.PartialProfile)
	p.ID = id

	w.do(ctx, func(st *state) {
		// A logout or re-login while loading changes the generation.
		if st.registry.generation(id) == gen {
			st.profiles.store(id, gen, p)
		}
	})
	return p, nil
}

// Snapshot builds the per-course view of everyone online. A zero course
// keeps all courses. Humans whose profile can no longer be loaded are left
// out.
func (w *World) Snapshot(ctx context.Context, course int32) models.WorldView {
	var (
		b       = newSnapshotBuilder(course)
		missing []models.PositionState
	)
	w.do(ctx, func(st *state) {
		for _, s := range st.registry.states() {
			if p, ok := st.profiles.get(s.ID, st.registry.generation(s.ID)); ok {
				b.add(models.KindHuman, p, s)
				continue
			}
			missing = append(missing, s)
		}
	})

	for _, s := range missing {
		p, err := w.PartialProfile(ctx, s.ID)
		if err != nil {
			w.l.Debugf(ctx, "world.Snapshot: skipping %d: %v", s.ID, err)
			continue
		}
		b.add(models.KindHuman, p, s)
	}
	for _, p := range w.pools {
		b.addPool(p)
	}

	now := w.now()
	return b.build(util.WorldTime(now), now.UnixMilli())
}

func (w *World) nearby(st *state, self models.PositionState) []models.PositionState {
	var out []models.PositionState
	for _, s := range st.registry.states() {
		if s.ID != self.ID && w.router.Near(self, s) {
			out = append(out, s)
		}
	}
	for _, p := range w.pools {
		for _, pid := range p.IDs() {
			s, ok := p.Position(pid)
			if !ok {
				continue
			}
			s.ID = pid
			if w.router.Near(self, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

// Inbound is one relay packet after header parsing.
type Inbound struct {
	Channel    models.Channel
	Addr       string
	RelayID    uint32
	HasRelayID bool
	ConnID     uint16
	// Stream is the TCP stream token; zero on UDP.
	Stream   uint64
	Seqno    uint32
	HasSeqno bool
	PlayerID models.ParticipantID
	State    models.PositionState
	HasState bool
}

// Outbound is what the transport sends back.
type Outbound struct {
	ParticipantID models.ParticipantID
	Seqno         uint32
	WorldTime     int64
	States        []models.PositionState
	Updates       [][]byte
}

// Receive applies one inbound relay packet: it resolves the session, checks
// connection and sequence, stores the reported state and prepares the reply.
// UDP replies carry the nearby states.
func (w *World) Receive(ctx context.Context, in Inbound) (Outbound, error) {
	var (
		out Outbound
		err = ErrStopped
	)
	w.do(ctx, func(st *state) {
		out, err = w.receive(st, in)
	})
	return out, err
}

func (w *World) receive(st *state, in Inbound) (Outbound, error) {
	var (
		s  *models.RelaySession
		ok bool
	)
	switch {
	case in.HasRelayID:
		s, ok = st.sessions.byRelayID(in.RelayID)
	case in.PlayerID != 0:
		s, ok = st.sessions.get(in.PlayerID)
	case in.Addr != "":
		s, ok = st.sessions.byAddr(in.Addr)
	}
	if !ok {
		return Outbound{}, ErrUnknownSession
	}
	if !st.sessions.attach(s, in.Channel, in.ConnID, in.Addr, in.Stream) {
		return Outbound{}, ErrStaleConnection
	}

	now := w.now()
	if in.HasSeqno {
		if !st.sessions.accept(s, in.Channel, in.Seqno, now) {
			return Outbound{}, ErrDuplicatePacket
		}
	} else {
		s.LastSeenAt = now
	}

	id := s.ParticipantID
	if in.HasState {
		st.registry.update(id, in.State)
	}

	out := Outbound{
		ParticipantID: id,
		Seqno:         st.sessions.nextSendSeq(s, in.Channel),
		WorldTime:     util.WorldTime(now),
	}
	if in.Channel == models.ChannelUDP {
		if self, online := st.registry.get(id); online {
			out.States = w.nearby(st, self)
		}
	}
	return out, nil
}

// Heartbeat prepares the periodic TCP frame for id: drained updates plus
// the state of whoever id is watching. Only the stream that owns the TCP
// side gets one; any other stream is told it is stale and should close.
func (w *World) Heartbeat(ctx context.Context, id models.ParticipantID, stream uint64) (Outbound, error) {
	var (
		out Outbound
		err = ErrStopped
	)
	w.do(ctx, func(st *state) {
		s, ok := st.sessions.get(id)
		if !ok {
			err = ErrUnknownSession
			return
		}
		if !st.sessions.owns(s, stream) {
			err = ErrStaleConnection
			return
		}
		err = nil
		now := w.now()
		out = Outbound{
			ParticipantID: id,
			Seqno:         st.sessions.nextSendSeq(s, models.ChannelTCP),
			WorldTime:     util.WorldTime(now),
			Updates:       st.queues.drain(id, util.WorldTime(now)),
		}
		if self, online := st.registry.get(id); online && self.WatchingID != 0 && self.WatchingID != id {
			if watched, found := st.registry.get(self.WatchingID); found {
				out.States = append(out.States, watched)
			} else if watched, found := w.poolPosition(self.WatchingID); found {
				out.States = append(out.States, watched)
			}
		}
	})
	return out, err
}

// Sweep releases the transports of sessions idle for longer than timeout
// and returns their participants. A released TCP stream fails its next
// heartbeat and closes its socket. Registry entries are kept.
func (w *World) Sweep(ctx context.Context, timeout time.Duration) []models.ParticipantID {
	var ids []models.ParticipantID
	w.do(ctx, func(st *state) {
		for _, s := range st.sessions.idle(w.now(), timeout) {
			st.sessions.release(s, models.ChannelTCP)
			st.sessions.release(s, models.ChannelUDP)
			ids = append(ids, s.ParticipantID)
		}
	})
	return ids
}

// Stats is a point-in-time summary for admin endpoints.
type Stats struct {
	Online        int    `json:"online"`
	Sessions      int    `json:"sessions"`
	QueuedFrames  int    `json:"queued_frames"`
	DroppedFrames uint64 `json:"dropped_frames"`
}

func (w *World) Stats(ctx context.Context) Stats {
	var s Stats
	w.do(ctx, func(st *state) {
		s.Online = len(st.registry.entries)
		s.Sessions = len(st.sessions.byID)
		for id := range st.queues.byID {
			s.QueuedFrames += st.queues.pending(id)
		}
		s.DroppedFrames = st.queues.dropped
	})
	return s
}
