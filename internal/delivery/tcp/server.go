package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/delivery"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	"github.com/vogiaan1904/pelotond/internal/world"
	"github.com/vogiaan1904/pelotond/pkg/logger"
)

const writeTimeout = 5 * time.Second

// Relay is the part of the relay service a TCP stream drives.
type Relay interface {
	Bootstrap() []byte
	NewStream() uint64
	HandleStreamPacket(ctx context.Context, stream uint64, pkt []byte) (models.ParticipantID, error)
	HeartbeatPacket(ctx context.Context, id models.ParticipantID, stream uint64) ([]byte, error)
	ReleaseStream(ctx context.Context, id models.ParticipantID, stream uint64)
}

type Server struct {
	relay     Relay
	heartbeat time.Duration
	l         logger.Logger
	wg        sync.WaitGroup
}

func NewServer(relay Relay, cfg config.RelayConfig, l logger.Logger) *Server {
	hb := cfg.HeartbeatInterval
	if hb <= 0 {
		hb = time.Second
	}
	return &Server{relay: relay, heartbeat: hb, l: l}
}

// Serve accepts connections until ctx is done or ln is closed, then waits
// for open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.l.Infof(ctx, "TCP relay listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("delivery.tcp.Server.Serve: %w", err)
		}
		s.wg.Go(func() { s.handle(ctx, conn) })
	}
}

// conn tracks which participant a stream belongs to. It is unknown until
// the first accepted packet.
type conn struct {
	net.Conn
	stream uint64
	id     atomic.Int64
	once   sync.Once
}

func (c *conn) participant() models.ParticipantID {
	return models.ParticipantID(c.id.Load())
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	c := &conn{Conn: nc, stream: s.relay.NewStream()}
	ctx, cancel := context.WithCancel(ctx)
	ctx = s.l.WithFields(ctx, "remote_addr", nc.RemoteAddr().String())

	var reader sync.WaitGroup
	defer reader.Wait()
	defer s.teardown(ctx, c)
	defer cancel()

	if err := s.write(c, s.relay.Bootstrap()); err != nil {
		s.l.Debugf(ctx, "delivery.tcp.Server.handle: bootstrap: %v", err)
		return
	}

	reader.Go(func() {
		defer cancel()
		s.readLoop(ctx, c)
	})

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id := c.participant()
			if id == 0 {
				continue
			}
			pkt, err := s.relay.HeartbeatPacket(ctx, id, c.stream)
			switch {
			case errors.Is(err, world.ErrStaleConnection):
				s.l.Debugf(ctx, "delivery.tcp.Server.handle: stream of %d replaced or idle, closing", id)
				return
			case err != nil:
				continue
			}
			if err := s.write(c, pkt); err != nil {
				s.l.Debugf(ctx, "delivery.tcp.Server.handle: heartbeat to %d: %v", id, err)
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *conn) {
	for {
		pkt, err := protocol.ReadFrame(c)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.l.Debugf(ctx, "delivery.tcp.Server.readLoop: %v", err)
			}
			return
		}

		id, err := s.relay.HandleStreamPacket(ctx, c.stream, pkt)
		if err != nil {
			if delivery.Dropped(err) {
				s.l.Debugf(ctx, "delivery.tcp.Server.readLoop: dropped: %v", err)
				continue
			}
			s.l.Warnf(ctx, "delivery.tcp.Server.readLoop: %v", err)
			return
		}
		if c.id.CompareAndSwap(0, int64(id)) {
			s.l.Debugf(ctx, "delivery.tcp.Server.readLoop: stream bound to %d", id)
		}
	}
}

func (s *Server) write(c *conn, pkt []byte) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return protocol.WriteFrame(c, pkt)
}

// teardown closes the socket and releases the TCP side of the session if
// this stream still owns it. The participant stays online.
func (s *Server) teardown(ctx context.Context, c *conn) {
	c.once.Do(func() {
		c.Close()
		if id := c.participant(); id != 0 {
			s.relay.ReleaseStream(context.WithoutCancel(ctx), id, c.stream)
		}
	})
}
