package udp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/vogiaan1904/pelotond/internal/delivery"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
)

// maxDatagram is the largest UDP payload accepted.
const maxDatagram = 1 << 16

// Relay is the part of the relay service the UDP listener drives.
type Relay interface {
	HandlePacket(ctx context.Context, ch models.Channel, addr string, pkt []byte) (models.ParticipantID, []byte, error)
}

type Server struct {
	relay Relay
	l     logger.Logger
}

func NewServer(relay Relay, l logger.Logger) *Server {
	return &Server{relay: relay, l: l}
}

// Serve answers each telemetry datagram with the sender's nearby riders
// until ctx is done or pc is closed.
func (s *Server) Serve(ctx context.Context, pc net.PacketConn) error {
	stop := context.AfterFunc(ctx, func() { pc.Close() })
	defer stop()

	s.l.Infof(ctx, "UDP relay listening on %s", pc.LocalAddr())
	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("delivery.udp.Server.Serve: %w", err)
		}
		s.handle(ctx, pc, addr, buf[:n])
	}
}

func (s *Server) handle(ctx context.Context, pc net.PacketConn, addr net.Addr, pkt []byte) {
	id, reply, err := s.relay.HandlePacket(ctx, models.ChannelUDP, addr.String(), pkt)
	if err != nil {
		if delivery.Dropped(err) {
			s.l.Debugf(ctx, "delivery.udp.Server.handle: dropped from %s: %v", addr, err)
			return
		}
		s.l.Warnf(ctx, "delivery.udp.Server.handle: %s: %v", addr, err)
		return
	}
	if reply == nil {
		return
	}
	if _, err := pc.WriteTo(reply, addr); err != nil {
		s.l.Debugf(ctx, "delivery.udp.Server.handle: reply to %d at %s: %v", id, addr, err)
	}
}
