package world

import (
	"time"

	"github.com/vogiaan1904/pelotond/internal/models"
)

type sessionTable struct {
	byID        map[models.ParticipantID]*models.RelaySession
	byRelay     map[uint32]models.ParticipantID
	byUDPAddr   map[string]models.ParticipantID
	nextRelayID uint32
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		byID:      make(map[models.ParticipantID]*models.RelaySession),
		byRelay:   make(map[uint32]models.ParticipantID),
		byUDPAddr: make(map[string]models.ParticipantID),
	}
}

// open replaces any existing session for id. A new relay id is handed out
// each time so packets still in flight for the old session no longer match.
func (t *sessionTable) open(id models.ParticipantID, key []byte, now time.Time) models.RelaySession {
	t.close(id)

	t.nextRelayID++
	if t.nextRelayID == 0 {
		t.nextRelayID++
	}
	s := &models.RelaySession{
		ParticipantID: id,
		Key:           append([]byte(nil), key...),
		RelayID:       t.nextRelayID,
		OpenedAt:      now,
		LastSeenAt:    now,
	}
	t.byID[id] = s
	t.byRelay[s.RelayID] = id
	return s.Clone()
}

func (t *sessionTable) close(id models.ParticipantID) bool {
	s, ok := t.byID[id]
	if !ok {
		return false
	}
	delete(t.byRelay, s.RelayID)
	if s.UDPAddr != "" {
		delete(t.byUDPAddr, s.UDPAddr)
	}
	delete(t.byID, id)
	return true
}

func (t *sessionTable) get(id models.ParticipantID) (*models.RelaySession, bool) {
	s, ok := t.byID[id]
	return s, ok
}

func (t *sessionTable) byRelayID(relayID uint32) (*models.RelaySession, bool) {
	id, ok := t.byRelay[relayID]
	if !ok {
		return nil, false
	}
	return t.get(id)
}

func (t *sessionTable) byAddr(addr string) (*models.RelaySession, bool) {
	id, ok := t.byUDPAddr[addr]
	if !ok {
		return nil, false
	}
	return t.get(id)
}

// attach binds a transport to the session. A conn id below the session's
// current one is a stale connection and is refused; a higher one means the
// client reconnected, so both receive counters start over. On TCP the
// stream token decides which socket owns the session: older streams and a
// stream whose binding was released are refused.
func (t *sessionTable) attach(s *models.RelaySession, ch models.Channel, connID uint16, addr string, stream uint64) bool {
	if connID < s.ConnID {
		return false
	}
	if ch == models.ChannelTCP {
		if stream < s.TCPStream || (stream != 0 && stream == s.TCPStream && !s.TCPConnected) {
			return false
		}
	}
	if connID > s.ConnID {
		s.ConnID = connID
		s.TCP.LastRecv, s.TCP.HasRecv = 0, false
		s.UDP.LastRecv, s.UDP.HasRecv = 0, false
	}

	switch ch {
	case models.ChannelTCP:
		s.TCPStream = stream
		s.TCPConnected = true
	case models.ChannelUDP:
		if addr != "" && addr != s.UDPAddr {
			if s.UDPAddr != "" {
				delete(t.byUDPAddr, s.UDPAddr)
			}
			s.UDPAddr = addr
			t.byUDPAddr[addr] = s.ParticipantID
		}
	}
	return true
}

// owns reports whether stream is the TCP stream currently bound to s.
func (t *sessionTable) owns(s *models.RelaySession, stream uint64) bool {
	return s.TCPConnected && s.TCPStream == stream
}

// accept advances the receive counter of ch. The first packet on a channel
// is always accepted; after that only seqnos above the last accepted one
// are, so gaps are tolerated while duplicates and regressions are not.
func (t *sessionTable) accept(s *models.RelaySession, ch models.Channel, seqno uint32, now time.Time) bool {
	c := s.Counters(ch)
	if c.HasRecv && seqno <= c.LastRecv {
		return false
	}
	c.LastRecv, c.HasRecv = seqno, true
	s.LastSeenAt = now
	return true
}

func (t *sessionTable) nextSendSeq(s *models.RelaySession, ch models.Channel) uint32 {
	c := s.Counters(ch)
	c.Sent++
	return c.Sent
}

// release unbinds one channel and restarts its receive sequencing. The send
// counter is kept so outbound seqnos never go back.
func (t *sessionTable) release(s *models.RelaySession, ch models.Channel) {
	c := s.Counters(ch)
	c.LastRecv, c.HasRecv = 0, false
	switch ch {
	case models.ChannelTCP:
		s.TCPConnected = false
	case models.ChannelUDP:
		if s.UDPAddr != "" {
			delete(t.byUDPAddr, s.UDPAddr)
			s.UDPAddr = ""
		}
	}
}

func (t *sessionTable) idle(now time.Time, timeout time.Duration) []*models.RelaySession {
	var out []*models.RelaySession
	for _, s := range t.byID {
		if (s.TCPConnected || s.UDPAddr != "") && s.IsIdle(now, timeout) {
			out = append(out, s)
		}
	}
	return out
}
