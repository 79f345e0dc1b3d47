package models

import "time"

// Channel is one of the two relay transports.
type Channel int

const (
	ChannelTCP Channel = iota
	ChannelUDP
)

func (c Channel) String() string {
	if c == ChannelTCP {
		return "tcp"
	}
	return "udp"
}

// SeqCounters tracks one transport's sequencing state.
type SeqCounters struct {
	LastRecv uint32
	HasRecv  bool
	Sent     uint32
}

// RelaySession is the per-participant relay state created at login.
type RelaySession struct {
	ParticipantID ParticipantID
	Key           []byte
	RelayID       uint32
	ConnID        uint16
	TCP           SeqCounters
	UDP           SeqCounters
	TCPConnected  bool
	// TCPStream is the token of the newest TCP stream that bound to the
	// session. Tokens only grow.
	TCPStream  uint64
	UDPAddr    string
	OpenedAt   time.Time
	LastSeenAt time.Time
}

func (s *RelaySession) Counters(ch Channel) *SeqCounters {
	if ch == ChannelTCP {
		return &s.TCP
	}
	return &s.UDP
}

func (s *RelaySession) IsIdle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastSeenAt) > timeout
}

// Clone copies the session so callers never share the key slice with the table.
func (s RelaySession) Clone() RelaySession {
	if s.Key != nil {
		s.Key = append([]byte(nil), s.Key...)
	}
	return s
}
