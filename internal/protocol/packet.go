package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Header flags announcing which optional fields follow the flags byte.
const (
	FlagRelayID byte = 0x4
	FlagConnID  byte = 0x2
	FlagSeqno   byte = 0x1
)

// MaxFrameSize bounds a single TCP frame; the length prefix is 16 bits.
const MaxFrameSize = 0xffff

// BootstrapPlayerID is the placeholder id sent in the TCP bootstrap frame,
// before the server knows who is on the other end.
const BootstrapPlayerID = 0

// Header is the relay packet header preceding every protobuf payload.
type Header struct {
	RelayID    uint32
	HasRelayID bool
	ConnID     uint16
	HasConnID  bool
	Seqno      uint32
	HasSeqno   bool
}

func (h Header) flags() byte {
	var f byte
	if h.HasRelayID {
		f |= FlagRelayID
	}
	if h.HasConnID {
		f |= FlagConnID
	}
	if h.HasSeqno {
		f |= FlagSeqno
	}
	return f
}

// Append writes the header to dst in wire order.
func (h Header) Append(dst []byte) []byte {
	dst = append(dst, h.flags())
	if h.HasRelayID {
		dst = binary.BigEndian.AppendUint32(dst, h.RelayID)
	}
	if h.HasConnID {
		dst = binary.BigEndian.AppendUint16(dst, h.ConnID)
	}
	if h.HasSeqno {
		dst = binary.BigEndian.AppendUint32(dst, h.Seqno)
	}
	return dst
}

// ParseHeader splits a packet into its header and payload.
func ParseHeader(b []byte) (Header, []byte, error) {
	if len(b) < 1 {
		return Header{}, nil, ErrShortPacket
	}
	var h Header
	flags := b[0]
	b = b[1:]

	if flags&FlagRelayID != 0 {
		if len(b) < 4 {
			return Header{}, nil, ErrShortPacket
		}
		h.RelayID, h.HasRelayID = binary.BigEndian.Uint32(b), true
		b = b[4:]
	}
	if flags&FlagConnID != 0 {
		if len(b) < 2 {
			return Header{}, nil, ErrShortPacket
		}
		h.ConnID, h.HasConnID = binary.BigEndian.Uint16(b), true
		b = b[2:]
	}
	if flags&FlagSeqno != 0 {
		if len(b) < 4 {
			return Header{}, nil, ErrShortPacket
		}
		h.Seqno, h.HasSeqno = binary.BigEndian.Uint32(b), true
		b = b[4:]
	}
	return h, b, nil
}

// Packet prefixes payload with h.
func Packet(h Header, payload []byte) []byte {
	out := h.Append(make([]byte, 0, 11+len(payload)))
	return append(out, payload...)
}

// WriteFrame writes one length-prefixed TCP frame.
func WriteFrame(w io.Writer, packet []byte) error {
	if len(packet) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(packet))
	}
	buf := make([]byte, 2+len(packet))
	binary.BigEndian.PutUint16(buf, uint16(len(packet)))
	copy(buf[2:], packet)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed TCP frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Bootstrap builds the frame sent on every new TCP connection. It depends
// only on its arguments, so the same server always sends identical bytes.
func Bootstrap(realm int64, ip string, udpPort int32) []byte {
	msg := ServerToClient{
		RealmID:  realm,
		PlayerID: BootstrapPlayerID,
		UDPConfig: &UDPConfig{
			Addresses: []RelayAddress{{Realm: realm, IP: ip, Port: udpPort}},
			Port:      udpPort,
		},
	}
	return Packet(Header{}, msg.Marshal())
}
