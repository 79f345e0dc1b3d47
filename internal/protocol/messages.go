package protocol

import (
	"github.com/vogiaan1904/pelotond/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

// ClientToServer is the telemetry packet a client sends over TCP or UDP.
type ClientToServer struct {
	RealmID          int64
	PlayerID         models.ParticipantID
	WorldTime        int64
	Seqno            uint32
	State            models.PositionState
	HasState         bool
	LastUpdate       int64
	LastPlayerUpdate int64
}

const (
	ctsRealm            protowire.Number = 1
	ctsPlayerID         protowire.Number = 2
	ctsWorldTime        protowire.Number = 3
	ctsSeqno            protowire.Number = 4
	ctsState            protowire.Number = 7
	ctsLastUpdate       protowire.Number = 8
	ctsLastPlayerUpdate protowire.Number = 10
)

func (m ClientToServer) Marshal() []byte {
	e := encoder{}
	e.int64Always(ctsRealm, m.RealmID)
	e.int64Always(ctsPlayerID, int64(m.PlayerID))
	e.int64(ctsWorldTime, m.WorldTime)
	e.uint32(ctsSeqno, m.Seqno)
	if m.HasState {
		e.bytesAlways(ctsState, EncodePlayerState(m.State))
	}
	e.int64Always(ctsLastUpdate, m.LastUpdate)
	e.int64Always(ctsLastPlayerUpdate, m.LastPlayerUpdate)
	return e.b
}

func DecodeClientToServer(b []byte) (ClientToServer, error) {
	var m ClientToServer
	err := walk(b, func(f field) error {
		switch f.num {
		case ctsRealm:
			m.RealmID = f.int64()
		case ctsPlayerID:
			m.PlayerID = models.ParticipantID(f.int64())
		case ctsWorldTime:
			m.WorldTime = f.int64()
		case ctsSeqno:
			m.Seqno = f.uint32()
		case ctsState:
			s, err := DecodePlayerState(f.buf)
			if err != nil {
				return err
			}
			m.State, m.HasState = s, true
		case ctsLastUpdate:
			m.LastUpdate = f.int64()
		case ctsLastPlayerUpdate:
			m.LastPlayerUpdate = f.int64()
		}
		return nil
	})
	return m, err
}

// RelayAddress points a client at the UDP telemetry endpoint for a course.
type RelayAddress struct {
	Realm  int64
	Course int32
	IP     string
	Port   int32
}

// UDPConfig tells the client where to send UDP telemetry.
type UDPConfig struct {
	Addresses []RelayAddress
	Port      int32
}

const (
	udpAddresses protowire.Number = 1
	udpPort      protowire.Number = 2

	raRealm  protowire.Number = 1
	raCourse protowire.Number = 2
	raIP     protowire.Number = 3
	raPort   protowire.Number = 4
)

func (c UDPConfig) marshal() []byte {
	e := encoder{}
	for _, a := range c.Addresses {
		ae := encoder{}
		ae.int64Always(raRealm, a.Realm)
		ae.int32(raCourse, a.Course)
		ae.string(raIP, a.IP)
		ae.int32(raPort, a.Port)
		e.bytesAlways(udpAddresses, ae.b)
	}
	e.int32(udpPort, c.Port)
	return e.b
}

func decodeUDPConfig(b []byte) (UDPConfig, error) {
	var c UDPConfig
	err := walk(b, func(f field) error {
		switch f.num {
		case udpAddresses:
			var a RelayAddress
			err := walk(f.buf, func(af field) error {
				switch af.num {
				case raRealm:
					a.Realm = af.int64()
				case raCourse:
					a.Course = af.int32()
				case raIP:
					a.IP = af.string()
				case raPort:
					a.Port = af.int32()
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.Addresses = append(c.Addresses, a)
		case udpPort:
			c.Port = f.int32()
		}
		return nil
	})
	return c, err
}

// ServerToClient is every relay message the server sends: the TCP bootstrap,
// TCP heartbeats and UDP telemetry replies.
type ServerToClient struct {
	RealmID   int64
	PlayerID  models.ParticipantID
	WorldTime int64
	Seqno     uint32
	States    []models.PositionState
	// Updates are already-encoded WorldAttribute messages, as drained from
	// the update queue.
	Updates   [][]byte
	UDPConfig *UDPConfig
}

const (
	stcRealm     protowire.Number = 1
	stcPlayerID  protowire.Number = 2
	stcWorldTime protowire.Number = 3
	stcSeqno     protowire.Number = 4
	stcStates    protowire.Number = 8
	stcUpdates   protowire.Number = 9
	stcUDPConfig protowire.Number = 25
)

func (m ServerToClient) Marshal() []byte {
	e := encoder{}
	e.int64Always(stcRealm, m.RealmID)
	e.int64Always(stcPlayerID, int64(m.PlayerID))
	e.int64(stcWorldTime, m.WorldTime)
	e.uint32(stcSeqno, m.Seqno)
	for _, s := range m.States {
		e.bytesAlways(stcStates, EncodePlayerState(s))
	}
	for _, u := range m.Updates {
		e.bytesAlways(stcUpdates, u)
	}
	if m.UDPConfig != nil {
		e.bytesAlways(stcUDPConfig, m.UDPConfig.marshal())
	}
	return e.b
}

func DecodeServerToClient(b []byte) (ServerToClient, error) {
	var m ServerToClient
	err := walk(b, func(f field) error {
		switch f.num {
		case stcRealm:
			m.RealmID = f.int64()
		case stcPlayerID:
			m.PlayerID = models.ParticipantID(f.int64())
		case stcWorldTime:
			m.WorldTime = f.int64()
		case stcSeqno:
			m.Seqno = f.uint32()
		case stcStates:
			s, err := DecodePlayerState(f.buf)
			if err != nil {
				return err
			}
			m.States = append(m.States, s)
		case stcUpdates:
			m.Updates = append(m.Updates, append([]byte(nil), f.buf...))
		case stcUDPConfig:
			c, err := decodeUDPConfig(f.buf)
			if err != nil {
				return err
			}
			m.UDPConfig = &c
		}
		return nil
	})
	return m, err
}
