package world

import "errors"

var (
	ErrStopped             = errors.New("world is not running")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUnknownSession      = errors.New("no relay session for packet")
	ErrStaleConnection     = errors.New("packet from a superseded connection")
	ErrDuplicatePacket     = errors.New("duplicate or out of order packet")
)
