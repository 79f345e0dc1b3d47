package delivery

import (
	"errors"

	"github.com/vogiaan1904/pelotond/internal/protocol"
	"github.com/vogiaan1904/pelotond/internal/world"
)

// Dropped reports relay packet errors the listeners discard without a
// reply or a warning: replays, stale connections, unknown senders and
// undecodable bytes.
func Dropped(err error) bool {
	switch {
	case errors.Is(err, world.ErrDuplicatePacket),
		errors.Is(err, world.ErrStaleConnection),
		errors.Is(err, world.ErrUnknownSession),
		errors.Is(err, protocol.ErrShortPacket),
		errors.Is(err, protocol.ErrMalformedMessage):
		return true
	default:
		return false
	}
}
