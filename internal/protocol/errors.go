package protocol

import "errors"

var (
	ErrMalformedMessage = errors.New("malformed protobuf message")
	ErrShortPacket      = errors.New("packet shorter than its header")
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
)
