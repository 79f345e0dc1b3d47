package service

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotOnline           = errors.New("participant is not online")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrMalformedFrame      = errors.New("malformed frame")
	ErrInvalidInput        = errors.New("invalid input")

	ErrEventNotFound     = errors.New("private event not found")
	ErrNotOrganizer      = errors.New("only the organizer can change this event")
	ErrInviteNotFound    = errors.New("invite not found")
	ErrInvalidTransition = errors.New("invalid invite status transition")
	ErrEventBusy         = errors.New("private event is being edited")

	ErrSegmentResultNotFound = errors.New("segment result not found")
	ErrSweeperRunning        = errors.New("session sweeper is already running")
	ErrSweeperNotRunning     = errors.New("session sweeper is not running")
)
