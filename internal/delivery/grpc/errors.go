package grpc

import (
	"errors"

	"github.com/vogiaan1904/pelotond/internal/service"
	pkgErrors "github.com/vogiaan1904/pelotond/pkg/errors"
	"google.golang.org/grpc/codes"
)

var (
	errInvalidInput        = pkgErrors.NewGRPCError(codes.InvalidArgument, "RLY001", "Invalid input")
	errParticipantNotFound = pkgErrors.NewGRPCError(codes.NotFound, "RLY002", "Participant not found")
	errNotOnline           = pkgErrors.NewGRPCError(codes.NotFound, "RLY003", "Participant is not online")
)

func (s *worldService) mapGRPCError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return errInvalidInput
	case errors.Is(err, service.ErrParticipantNotFound):
		return errParticipantNotFound
	case errors.Is(err, service.ErrNotOnline):
		return errNotOnline
	default:
		return err
	}
}
