package http

import (
	"errors"
	"net/http"

	"github.com/vogiaan1904/pelotond/internal/service"
	pkgErrors "github.com/vogiaan1904/pelotond/pkg/errors"
)

var (
	errInvalidInput   = pkgErrors.NewHTTPError(http.StatusBadRequest, 100, "Invalid input")
	errMalformedFrame = pkgErrors.NewHTTPError(http.StatusBadRequest, 101, "Malformed frame")
	errUnauthorized   = pkgErrors.NewHTTPError(http.StatusUnauthorized, 102, "Unauthorized")
	errBodyTooLarge   = pkgErrors.NewHTTPError(http.StatusRequestEntityTooLarge, 103, "Request body too large")

	errParticipantNotFound = pkgErrors.NewHTTPError(http.StatusNotFound, 110, "Participant not found")
	errNotOnline           = pkgErrors.NewHTTPError(http.StatusNotFound, 111, "Participant is not online")
	errWorldNotFound       = pkgErrors.NewHTTPError(http.StatusNotFound, 112, "World not found")

	errEventNotFound     = pkgErrors.NewHTTPError(http.StatusNotFound, 120, "Private event not found")
	errNotOrganizer      = pkgErrors.NewHTTPError(http.StatusForbidden, 121, "Only the organizer can change this event")
	errInviteNotFound    = pkgErrors.NewHTTPError(http.StatusNotFound, 122, "Invite not found")
	errInvalidTransition = pkgErrors.NewHTTPError(http.StatusConflict, 123, "Invite already answered")
	errEventBusy         = pkgErrors.NewHTTPError(http.StatusConflict, 124, "Private event is being edited")

	errSegmentResultNotFound = pkgErrors.NewHTTPError(http.StatusNotFound, 130, "Segment result not found")
)

const validationErrorCode = 104

func (h *HTTPHandler) mapHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return errInvalidInput
	case errors.Is(err, service.ErrMalformedFrame):
		return errMalformedFrame
	case errors.Is(err, service.ErrUnauthorized):
		return errUnauthorized
	case errors.Is(err, service.ErrParticipantNotFound):
		return errParticipantNotFound
	case errors.Is(err, service.ErrNotOnline):
		return errNotOnline
	case errors.Is(err, service.ErrEventNotFound):
		return errEventNotFound
	case errors.Is(err, service.ErrNotOrganizer):
		return errNotOrganizer
	case errors.Is(err, service.ErrInviteNotFound):
		return errInviteNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return errInvalidTransition
	case errors.Is(err, service.ErrEventBusy):
		return errEventBusy
	case errors.Is(err, service.ErrSegmentResultNotFound):
		return errSegmentResultNotFound
	default:
		return err
	}
}
