package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/auth"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/service"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/response"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	relay     service.RelayService
	events    service.PrivateEventService
	authn     *auth.Authenticator
	realmID   int64
	l         logger.Logger
	validator *validator.Validate
}

func NewHTTPHandler(
	relay service.RelayService,
	events service.PrivateEventService,
	authn *auth.Authenticator,
	cfg config.RelayConfig,
	l logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		relay:     relay,
		events:    events,
		authn:     authn,
		realmID:   cfg.RealmID,
		l:         l,
		validator: validator.New(),
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	stats := h.relay.Stats(r.Context())
	response.Raw(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "pelotond",
		"online":  stats.Online,
	})
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	mapped := h.mapHTTPError(err)
	if mapped == err {
		h.l.Errorf(r.Context(), "delivery.http.HTTPHandler.%s: %v", op, err)
	} else {
		h.l.Debugf(r.Context(), "delivery.http.HTTPHandler.%s: %v", op, err)
	}
	response.Error(w, mapped)
}

func (h *HTTPHandler) identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Identity{}, service.ErrUnauthorized
	}
	return id, nil
}

func (h *HTTPHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, errInvalidInput
	}
	return body, nil
}

// decodeJSON decodes an optional JSON body. An empty body leaves target
// untouched.
func (h *HTTPHandler) decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	body, err := h.readBody(w, r)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errInvalidInput
	}
	return nil
}

func (h *HTTPHandler) validate(w http.ResponseWriter, v any) bool {
	if err := h.validator.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fe.Field()+": "+fe.Tag())
			}
			response.ValidationError(w, validationErrorCode, details)
			return false
		}
		response.ValidationError(w, validationErrorCode, err.Error())
		return false
	}
	return true
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v < 0 {
		return 0, errInvalidInput
	}
	return v, nil
}

func parseParticipantParam(r *http.Request, name string) (models.ParticipantID, error) {
	v, err := parseIDParam(r, name)
	return models.ParticipantID(v), err
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), response.ContentTypeJSON)
}
