package http

import (
	"net/http"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/service"
	"github.com/vogiaan1904/pelotond/pkg/response"
)

func (h *HTTPHandler) CreatePrivateEvent(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "CreatePrivateEvent", err)
		return
	}

	var req service.CreatePrivateEventInput
	if err := h.decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if !h.validate(w, req) {
		return
	}

	out, err := h.events.Create(r.Context(), ident.ParticipantID, req)
	if err != nil {
		h.respondError(w, r, "CreatePrivateEvent", err)
		return
	}
	response.JSON(w, http.StatusCreated, out)
}

func (h *HTTPHandler) EditPrivateEvent(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "EditPrivateEvent", err)
		return
	}
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req service.EditPrivateEventInput
	if err := h.decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if !h.validate(w, req) {
		return
	}

	out, err := h.events.Edit(r.Context(), ident.ParticipantID, eventID, req)
	if err != nil {
		h.respondError(w, r, "EditPrivateEvent", err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) DeletePrivateEvent(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "DeletePrivateEvent", err)
		return
	}
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.events.Delete(r.Context(), ident.ParticipantID, eventID); err != nil {
		h.respondError(w, r, "DeletePrivateEvent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) GetPrivateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		response.Error(w, err)
		return
	}
	out, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		h.respondError(w, r, "GetPrivateEvent", err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

// ListPrivateEvents returns the events the caller organizes or is invited to.
func (h *HTTPHandler) ListPrivateEvents(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "ListPrivateEvents", err)
		return
	}
	out, err := h.events.ListForParticipant(r.Context(), ident.ParticipantID)
	if err != nil {
		h.respondError(w, r, "ListPrivateEvents", err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "AcceptInvite", models.InviteStatusAccepted)
}

func (h *HTTPHandler) RejectInvite(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "RejectInvite", models.InviteStatusRejected)
}

func (h *HTTPHandler) respond(w http.ResponseWriter, r *http.Request, op string, decision models.InviteStatus) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, op, err)
		return
	}
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.events.Respond(r.Context(), ident.ParticipantID, eventID, decision); err != nil {
		h.respondError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "ListNotifications", err)
		return
	}
	out, err := h.events.Notifications(r.Context(), ident.ParticipantID)
	if err != nil {
		h.respondError(w, r, "ListNotifications", err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}
