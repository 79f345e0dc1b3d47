package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	"github.com/vogiaan1904/pelotond/internal/service"
	"github.com/vogiaan1904/pelotond/pkg/response"
)

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "Login", err)
		return
	}

	var req loginRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	out, err := h.relay.Login(r.Context(), req.toInput(loginIdentity{id: ident.ParticipantID, key: ident.RelayKey}))
	if err != nil {
		h.respondError(w, r, "Login", err)
		return
	}
	response.JSON(w, http.StatusOK, loginResp{LoginOutput: out, ExpiresAt: ident.ExpiresAt})
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "Logout", err)
		return
	}
	if err := h.relay.Logout(r.Context(), ident.ParticipantID); err != nil {
		h.respondError(w, r, "Logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) GetWorlds(w http.ResponseWriter, r *http.Request) {
	v := h.relay.Snapshot(r.Context(), 0)
	if wantsJSON(r) {
		response.Raw(w, http.StatusOK, newWorldsResp(v))
		return
	}
	response.Protobuf(w, http.StatusOK, protocol.EncodeWorlds(v))
}

// GetWorld serves one course of the realm. The course is picked with the
// "course" query parameter, defaulting to the first populated course.
func (h *HTTPHandler) GetWorld(w http.ResponseWriter, r *http.Request) {
	worldID, err := parseIDParam(r, "worldID")
	if err != nil {
		response.Error(w, err)
		return
	}
	if worldID != h.realmID {
		response.Error(w, errWorldNotFound)
		return
	}

	var course int64
	if q := r.URL.Query().Get("course"); q != "" {
		course, err = strconv.ParseInt(q, 10, 32)
		if err != nil || course < 0 {
			response.Error(w, errInvalidInput)
			return
		}
	}

	v := h.relay.Snapshot(r.Context(), int32(course))
	c := models.CourseView{CourseID: int32(course)}
	if len(v.Courses) > 0 {
		c = v.Courses[0]
	}

	if wantsJSON(r) {
		response.Raw(w, http.StatusOK, newWorldResp(v, c))
		return
	}
	response.Protobuf(w, http.StatusOK, protocol.EncodeWorld(v, c))
}

// PostAttribute ingests one WorldAttribute from the sender.
func (h *HTTPHandler) PostAttribute(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "PostAttribute", err)
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.relay.IngestFrame(r.Context(), ident.ParticipantID, body); err != nil {
		h.respondError(w, r, "PostAttribute", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// PutState records a PlayerState sent over HTTP instead of UDP.
func (h *HTTPHandler) PutState(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "PutState", err)
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.relay.IngestState(r.Context(), ident.ParticipantID, body); err != nil {
		h.respondError(w, r, "PutState", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RideOn gives a ride on to playerID. The sender is the caller; a profileId
// in the body must match it when present.
func (h *HTTPHandler) RideOn(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "RideOn", err)
		return
	}
	to, err := parseParticipantParam(r, "playerID")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req rideOnRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.OtherID != 0 && req.OtherID != ident.ParticipantID {
		response.Error(w, errUnauthorized)
		return
	}

	if err := h.relay.RideOn(r.Context(), service.RideOnInput{From: ident.ParticipantID, To: to}); err != nil {
		h.respondError(w, r, "RideOn", err)
		return
	}
	response.Raw(w, http.StatusOK, map[string]string{"message": "ok"})
}

// PostSegmentResult stores a protobuf SegmentResult for the caller.
func (h *HTTPHandler) PostSegmentResult(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity(r)
	if err != nil {
		h.respondError(w, r, "PostSegmentResult", err)
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	res, err := protocol.DecodeSegmentResult(body)
	if err != nil {
		response.Error(w, errMalformedFrame)
		return
	}
	if res.PlayerID != 0 && res.PlayerID != ident.ParticipantID {
		response.Error(w, errUnauthorized)
		return
	}
	res.PlayerID = ident.ParticipantID

	id, err := h.relay.StoreSegmentResult(r.Context(), &res)
	if err != nil {
		h.respondError(w, r, "PostSegmentResult", err)
		return
	}
	response.Raw(w, http.StatusOK, segmentResultIDResp{ID: id})
}

func (h *HTTPHandler) GetSegmentResult(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "resultID")
	if err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.relay.GetSegmentResult(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "GetSegmentResult", err)
		return
	}
	if wantsJSON(r) {
		response.Raw(w, http.StatusOK, res)
		return
	}
	response.Protobuf(w, http.StatusOK, protocol.EncodeSegmentResult(*res))
}

func (h *HTTPHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	segmentID, err := parseIDParam(r, "segmentID")
	if err != nil {
		response.Error(w, err)
		return
	}
	var limit int64
	if q := r.URL.Query().Get("limit"); q != "" {
		limit, err = strconv.ParseInt(q, 10, 64)
		if err != nil {
			response.Error(w, errInvalidInput)
			return
		}
	}

	results, err := h.relay.Leaderboard(r.Context(), segmentID, limit)
	if err != nil {
		h.respondError(w, r, "GetLeaderboard", err)
		return
	}
	response.JSON(w, http.StatusOK, results)
}

func (h *HTTPHandler) EventSignup(w http.ResponseWriter, r *http.Request) {
	h.subgroup(w, r, "EventSignup", h.relay.JoinEvent)
}

func (h *HTTPHandler) EventUnsignup(w http.ResponseWriter, r *http.Request) {
	h.subgroup(w, r, "EventUnsignup", h.relay.LeaveEvent)
}

func (h *HTTPHandler) subgroup(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, in service.SubgroupInput) error) {
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
	var subgroupID int64
	if q := r.URL.Query().Get("subgroup"); q != "" {
		subgroupID, err = strconv.ParseInt(q, 10, 64)
		if err != nil {
			response.Error(w, errInvalidInput)
			return
		}
	}

	in := service.SubgroupInput{ParticipantID: ident.ParticipantID, EventID: eventID, SubgroupID: subgroupID}
	if err := fn(r.Context(), in); err != nil {
		h.respondError(w, r, op, err)
		return
	}
	response.Raw(w, http.StatusOK, map[string]bool{"signedUp": op == "EventSignup"})
}
