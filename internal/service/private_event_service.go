package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/protocol"
	repo "github.com/vogiaan1904/pelotond/internal/repository/redis"
	"github.com/vogiaan1904/pelotond/pkg/logger"
)

const editLockTTL = 5 * time.Second

type PrivateEventService interface {
	Create(ctx context.Context, organizer models.ParticipantID, in CreatePrivateEventInput) (*PrivateEventOutput, error)
	Edit(ctx context.Context, organizer models.ParticipantID, eventID int64, in EditPrivateEventInput) (*PrivateEventOutput, error)
	Respond(ctx context.Context, invitee models.ParticipantID, eventID int64, decision models.InviteStatus) error
	Delete(ctx context.Context, organizer models.ParticipantID, eventID int64) error
	Get(ctx context.Context, eventID int64) (*PrivateEventOutput, error)
	ListForParticipant(ctx context.Context, id models.ParticipantID) ([]PrivateEventOutput, error)
	Notifications(ctx context.Context, id models.ParticipantID) ([]models.Notification, error)
}

// FrameDeliverer sends targeted frames to online riders.
type FrameDeliverer interface {
	Deliver(ctx context.Context, t models.FrameType, origin models.ParticipantID, targets []models.ParticipantID, payload []byte) int
}

type privateEventService struct {
	events  repo.PrivateEventRepository
	notifs  repo.NotificationRepository
	frames  FrameDeliverer
	prod    producer.Producer
	l       logger.Logger
	nowFunc func() time.Time
}

func NewPrivateEventService(
	events repo.PrivateEventRepository,
	notifs repo.NotificationRepository,
	frames FrameDeliverer,
	prod producer.Producer,
	l logger.Logger,
) PrivateEventService {
	return &privateEventService{
		events:  events,
		notifs:  notifs,
		frames:  frames,
		prod:    prod,
		l:       l,
		nowFunc: time.Now,
	}
}

func (s *privateEventService) Create(ctx context.Context, organizer models.ParticipantID, in CreatePrivateEventInput) (*PrivateEventOutput, error) {
	if strings.TrimSpace(in.Name) == "" || organizer <= 0 {
		return nil, ErrInvalidInput
	}

	id, err := s.events.NextID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.nowFunc()
	ev := &models.PrivateEvent{
		ID:          id,
		OrganizerID: organizer,
		Name:        in.Name,
		Description: in.Description,
		StartTime:   in.StartTime,
		CourseID:    in.CourseID,
		RouteID:     in.RouteID,
		Sport:       in.Sport,
		Laps:        in.Laps,
		DistanceM:   in.DistanceM,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	invitees := uniqueInvitees(in.Invitees, organizer)
	invites := make([]models.Invite, 0, len(invitees)+1)
	invites = append(invites, models.Invite{EventID: id, ParticipantID: organizer, Status: models.InviteStatusAccepted, UpdatedAt: now})
	for _, pid := range invitees {
		invites = append(invites, models.Invite{EventID: id, ParticipantID: pid, Status: models.InviteStatusPending, UpdatedAt: now})
	}
	if err := s.events.Create(ctx, ev, invites); err != nil {
		s.l.Errorf(ctx, "service.privateEventService.Create: %v", err)
		return nil, err
	}

	for _, pid := range invitees {
		s.invite(ctx, ev, pid)
	}

	s.l.Infof(ctx, "service.privateEventService.Create: event %d by %d with %d invitees", id, organizer, len(invitees))
	sortInvites(invites)
	return &PrivateEventOutput{PrivateEvent: *ev, Invites: invites}, nil
}

// Edit applies the changed fields and replaces the invite list, diffing
// against the invites stored now rather than the ones at creation time.
func (s *privateEventService) Edit(ctx context.Context, organizer models.ParticipantID, eventID int64, in EditPrivateEventInput) (*PrivateEventOutput, error) {
	token, err := s.events.AcquireLock(ctx, eventID, editLockTTL)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrEventBusy
	}
	defer func() {
		if err := s.events.ReleaseLock(ctx, eventID, token); err != nil {
			s.l.Warnf(ctx, "service.privateEventService.Edit: release lock: %v", err)
		}
	}()

	ev, err := s.getOwned(ctx, organizer, eventID)
	if err != nil {
		return nil, err
	}

	applyEdit(ev, in)
	ev.UpdatedAt = s.nowFunc()
	if err := s.events.Save(ctx, ev); err != nil {
		s.l.Errorf(ctx, "service.privateEventService.Edit: %v", err)
		return nil, err
	}

	current, err := s.events.Invites(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var remaining []models.ParticipantID
	if in.Invitees == nil {
		for _, inv := range current {
			if inv.ParticipantID != organizer {
				remaining = append(remaining, inv.ParticipantID)
			}
		}
	} else {
		wanted := uniqueInvitees(in.Invitees, organizer)
		removed, added := diffInvites(current, wanted, organizer)

		if err := s.events.RemoveInvites(ctx, eventID, removed); err != nil {
			return nil, err
		}
		if err := s.notifs.DeleteForEvent(ctx, eventID, removed); err != nil {
			return nil, err
		}
		for _, pid := range removed {
			s.uninvite(ctx, ev, pid)
		}

		if len(added) > 0 {
			invites := make([]models.Invite, 0, len(added))
			for _, pid := range added {
				invites = append(invites, models.Invite{EventID: eventID, ParticipantID: pid, Status: models.InviteStatusPending, UpdatedAt: ev.UpdatedAt})
			}
			if err := s.events.PutInvites(ctx, eventID, invites); err != nil {
				return nil, err
			}
			for _, pid := range added {
				s.invite(ctx, ev, pid)
			}
		}
		remaining = wanted
	}

	// Changed details need another look from everyone still invited.
	if err := s.notifs.MarkUnread(ctx, eventID, remaining); err != nil {
		return nil, err
	}

	invites, err := s.events.Invites(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &PrivateEventOutput{PrivateEvent: *ev, Invites: invites}, nil
}

// Respond records the invitee's decision. Only a pending invite can change
// and nothing is broadcast.
func (s *privateEventService) Respond(ctx context.Context, invitee models.ParticipantID, eventID int64, decision models.InviteStatus) error {
	if decision != models.InviteStatusAccepted && decision != models.InviteStatusRejected {
		return ErrInvalidTransition
	}
	if _, err := s.get(ctx, eventID); err != nil {
		return err
	}

	invites, err := s.events.Invites(ctx, eventID)
	if err != nil {
		return err
	}
	var current *models.Invite
	for i := range invites {
		if invites[i].ParticipantID == invitee {
			current = &invites[i]
			break
		}
	}
	if current == nil {
		return ErrInviteNotFound
	}
	if !current.Status.CanTransitionTo(decision) {
		return ErrInvalidTransition
	}

	ok, err := s.events.TransitionInvite(ctx, eventID, invitee, current.Status, decision)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}

	if err := s.notifs.MarkRead(ctx, invitee, eventID); err != nil {
		s.l.Warnf(ctx, "service.privateEventService.Respond: %v", err)
	}
	if err := s.prod.PublishEventInvite(ctx, kafka.EventInviteEvent{
		EventID: eventID,
		Invitee: int64(invitee),
		Status:  string(decision),
	}); err != nil {
		s.l.Warnf(ctx, "service.privateEventService.Respond: publish: %v", err)
	}
	return nil
}

func (s *privateEventService) Delete(ctx context.Context, organizer models.ParticipantID, eventID int64) error {
	token, err := s.events.AcquireLock(ctx, eventID, editLockTTL)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrEventBusy
	}
	defer func() {
		if err := s.events.ReleaseLock(ctx, eventID, token); err != nil {
			s.l.Warnf(ctx, "service.privateEventService.Delete: release lock: %v", err)
		}
	}()

	ev, err := s.getOwned(ctx, organizer, eventID)
	if err != nil {
		return err
	}
	invites, err := s.events.Invites(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.events.Delete(ctx, eventID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}

	var invitees []models.ParticipantID
	for _, inv := range invites {
		if inv.ParticipantID != organizer {
			invitees = append(invitees, inv.ParticipantID)
		}
	}
	if err := s.notifs.DeleteForEvent(ctx, eventID, invitees); err != nil {
		s.l.Warnf(ctx, "service.privateEventService.Delete: %v", err)
	}
	for _, pid := range invitees {
		s.uninvite(ctx, ev, pid)
	}
	return nil
}

func (s *privateEventService) Get(ctx context.Context, eventID int64) (*PrivateEventOutput, error) {
	ev, err := s.get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	invites, err := s.events.Invites(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &PrivateEventOutput{PrivateEvent: *ev, Invites: invites}, nil
}

func (s *privateEventService) ListForParticipant(ctx context.Context, id models.ParticipantID) ([]PrivateEventOutput, error) {
	ids, err := s.events.ListForParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]PrivateEventOutput, 0, len(ids))
	for _, eventID := range ids {
		ev, err := s.Get(ctx, eventID)
		if err != nil {
			if errors.Is(err, ErrEventNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, nil
}

func (s *privateEventService) Notifications(ctx context.Context, id models.ParticipantID) ([]models.Notification, error) {
	return s.notifs.List(ctx, id)
}

func (s *privateEventService) get(ctx context.Context, eventID int64) (*models.PrivateEvent, error) {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

func (s *privateEventService) getOwned(ctx context.Context, organizer models.ParticipantID, eventID int64) (*models.PrivateEvent, error) {
	ev, err := s.get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.OrganizerID != organizer {
		return nil, ErrNotOrganizer
	}
	return ev, nil
}

// invite persists the notification, pushes the invite frame and announces
// the invite. Only the notification is required to succeed; failures are
// logged.
func (s *privateEventService) invite(ctx context.Context, ev *models.PrivateEvent, pid models.ParticipantID) {
	n := models.Notification{
		ID:            uuid.NewString(),
		ParticipantID: pid,
		EventID:       ev.ID,
		Type:          models.NotificationTypePrivateEventInvite,
		CreatedAt:     s.nowFunc(),
	}
	if err := s.notifs.Put(ctx, n); err != nil {
		s.l.Errorf(ctx, "service.privateEventService.invite: %v", err)
	}

	s.frames.Deliver(ctx, models.FrameEventInvite, ev.OrganizerID, []models.ParticipantID{pid}, notice(ev, pid))

	if err := s.prod.PublishEventInvite(ctx, kafka.EventInviteEvent{
		EventID: ev.ID,
		Inviter: int64(ev.OrganizerID),
		Invitee: int64(pid),
		Status:  string(models.InviteStatusPending),
	}); err != nil {
		s.l.Warnf(ctx, "service.privateEventService.invite: publish: %v", err)
	}
}

func (s *privateEventService) uninvite(ctx context.Context, ev *models.PrivateEvent, pid models.ParticipantID) {
	s.frames.Deliver(ctx, models.FrameEventInviteRemoved, ev.OrganizerID, []models.ParticipantID{pid}, notice(ev, pid))
}

func notice(ev *models.PrivateEvent, pid models.ParticipantID) []byte {
	return protocol.InviteNotice{
		EventID:   ev.ID,
		Inviter:   ev.OrganizerID,
		Invitee:   pid,
		Name:      ev.Name,
		StartTime: ev.StartTime.UnixMilli(),
	}.Marshal()
}

func applyEdit(ev *models.PrivateEvent, in EditPrivateEventInput) {
	if in.Name != nil {
		ev.Name = *in.Name
	}
	if in.Description != nil {
		ev.Description = *in.Description
	}
	if in.StartTime != nil {
		ev.StartTime = *in.StartTime
	}
	if in.CourseID != nil {
		ev.CourseID = *in.CourseID
	}
	if in.RouteID != nil {
		ev.RouteID = *in.RouteID
	}
	if in.Laps != nil {
		ev.Laps = *in.Laps
	}
	if in.DistanceM != nil {
		ev.DistanceM = *in.DistanceM
	}
}

// uniqueInvitees drops duplicates, the organizer and non-positive ids.
func uniqueInvitees(ids []models.ParticipantID, organizer models.ParticipantID) []models.ParticipantID {
	seen := make(map[models.ParticipantID]struct{}, len(ids))
	out := make([]models.ParticipantID, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || id == organizer {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func diffInvites(current []models.Invite, wanted []models.ParticipantID, organizer models.ParticipantID) (removed, added []models.ParticipantID) {
	want := make(map[models.ParticipantID]struct{}, len(wanted))
	for _, id := range wanted {
		want[id] = struct{}{}
	}
	have := make(map[models.ParticipantID]struct{}, len(current))
	for _, inv := range current {
		have[inv.ParticipantID] = struct{}{}
		if inv.ParticipantID == organizer {
			continue
		}
		if _, ok := want[inv.ParticipantID]; !ok {
			removed = append(removed, inv.ParticipantID)
		}
	}
	for _, id := range wanted {
		if _, ok := have[id]; !ok {
			added = append(added, id)
		}
	}
	return removed, added
}

func sortInvites(invites []models.Invite) {
	sort.Slice(invites, func(i, j int) bool { return invites[i].ParticipantID < invites[j].ParticipantID })
}
