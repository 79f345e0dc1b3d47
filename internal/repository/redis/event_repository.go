package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
)

// PrivateEventRepository stores private events and their invite lists.
// Invites live in one hash per event: participant id -> status.
type PrivateEventRepository interface {
	NextID(ctx context.Context) (int64, error)
	// Create stores a new event together with its first invites.
	Create(ctx context.Context, ev *models.PrivateEvent, invites []models.Invite) error
	Save(ctx context.Context, ev *models.PrivateEvent) error
	Get(ctx context.Context, eventID int64) (*models.PrivateEvent, error)
	Delete(ctx context.Context, eventID int64) error
	ListForParticipant(ctx context.Context, id models.ParticipantID) ([]int64, error)

	Invites(ctx context.Context, eventID int64) ([]models.Invite, error)
	PutInvites(ctx context.Context, eventID int64, invites []models.Invite) error
	RemoveInvites(ctx context.Context, eventID int64, ids []models.ParticipantID) error
	// TransitionInvite moves an invite from one status to another only if it
	// currently has the from status.
	TransitionInvite(ctx context.Context, eventID int64, id models.ParticipantID, from, to models.InviteStatus) (bool, error)

	AcquireLock(ctx context.Context, eventID int64, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, eventID int64, token string) error
}

type redisPrivateEventRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisPrivateEventRepository(cli *redis.Client, l logger.Logger) PrivateEventRepository {
	return &redisPrivateEventRepository{cli: cli, l: l}
}

var transitionScript = goredis.NewScript(`
	local current = redis.call('HGET', KEYS[1], ARGV[1])
	if current ~= ARGV[2] then
		return 0
	end
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
	return 1
`)

var releaseScript = goredis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

func (r *redisPrivateEventRepository) NextID(ctx context.Context) (int64, error) {
	id, err := r.cli.Incr(ctx, "pelotond:private_event:seq")
	if err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.NextID: %v", err)
		return 0, err
	}
	return id, nil
}

func (r *redisPrivateEventRepository) Create(ctx context.Context, ev *models.PrivateEvent, invites []models.Invite) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := r.cli.GetClient().TxPipeline()
	pipe.Set(ctx, r.eventKey(ev.ID), data, 0)
	pipe.SAdd(ctx, r.participantEventsKey(ev.OrganizerID), ev.ID)
	for _, inv := range invites {
		pipe.HSet(ctx, r.invitesKey(ev.ID), inv.ParticipantID.String(), string(inv.Status))
		pipe.SAdd(ctx, r.participantEventsKey(inv.ParticipantID), ev.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.Create: %v", err)
		return err
	}
	return nil
}

func (r *redisPrivateEventRepository) Save(ctx context.Context, ev *models.PrivateEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := r.cli.GetClient().TxPipeline()
	pipe.Set(ctx, r.eventKey(ev.ID), data, 0)
	pipe.SAdd(ctx, r.participantEventsKey(ev.OrganizerID), ev.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.Save: %v", err)
		return err
	}
	return nil
}

func (r *redisPrivateEventRepository) Get(ctx context.Context, eventID int64) (*models.PrivateEvent, error) {
	data, err := r.cli.Get(ctx, r.eventKey(eventID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "redisPrivateEventRepository.Get: %v", err)
		return nil, err
	}

	var ev models.PrivateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.Get: %v", err)
		return nil, err
	}
	return &ev, nil
}

// Delete removes the event, its invites and its membership index entries.
func (r *redisPrivateEventRepository) Delete(ctx context.Context, eventID int64) error {
	ev, err := r.Get(ctx, eventID)
	if err != nil {
		return err
	}
	invites, err := r.Invites(ctx, eventID)
	if err != nil {
		return err
	}

	pipe := r.cli.GetClient().TxPipeline()
	pipe.Del(ctx, r.eventKey(eventID), r.invitesKey(eventID))
	pipe.SRem(ctx, r.participantEventsKey(ev.OrganizerID), eventID)
	for _, inv := range invites {
		pipe.SRem(ctx, r.participantEventsKey(inv.ParticipantID), eventID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.Delete: %v", err)
		return err
	}
	return nil
}

func (r *redisPrivateEventRepository) ListForParticipant(ctx context.Context, id models.ParticipantID) ([]int64, error) {
	members, err := r.cli.GetClient().SMembers(ctx, r.participantEventsKey(id)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.ListForParticipant: %v", err)
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if v, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, v)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *redisPrivateEventRepository) Invites(ctx context.Context, eventID int64) ([]models.Invite, error) {
	raw, err := r.cli.GetClient().HGetAll(ctx, r.invitesKey(eventID)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.Invites: %v", err)
		return nil, err
	}

	invites := make([]models.Invite, 0, len(raw))
	for field, status := range raw {
		pid, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		invites = append(invites, models.Invite{
			EventID:       eventID,
			ParticipantID: models.ParticipantID(pid),
			Status:        models.InviteStatus(status),
		})
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].ParticipantID < invites[j].ParticipantID })
	return invites, nil
}

func (r *redisPrivateEventRepository) PutInvites(ctx context.Context, eventID int64, invites []models.Invite) error {
	if len(invites) == 0 {
		return nil
	}

	pipe := r.cli.GetClient().TxPipeline()
	for _, inv := range invites {
		pipe.HSet(ctx, r.invitesKey(eventID), inv.ParticipantID.String(), string(inv.Status))
		pipe.SAdd(ctx, r.participantEventsKey(inv.ParticipantID), eventID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.PutInvites: %v", err)
		return err
	}
	return nil
}

func (r *redisPrivateEventRepository) RemoveInvites(ctx context.Context, eventID int64, ids []models.ParticipantID) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := r.cli.GetClient().TxPipeline()
	for _, id := range ids {
		pipe.HDel(ctx, r.invitesKey(eventID), id.String())
		pipe.SRem(ctx, r.participantEventsKey(id), eventID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.RemoveInvites: %v", err)
		return err
	}
	return nil
}

func (r *redisPrivateEventRepository) TransitionInvite(ctx context.Context, eventID int64, id models.ParticipantID, from, to models.InviteStatus) (bool, error) {
	res, err := transitionScript.Run(ctx, r.cli.GetClient(), []string{r.invitesKey(eventID)}, id.String(), string(from), string(to)).Int()
	if err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.TransitionInvite: %v", err)
		return false, err
	}
	return res == 1, nil
}

// AcquireLock takes the per-event edit lock and returns the token needed to
// release it. An empty token means someone else holds the lock.
func (r *redisPrivateEventRepository) AcquireLock(ctx context.Context, eventID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := r.cli.GetClient().SetNX(ctx, r.lockKey(eventID), token, ttl).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.AcquireLock: %v", err)
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (r *redisPrivateEventRepository) ReleaseLock(ctx context.Context, eventID int64, token string) error {
	res, err := releaseScript.Run(ctx, r.cli.GetClient(), []string{r.lockKey(eventID)}, token).Int()
	if err != nil {
		r.l.Errorf(ctx, "redisPrivateEventRepository.ReleaseLock: %v", err)
		return err
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (r *redisPrivateEventRepository) eventKey(eventID int64) string {
	return fmt.Sprintf("pelotond:private_event:%d", eventID)
}

func (r *redisPrivateEventRepository) invitesKey(eventID int64) string {
	return fmt.Sprintf("pelotond:private_event:%d:invites", eventID)
}

func (r *redisPrivateEventRepository) participantEventsKey(id models.ParticipantID) string {
	return fmt.Sprintf("pelotond:participant:%d:private_events", id)
}

func (r *redisPrivateEventRepository) lockKey(eventID int64) string {
	return fmt.Sprintf("pelotond:lock:private_event:%d", eventID)
}
