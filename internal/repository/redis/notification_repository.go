package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
)

// NotificationRepository keeps one inbox hash per participant, keyed by
// event id, so each participant has at most one notification per event.
type NotificationRepository interface {
	Put(ctx context.Context, n models.Notification) error
	Delete(ctx context.Context, id models.ParticipantID, eventID int64) error
	DeleteForEvent(ctx context.Context, eventID int64, ids []models.ParticipantID) error
	MarkUnread(ctx context.Context, eventID int64, ids []models.ParticipantID) error
	MarkRead(ctx context.Context, id models.ParticipantID, eventID int64) error
	List(ctx context.Context, id models.ParticipantID) ([]models.Notification, error)
}

type redisNotificationRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisNotificationRepository(cli *redis.Client, l logger.Logger) NotificationRepository {
	return &redisNotificationRepository{cli: cli, l: l}
}

func (r *redisNotificationRepository) Put(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	field := strconv.FormatInt(n.EventID, 10)
	if err := r.cli.GetClient().HSet(ctx, r.inboxKey(n.ParticipantID), field, data).Err(); err != nil {
		r.l.Errorf(ctx, "redisNotificationRepository.Put: %v", err)
		return err
	}
	return nil
}

func (r *redisNotificationRepository) Delete(ctx context.Context, id models.ParticipantID, eventID int64) error {
	return r.DeleteForEvent(ctx, eventID, []models.ParticipantID{id})
}

func (r *redisNotificationRepository) DeleteForEvent(ctx context.Context, eventID int64, ids []models.ParticipantID) error {
	if len(ids) == 0 {
		return nil
	}
	field := strconv.FormatInt(eventID, 10)

	pipe := r.cli.GetClient().Pipeline()
	for _, id := range ids {
		pipe.HDel(ctx, r.inboxKey(id), field)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisNotificationRepository.DeleteForEvent: %v", err)
		return err
	}
	return nil
}

func (r *redisNotificationRepository) MarkUnread(ctx context.Context, eventID int64, ids []models.ParticipantID) error {
	return r.setRead(ctx, eventID, ids, false)
}

func (r *redisNotificationRepository) MarkRead(ctx context.Context, id models.ParticipantID, eventID int64) error {
	return r.setRead(ctx, eventID, []models.ParticipantID{id}, true)
}

// setRead rewrites existing notifications only; missing ones stay missing.
func (r *redisNotificationRepository) setRead(ctx context.Context, eventID int64, ids []models.ParticipantID, read bool) error {
	field := strconv.FormatInt(eventID, 10)
	for _, id := range ids {
		raw, err := r.cli.GetClient().HGet(ctx, r.inboxKey(id), field).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			r.l.Errorf(ctx, "redisNotificationRepository.setRead: %v", err)
			return err
		}

		var n models.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			r.l.Warnf(ctx, "redisNotificationRepository.setRead: dropping corrupt notification %d/%d: %v", id, eventID, err)
			continue
		}
		n.Read = read
		if err := r.Put(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// List returns the inbox newest first.
func (r *redisNotificationRepository) List(ctx context.Context, id models.ParticipantID) ([]models.Notification, error) {
	raw, err := r.cli.GetClient().HGetAll(ctx, r.inboxKey(id)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisNotificationRepository.List: %v", err)
		return nil, err
	}

	out := make([]models.Notification, 0, len(raw))
	for _, v := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EventID > out[j].EventID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *redisNotificationRepository) inboxKey(id models.ParticipantID) string {
	return fmt.Sprintf("pelotond:notifications:%d", id)
}
