package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
)

// ProfileRepository is the profile store the world reads partial profiles
// from. Profiles are written by the account service or at login.
type ProfileRepository interface {
	Save(ctx context.Context, p models.FullProfile) error
	LoadFullProfile(ctx context.Context, id models.ParticipantID) (models.FullProfile, error)
}

type redisProfileRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisProfileRepository(cli *redis.Client, l logger.Logger) ProfileRepository {
	return &redisProfileRepository{cli: cli, l: l}
}

func (r *redisProfileRepository) Save(ctx context.Context, p models.FullProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := r.cli.Set(ctx, r.profileKey(p.ID), data, 0); err != nil {
		r.l.Errorf(ctx, "redisProfileRepository.Save: %v", err)
		return err
	}
	return nil
}

func (r *redisProfileRepository) LoadFullProfile(ctx context.Context, id models.ParticipantID) (models.FullProfile, error) {
	data, err := r.cli.Get(ctx, r.profileKey(id))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.FullProfile{}, ErrNotFound
		}
		r.l.Errorf(ctx, "redisProfileRepository.LoadFullProfile: %v", err)
		return models.FullProfile{}, err
	}

	var p models.FullProfile
	if err := json.Unmarshal(data, &p); err != nil {
		r.l.Errorf(ctx, "redisProfileRepository.LoadFullProfile: %v", err)
		return models.FullProfile{}, err
	}
	p.ID = id
	return p, nil
}

func (r *redisProfileRepository) profileKey(id models.ParticipantID) string {
	return fmt.Sprintf("pelotond:profile:%d", id)
}
