package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
)

// SegmentResultRepository persists segment efforts and keeps a per-segment
// leaderboard ordered by elapsed time.
type SegmentResultRepository interface {
	Store(ctx context.Context, res *models.SegmentResult) (int64, error)
	Get(ctx context.Context, id int64) (*models.SegmentResult, error)
	Leaderboard(ctx context.Context, segmentID int64, limit int64) ([]models.SegmentResult, error)
}

type redisSegmentResultRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisSegmentResultRepository(cli *redis.Client, l logger.Logger) SegmentResultRepository {
	return &redisSegmentResultRepository{cli: cli, l: l}
}

// Store assigns the record its id and returns it.
func (r *redisSegmentResultRepository) Store(ctx context.Context, res *models.SegmentResult) (int64, error) {
	id, err := r.cli.Incr(ctx, "pelotond:segment_result:seq")
	if err != nil {
		r.l.Errorf(ctx, "redisSegmentResultRepository.Store: %v", err)
		return 0, err
	}
	res.ID = id

	data, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal segment result: %w", err)
	}

	pipe := r.cli.GetClient().TxPipeline()
	pipe.Set(ctx, r.resultKey(id), data, 0)
	pipe.ZAdd(ctx, r.leaderboardKey(res.SegmentID), goredis.Z{Score: float64(res.ElapsedMs), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisSegmentResultRepository.Store: %v", err)
		return 0, err
	}
	return id, nil
}

func (r *redisSegmentResultRepository) Get(ctx context.Context, id int64) (*models.SegmentResult, error) {
	data, err := r.cli.Get(ctx, r.resultKey(id))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "redisSegmentResultRepository.Get: %v", err)
		return nil, err
	}

	var res models.SegmentResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Leaderboard returns the fastest efforts, fastest first.
func (r *redisSegmentResultRepository) Leaderboard(ctx context.Context, segmentID int64, limit int64) ([]models.SegmentResult, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := r.cli.GetClient().ZRange(ctx, r.leaderboardKey(segmentID), 0, limit-1).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisSegmentResultRepository.Leaderboard: %v", err)
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "pelotond:segment_result:" + id
	}
	vals, err := r.cli.GetClient().MGet(ctx, keys...).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisSegmentResultRepository.Leaderboard: %v", err)
		return nil, err
	}

	out := make([]models.SegmentResult, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var res models.SegmentResult
		if err := json.Unmarshal([]byte(s), &res); err != nil {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *redisSegmentResultRepository) resultKey(id int64) string {
	return fmt.Sprintf("pelotond:segment_result:%d", id)
}

func (r *redisSegmentResultRepository) leaderboardKey(segmentID int64) string {
	return fmt.Sprintf("pelotond:segment:%d:leaderboard", segmentID)
}
