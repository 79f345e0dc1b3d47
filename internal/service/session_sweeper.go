package service

import (
	"context"
	"sync"
	"time"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
)

type SessionSweeper interface {
	Start(ctx context.Context) error
	Stop() error
	SweepOnce(ctx context.Context) []models.ParticipantID
	GetStatus() SweeperStatus
}

type SweeperStatus struct {
	IsRunning   bool      `json:"is_running"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	LastSweptAt time.Time `json:"last_swept_at,omitempty"`
	TotalClosed int64     `json:"total_closed"`
}

// IdleSweeper closes the transports of sessions idle past timeout.
type IdleSweeper interface {
	Sweep(ctx context.Context, timeout time.Duration) []models.ParticipantID
}

type sessionSweeper struct {
	world    IdleSweeper
	l        logger.Logger
	interval time.Duration
	timeout  time.Duration

	mu          sync.RWMutex
	isRunning   bool
	startedAt   time.Time
	lastSweptAt time.Time
	totalClosed int64
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

func NewSessionSweeper(w IdleSweeper, cfg config.RelayConfig, l logger.Logger) SessionSweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &sessionSweeper{
		world:    w,
		l:        l,
		interval: interval,
		timeout:  cfg.IdleTimeout,
	}
}

func (s *sessionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSweeperRunning
	}

	s.isRunning = true
	s.startedAt = time.Now()
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)

	s.l.Infof(ctx, "service.sessionSweeper.Start: every %s, idle timeout %s", s.interval, s.timeout)
	return nil
}

func (s *sessionSweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSweeperNotRunning
	}
	close(s.stopCh)
	s.isRunning = false
	s.mu.Unlock()

	s.wg.Wait()
	s.l.Info(context.Background(), "service.sessionSweeper.Stop: stopped")
	return nil
}

func (s *sessionSweeper) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *sessionSweeper) SweepOnce(ctx context.Context) []models.ParticipantID {
	ids := s.world.Sweep(ctx, s.timeout)

	s.mu.Lock()
	s.lastSweptAt = time.Now()
	s.totalClosed += int64(len(ids))
	s.mu.Unlock()

	if len(ids) > 0 {
		s.l.Infof(ctx, "service.sessionSweeper.SweepOnce: closed %d idle sessions: %v", len(ids), ids)
	}
	return ids
}

func (s *sessionSweeper) GetStatus() SweeperStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SweeperStatus{
		IsRunning:   s.isRunning,
		StartedAt:   s.startedAt,
		LastSweptAt: s.lastSweptAt,
		TotalClosed: s.totalClosed,
	}
}
