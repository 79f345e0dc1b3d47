package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	"github.com/vogiaan1904/pelotond/pkg/redis"
)

const mirrorChannel = "pelotond:world:broadcast"

// BroadcastMirror shares routed frames between server instances over Redis
// pub/sub. Delivery is best effort, like the relay itself.
type BroadcastMirror interface {
	Publish(ctx context.Context, ev models.MirrorEvent) error
	// Subscribe calls handle for every event published by another instance
	// until ctx is done.
	Subscribe(ctx context.Context, handle func(context.Context, models.MirrorEvent)) error
}

type redisBroadcastMirror struct {
	cli        *redis.Client
	instanceID string
	l          logger.Logger
}

func NewRedisBroadcastMirror(cli *redis.Client, instanceID string, l logger.Logger) BroadcastMirror {
	return &redisBroadcastMirror{cli: cli, instanceID: instanceID, l: l}
}

func (m *redisBroadcastMirror) Publish(ctx context.Context, ev models.MirrorEvent) error {
	ev.InstanceID = m.instanceID
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal mirror event: %w", err)
	}
	if err := m.cli.GetClient().Publish(ctx, mirrorChannel, data).Err(); err != nil {
		m.l.Errorf(ctx, "redisBroadcastMirror.Publish: %v", err)
		return err
	}
	return nil
}

func (m *redisBroadcastMirror) Subscribe(ctx context.Context, handle func(context.Context, models.MirrorEvent)) error {
	sub := m.cli.GetClient().Subscribe(ctx, mirrorChannel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mirrorChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.MirrorEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				m.l.Warnf(ctx, "redisBroadcastMirror.Subscribe: bad payload: %v", err)
				continue
			}
			if ev.InstanceID == m.instanceID {
				continue
			}
			handle(ctx, ev)
		}
	}
}
