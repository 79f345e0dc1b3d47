package redis

import (
	"context"
	"fmt"

	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	pkgRedis "github.com/vogiaan1904/pelotond/pkg/redis"
)

// Connect dials Redis, or starts an embedded one when Redis is disabled.
func Connect(ctx context.Context, cfg config.RedisConfig, l logger.Logger) (*pkgRedis.Client, error) {
	if !cfg.Enabled {
		cli, err := pkgRedis.NewEmbedded()
		if err != nil {
			return nil, err
		}
		l.Warnf(ctx, "Redis disabled, using embedded store at %s; state is not shared between instances", cli.Embedded().Addr())
		return cli, nil
	}

	cli, err := pkgRedis.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	l.Infof(ctx, "Connected to Redis at %s", cfg.Addr)

	return cli, nil
}

func Disconnect(ctx context.Context, cli *pkgRedis.Client, l logger.Logger) {
	if cli == nil {
		return
	}

	if err := cli.Close(); err != nil {
		l.Warnf(ctx, "Closing Redis: %v", err)
		return
	}

	l.Info(ctx, "Connection to Redis closed.")
}
