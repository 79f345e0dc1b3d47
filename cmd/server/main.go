package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/auth"
	grpcSvc "github.com/vogiaan1904/pelotond/internal/delivery/grpc"
	httpDelivery "github.com/vogiaan1904/pelotond/internal/delivery/http"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/pelotond/internal/delivery/tcp"
	"github.com/vogiaan1904/pelotond/internal/delivery/udp"
	"github.com/vogiaan1904/pelotond/internal/infra/redis"
	"github.com/vogiaan1904/pelotond/internal/models"
	repo "github.com/vogiaan1904/pelotond/internal/repository/redis"
	"github.com/vogiaan1904/pelotond/internal/service"
	"github.com/vogiaan1904/pelotond/internal/sim"
	"github.com/vogiaan1904/pelotond/internal/world"
	pkgKafka "github.com/vogiaan1904/pelotond/pkg/kafka"
	pkgLog "github.com/vogiaan1904/pelotond/pkg/logger"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := redis.Connect(ctx, cfg.Redis, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(context.Background(), redisCli, l)

	profileRepo := repo.NewRedisProfileRepository(redisCli, l)
	eventRepo := repo.NewRedisPrivateEventRepository(redisCli, l)
	notifRepo := repo.NewRedisNotificationRepository(redisCli, l)
	segmentRepo := repo.NewRedisSegmentResultRepository(redisCli, l)

	// Simulated participants
	pools, err := loadPools(cfg, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to load simulation routes: %v", err)
	}
	for _, p := range pools {
		go p.Run(ctx, cfg.Sim.TickInterval)
	}
	worldPools := make([]world.Pool, 0, len(pools))
	for _, p := range pools {
		worldPools = append(worldPools, p)
	}

	w := world.New(world.Config{
		QueueDepth:      cfg.Relay.QueueDepth,
		ProximityRadius: cfg.Relay.ProximityRadius,
	}, profileRepo, l, worldPools...)
	if err := w.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start world: %v", err)
	}
	defer w.Stop()

	// Kafka producer
	prod := producer.NewNopProducer()
	if cfg.Kafka.Enabled {
		kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     "pelotond",
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kafkaSyncProd, l)
	}
	defer prod.Close()

	// Cross-instance mirror
	var mirror service.Mirror
	var broadcastMirror repo.BroadcastMirror
	if cfg.Relay.MirrorEnabled {
		broadcastMirror = repo.NewRedisBroadcastMirror(redisCli, uuid.NewString(), l)
		mirror = broadcastMirror
	}

	// Initialize services
	relaySvc := service.NewRelayService(w, profileRepo, segmentRepo, prod, mirror, cfg, l)
	eventSvc := service.NewPrivateEventService(eventRepo, notifRepo, relaySvc, prod, l)
	sweeper := service.NewSessionSweeper(w, cfg.Relay, l)
	if err := sweeper.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start session sweeper: %v", err)
	}

	if broadcastMirror != nil {
		go func() {
			if err := broadcastMirror.Subscribe(ctx, relaySvc.ApplyMirror); err != nil {
				l.Errorf(ctx, "Mirror subscription ended: %v", err)
			}
		}()
	}

	// Chat bridge consumer
	var cons *consumer.Consumer
	if cfg.Kafka.Enabled {
		kafkaConsGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.ConsumerGroupID,
			ClientID: "pelotond",
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}
		cons = consumer.NewConsumer(kafkaConsGr, relaySvc, l)
		if err := cons.Start(ctx); err != nil {
			l.Fatalf(ctx, "Failed to start Kafka consumer: %v", err)
		}
	}

	// Listeners
	authn := auth.NewAuthenticator(cfg.JWT)
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpDelivery.NewHTTPHandler(relaySvc, eventSvc, authn, cfg.Relay, l).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tcpLnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.TCPPort))
	if err != nil {
		l.Fatalf(ctx, "TCP relay failed to listen: %v", err)
	}
	udpConn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", cfg.Server.UDPPort))
	if err != nil {
		l.Fatalf(ctx, "UDP relay failed to listen: %v", err)
	}
	grpcLnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}

	gRpcSrv := grpc.NewServer()
	grpcSvc.RegisterWorldServiceServer(gRpcSrv, grpcSvc.NewWorldService(relaySvc, l))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gRpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return tcp.NewServer(relaySvc, cfg.Relay, l).Serve(gctx, tcpLnr)
	})
	g.Go(func() error {
		return udp.NewServer(relaySvc, l).Serve(gctx, udpConn)
	})
	g.Go(func() error {
		l.Infof(ctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := gRpcSrv.Serve(grpcLnr); err != nil {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-gctx.Done():
		l.Errorf(ctx, "A listener stopped unexpectedly, shutting down")
	}

	l.Info(ctx, "Server shutting down...")
	healthSrv.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		l.Warnf(ctx, "HTTP shutdown: %v", err)
	}
	cancel()
	gRpcSrv.GracefulStop()

	if err := g.Wait(); err != nil {
		l.Errorf(context.Background(), "Listener error: %v", err)
	}

	if err := sweeper.Stop(); err != nil {
		l.Warnf(context.Background(), "Stopping session sweeper: %v", err)
	}
	if cons != nil {
		if err := cons.Close(); err != nil {
			l.Warnf(context.Background(), "Closing Kafka consumer: %v", err)
		}
	}

	l.Info(context.Background(), "Server exited")
}

func loadPools(cfg *config.Config, l pkgLog.Logger) ([]*sim.RoutePool, error) {
	sources := []struct {
		kind models.ParticipantKind
		path string
	}{
		{models.KindPacePartner, cfg.Sim.PacePartnerRoutes},
		{models.KindBot, cfg.Sim.BotRoutes},
		{models.KindGhost, cfg.Sim.GhostRoutes},
	}

	var pools []*sim.RoutePool
	for _, src := range sources {
		routes, err := sim.LoadRoutes(src.path)
		if err != nil {
			return nil, err
		}
		if len(routes) == 0 {
			continue
		}
		pools = append(pools, sim.NewRoutePool(src.kind, cfg.Relay.GhostBase, routes, l))
	}
	return pools, nil
}
