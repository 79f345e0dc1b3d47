package grpc

import (
	"context"
	"strconv"

	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/service"
	"github.com/vogiaan1904/pelotond/pkg/logger"
	resp "github.com/vogiaan1904/pelotond/pkg/response"
	"github.com/vogiaan1904/pelotond/pkg/util"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type worldService struct {
	svc service.RelayService
	l   logger.Logger
}

func NewWorldService(svc service.RelayService, l logger.Logger) WorldServiceServer {
	return &worldService{
		svc: svc,
		l:   l,
	}
}

// GetWorldCounts reports the population per course plus relay counters.
func (s *worldService) GetWorldCounts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	view := s.svc.Snapshot(ctx, 0)
	stats := s.svc.Stats(ctx)

	courses := make(map[string]any, len(view.Courses))
	for _, c := range view.Courses {
		courses[strconv.Itoa(int(c.CourseID))] = c.Count
	}

	out, err := structpb.NewStruct(map[string]any{
		"world_id":       view.WorldID,
		"world_time":     view.WorldTime,
		"world_clock":    util.TimeToISO8601Str(util.FromWorldTime(view.WorldTime)),
		"total":          view.Total(),
		"courses":        courses,
		"online":         stats.Online,
		"sessions":       stats.Sessions,
		"queued_frames":  stats.QueuedFrames,
		"dropped_frames": stats.DroppedFrames,
	})
	if err != nil {
		s.l.Errorf(ctx, "delivery.grpc.worldService.GetWorldCounts: %v", err)
		return nil, resp.ParseGRPCError(err)
	}
	return out, nil
}

func (s *worldService) ListOnline(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	riders := s.svc.Online(ctx)
	values := make([]any, 0, len(riders))
	for _, r := range riders {
		values = append(values, map[string]any{
			"participant_id": int64(r.ParticipantID),
			"course_id":      r.CourseID,
			"sport":          r.Sport.Name(),
			"has_session":    r.HasSession,
			"tcp_connected":  r.TCPConnected,
			"udp_addr":       r.UDPAddr,
		})
	}

	out, err := structpb.NewList(values)
	if err != nil {
		s.l.Errorf(ctx, "delivery.grpc.worldService.ListOnline: %v", err)
		return nil, resp.ParseGRPCError(err)
	}
	return out, nil
}

// Kick logs a participant out as if it had called logout itself.
func (s *worldService) Kick(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	if req.GetValue() <= 0 {
		return nil, resp.ParseGRPCError(errInvalidInput)
	}
	if err := s.svc.Kick(ctx, models.ParticipantID(req.GetValue())); err != nil {
		s.l.Warnf(ctx, "delivery.grpc.worldService.Kick: %v", err)
		return nil, resp.ParseGRPCError(s.mapGRPCError(err))
	}
	return &emptypb.Empty{}, nil
}
