package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const WorldServiceName = "pelotond.relay.v1.WorldService"

const (
	GetWorldCountsMethod = "/" + WorldServiceName + "/GetWorldCounts"
	ListOnlineMethod     = "/" + WorldServiceName + "/ListOnline"
	KickMethod           = "/" + WorldServiceName + "/Kick"
)

type cleanupFunc func()

// WorldClient calls the admin world service.
type WorldClient interface {
	GetWorldCounts(ctx context.Context) (*structpb.Struct, error)
	ListOnline(ctx context.Context) (*structpb.ListValue, error)
	Kick(ctx context.Context, participantID int64) error
}

type worldClient struct {
	conn grpc.ClientConnInterface
}

func NewWorldClientFromConn(conn grpc.ClientConnInterface) WorldClient {
	return &worldClient{conn: conn}
}

// NewWorldClient dials addr without TLS. Extra options are appended, which
// lets tests swap in a bufconn dialer.
func NewWorldClient(addr string, opts ...grpc.DialOption) (WorldClient, cleanupFunc, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial world service %s: %w", addr, err)
	}
	return NewWorldClientFromConn(conn), func() { conn.Close() }, nil
}

func (c *worldClient) GetWorldCounts(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetWorldCountsMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *worldClient) ListOnline(ctx context.Context) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, ListOnlineMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *worldClient) Kick(ctx context.Context, participantID int64) error {
	return c.conn.Invoke(ctx, KickMethod, wrapperspb.Int64(participantID), &emptypb.Empty{})
}
