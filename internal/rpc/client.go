package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/pump"
)

// Client talks to a running daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon socket at path. The connection is lazy; the
// first call reports an unreachable daemon.
func Dial(path string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient("unix://"+path, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client { return &Client{conn: conn} }

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }

// List returns up to limit entries, oldest first. Zero means all in memory.
func (c *Client) List(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit < 0 {
		limit = 0
	}
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, methodList, wrapperspb.UInt32(uint32(limit)), out); err != nil {
		return nil, err
	}
	return entriesFromList(out), nil
}

// Status returns the daemon's status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodStatus, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Watch streams events to fn until ctx is done, the daemon hangs up, or fn
// returns an error. The first event is always HistoryLoaded.
func (c *Client) Watch(ctx context.Context, fn func(pump.Event) error) error {
	desc := &serviceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, desc, methodWatch)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		ev, err := eventFromStruct(msg)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
