// Package rpc serves the clipkeep history over local IPC.
//
// The service is plain gRPC built on protobuf well-known types, so it needs
// no generated code:
//
//	clipkeep.v1.History/List   (UInt32Value limit) → ListValue of entries
//	clipkeep.v1.History/Status (Empty)             → Struct
//	clipkeep.v1.History/Watch  (Empty)             → stream Struct events
//
// The same socket also answers HTTP/1.1 JSON requests (GET /v1/history,
// GET /v1/status) through a grpc-gateway mux; see Serve.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/clipkeep/internal/feed"
	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/pump"
)

const (
	serviceName = "clipkeep.v1.History"

	methodList   = "/" + serviceName + "/List"
	methodStatus = "/" + serviceName + "/Status"
	methodWatch  = "/" + serviceName + "/Watch"

	// watchBuffer is the per-watcher event buffer.
	watchBuffer = 64
)

// StatusFunc returns a JSON-marshalable description of the daemon.
type StatusFunc func() any

// Service implements the History service on top of a feed.Hub.
type Service struct {
	hub    *feed.Hub
	status StatusFunc
	seq    atomic.Uint64
}

// New returns a Service backed by h. status may be nil.
func New(h *feed.Hub, status StatusFunc) *Service {
	return &Service{hub: h, status: status}
}

// Register adds the service to srv.
func (s *Service) Register(srv *grpc.Server) {
	srv.RegisterService(&serviceDesc, s)
}

// List implements History.List. A zero limit returns everything held in memory.
func (s *Service) List(_ context.Context, req *wrapperspb.UInt32Value) (*structpb.ListValue, error) {
	limit := int(req.GetValue())
	if limit > history.DefaultLimit*100 {
		return nil, status.Errorf(codes.InvalidArgument, "limit %d too large", limit)
	}
	return entriesValue(s.hub.Snapshot(limit)), nil
}

// Status implements History.Status.
func (s *Service) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	var v any = map[string]any{}
	if s.status != nil {
		v = s.status()
	}
	st, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "status: %v", err)
	}
	return st, nil
}

// Watch implements History.Watch: the current history, then every capture.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	sub := feed.NewChannel(fmt.Sprintf("watch/%d", s.seq.Add(1)), watchBuffer)
	s.hub.Register(sub)
	defer s.hub.Unregister(sub)

	slog.Info("watch started", "subscriber", sub.ID())
	defer slog.Info("watch ended", "subscriber", sub.ID(), "dropped", sub.Dropped())

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case ev := <-sub.C():
			if err := stream.SendMsg(eventStruct(ev)); err != nil {
				return err
			}
		}
	}
}

// ── encoding ──────────────────────────────────────────────────────────────

func entryStruct(e history.Entry) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"content": structpb.NewStringValue(e.Content),
	}
	if e.ID != 0 {
		fields["id"] = structpb.NewNumberValue(float64(e.ID))
	}
	if !e.CreatedAt.IsZero() {
		fields["created_at"] = structpb.NewStringValue(e.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	return &structpb.Struct{Fields: fields}
}

func entriesValue(entries []history.Entry) *structpb.ListValue {
	lv := &structpb.ListValue{Values: make([]*structpb.Value, len(entries))}
	for i, e := range entries {
		lv.Values[i] = structpb.NewStructValue(entryStruct(e))
	}
	return lv
}

func eventStruct(ev pump.Event) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"kind": structpb.NewStringValue(ev.Kind.String()),
	}
	switch ev.Kind {
	case pump.HistoryLoaded:
		fields["entries"] = structpb.NewListValue(entriesValue(ev.History))
	case pump.EntryCaptured:
		fields["entry"] = structpb.NewStructValue(entryStruct(ev.Entry))
	}
	return &structpb.Struct{Fields: fields}
}

func entryFromStruct(st *structpb.Struct) history.Entry {
	f := st.GetFields()
	e := history.Entry{
		ID:      int64(f["id"].GetNumberValue()),
		Content: f["content"].GetStringValue(),
	}
	if ts := f["created_at"].GetStringValue(); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.CreatedAt = t
		}
	}
	return e
}

func entriesFromList(lv *structpb.ListValue) []history.Entry {
	out := make([]history.Entry, 0, len(lv.GetValues()))
	for _, v := range lv.GetValues() {
		out = append(out, entryFromStruct(v.GetStructValue()))
	}
	return out
}

func eventFromStruct(st *structpb.Struct) (pump.Event, error) {
	f := st.GetFields()
	switch kind := f["kind"].GetStringValue(); kind {
	case pump.HistoryLoaded.String():
		return pump.Loaded(entriesFromList(f["entries"].GetListValue())), nil
	case pump.EntryCaptured.String():
		return pump.Captured(entryFromStruct(f["entry"].GetStructValue())), nil
	default:
		return pump.Event{}, fmt.Errorf("unknown event kind %q", kind)
	}
}

// toStruct converts any JSON-marshalable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// ── service descriptor ────────────────────────────────────────────────────

type historyServer interface {
	List(context.Context, *wrapperspb.UInt32Value) (*structpb.ListValue, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*historyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: listHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "clipkeep/v1/history.proto",
}

func listHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(historyServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodList}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(historyServer).List(ctx, req.(*wrapperspb.UInt32Value))
	})
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(historyServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStatus}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(historyServer).Status(ctx, req.(*emptypb.Empty))
	})
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(historyServer).Watch(in, stream)
}
