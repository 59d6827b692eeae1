package rpc

import (
	"net/http"
	"strconv"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// NewGateway returns an HTTP/1.1 JSON mux over s:
//
//	GET /v1/history?limit=N
//	GET /v1/status
func NewGateway(s *Service) (*gwruntime.ServeMux, error) {
	marshaler := &gwruntime.JSONPb{
		MarshalOptions: protojson.MarshalOptions{Multiline: true, Indent: "  "},
	}
	mux := gwruntime.NewServeMux(
		gwruntime.WithMarshalerOption(gwruntime.MIMEWildcard, marshaler),
	)

	write := func(w http.ResponseWriter, r *http.Request, msg proto.Message, err error) {
		if err != nil {
			gwruntime.HTTPError(r.Context(), mux, marshaler, w, r, err)
			return
		}
		buf, err := marshaler.Marshal(msg)
		if err != nil {
			gwruntime.HTTPError(r.Context(), mux, marshaler, w, r, err)
			return
		}
		w.Header().Set("Content-Type", marshaler.ContentType(msg))
		_, _ = w.Write(buf)
	}

	if err := mux.HandlePath(http.MethodGet, "/v1/history", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var limit uint64
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.ParseUint(q, 10, 32)
			if err != nil {
				write(w, r, nil, status.Errorf(codes.InvalidArgument, "limit: %v", err))
				return
			}
			limit = n
		}
		resp, err := s.List(r.Context(), wrapperspb.UInt32(uint32(limit)))
		write(w, r, resp, err)
	}); err != nil {
		return nil, err
	}

	if err := mux.HandlePath(http.MethodGet, "/v1/status", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		resp, err := s.Status(r.Context(), &emptypb.Empty{})
		write(w, r, resp, err)
	}); err != nil {
		return nil, err
	}
	return mux, nil
}
