package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Serve answers gRPC and HTTP/1.1 JSON on ln until ctx is cancelled. ln is
// closed on return.
func Serve(ctx context.Context, ln net.Listener, s *Service) error {
	gw, err := NewGateway(s)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.HTTP1Fast())

	gs := grpc.NewServer()
	s.Register(gs)
	hs := &http.Server{Handler: gw, ReadHeaderTimeout: 5 * time.Second}

	slog.Info("ipc listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gs.Serve(grpcL); err != nil && gctx.Err() == nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := hs.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && gctx.Err() == nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) && gctx.Err() == nil {
			return fmt.Errorf("cmux: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		gs.Stop()
		_ = hs.Close()
		return nil
	})
	err = g.Wait()
	slog.Info("ipc stopped")
	return err
}
