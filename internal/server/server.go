package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

// Server runs the HTTP API and, when configured, the gRPC health listener.
type Server struct {
	httpAddr string
	grpcAddr string
	http     *http.Server
	grpc     *grpc.Server
}

// New returns a Server for handler on httpAddr. grpcServer is served on grpcAddr; pass an empty
// address or nil server to disable it.
func New(httpAddr string, handler http.Handler, grpcAddr string, grpcServer *grpc.Server) *Server {
	s := &Server{
		httpAddr: httpAddr,
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	if grpcAddr != "" && grpcServer != nil {
		s.grpcAddr = grpcAddr
		s.grpc = grpcServer
	}
	return s
}

// Run listens on the configured addresses and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	var grpcLis net.Listener
	if s.grpc != nil {
		grpcLis, err = net.Listen("tcp", s.grpcAddr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve is Run on listeners the caller opened. grpcLis is ignored when gRPC is disabled.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", httpLis.Addr().String())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	if s.grpc != nil && grpcLis != nil {
		g.Go(func() error {
			slog.Info("grpc health server listening", "addr", grpcLis.Addr().String())
			if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve grpc: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if s.grpc != nil {
			s.grpc.GracefulStop()
		}
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
