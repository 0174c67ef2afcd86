package server

import (
	"chat-relay/contract"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
)

// Listener serves a freshly built gRPC server until its context is cancelled.
// A new server is built on every run so a supervisor can restart it.
type Listener struct {
	log     *slog.Logger
	address string
	build   func() *grpc.Server
}

var _ contract.Worker = (*Listener)(nil)

func NewListener(log *slog.Logger, address string, build func() *grpc.Server) *Listener {
	return &Listener{log: log, address: address, build: build}
}

func (l *Listener) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", l.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.address, err)
	}
	return l.Serve(ctx, listener)
}

// Serve runs on an already bound listener, which is closed on return.
func (l *Listener) Serve(ctx context.Context, listener net.Listener) error {
	s := l.build()

	errChan := make(chan error, 1)
	go func() {
		l.log.Info("Starting admin gRPC server", "address", listener.Addr().String(), "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			l.log.Debug("gRPC exposed services", "name", serviceName)
		}
		errChan <- s.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		l.log.Info("Stopping admin gRPC server")
		s.GracefulStop()
		return nil
	case err := <-errChan:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	}
}
