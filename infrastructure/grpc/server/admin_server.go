package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
	"context"
	goerrors "errors"
	"log/slog"
	"math"
	"time"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type AdminServer struct {
	log     *slog.Logger
	service *services.AdminService
}

var _ RelayAdminServer = (*AdminServer)(nil)

func NewAdminServer(log *slog.Logger, service *services.AdminService) *AdminServer {
	return &AdminServer{log: log, service: service}
}

// NewGRPCServer assembles the admin gRPC server: request logging, optional bearer-token
// authentication on the admin methods, the admin service and the health service.
func NewGRPCServer(log *slog.Logger, service *services.AdminService, healthServer *health.Server, secret []byte) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc3.UnaryLoggingInterceptor(log),
			auth.AuthInterceptor(secret, "/"+ServiceName+"/"),
		))
	RegisterRelayAdminServer(s, NewAdminServer(log, service))
	healthpb.RegisterHealthServer(s, healthServer)
	return s
}

func (s *AdminServer) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	report := s.service.Status()
	snapshot := report.Stats
	result, err := structpb.NewStruct(map[string]any{
		"running": report.Running,
		"address": report.Address,
		"users":   toAnyList(report.Users),
		"stats": map[string]any{
			"uptime":            snapshot.Uptime.String(),
			"connections":       snapshot.Connections,
			"logins":            snapshot.Logins,
			"rejected_logins":   snapshot.RejectedLogins,
			"broadcasts":        snapshot.Broadcasts,
			"delivered":         snapshot.Delivered,
			"failed_deliveries": snapshot.FailedDeliveries,
			"evictions":         snapshot.Evictions,
			"kicks":             snapshot.Kicks,
		},
		"process": map[string]any{
			"pid":         report.Process.PID,
			"rss_bytes":   report.Process.RSSBytes,
			"cpu_percent": report.Process.CPUPercent,
		},
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "status encoding failed: %v", err)
	}
	return result, nil
}

func (s *AdminServer) ListUsers(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	list, err := structpb.NewList(toAnyList(s.service.ListUsers()))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "user list encoding failed: %v", err)
	}
	return list, nil
}

func (s *AdminServer) Kick(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	return wrapperspb.Bool(s.service.Kick(ctx, req.GetValue())), nil
}

func (s *AdminServer) Announce(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.service.Announce(ctx, req.GetValue()); err != nil {
		return nil, s.toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *AdminServer) Start(_ context.Context, req *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	if req.GetValue() > math.MaxUint16 {
		return nil, status.Errorf(codes.InvalidArgument, "port %d is out of range", req.GetValue())
	}
	if err := s.service.Start(int(req.GetValue())); err != nil {
		return nil, s.toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *AdminServer) Stop(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.service.Stop(); err != nil {
		return nil, s.toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *AdminServer) Journal(_ context.Context, req *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	events, err := s.service.Journal(int(req.GetValue()))
	if err != nil {
		return nil, s.toStatus(err)
	}
	list, err := structpb.NewList(lo.Map(events, func(e domain.PresenceEvent, _ int) any {
		return toPresenceMap(e)
	}))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "journal encoding failed: %v", err)
	}
	return list, nil
}

func toPresenceMap(e domain.PresenceEvent) map[string]any {
	return map[string]any{
		"id":      e.ID.String(),
		"at":      e.At.Format(time.RFC3339Nano),
		"kind":    e.Message.Kind.String(),
		"sender":  e.Message.Sender,
		"content": e.Message.Content,
	}
}

func toAnyList(values []string) []any {
	return lo.Map(values, func(v string, _ int) any { return v })
}

func (s *AdminServer) toStatus(err error) error {
	s.log.Debug("Admin call failed", "error", err)
	switch {
	case goerrors.Is(err, errors.ErrEmptyNotice):
		return status.Error(codes.InvalidArgument, err.Error())
	case goerrors.Is(err, errors.ErrAlreadyRunning),
		goerrors.Is(err, errors.ErrNotRunning),
		goerrors.Is(err, errors.ErrStopping),
		goerrors.Is(err, errors.ErrJournalDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case goerrors.Is(err, errors.ErrShutdownTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
