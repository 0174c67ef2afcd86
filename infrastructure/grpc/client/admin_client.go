package client

import (
	"chat-relay/infrastructure/grpc/server"
	"context"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// JournalEntry is one presence notice as returned by the admin service.
type JournalEntry struct {
	ID      string
	At      string
	Kind    string
	Sender  string
	Content string
}

// AdminClient calls the relay admin service. A non-empty token is sent as a bearer token.
type AdminClient struct {
	cc     grpc.ClientConnInterface
	health healthpb.HealthClient
	token  string
}

func NewAdminClient(cc grpc.ClientConnInterface, token string) *AdminClient {
	return &AdminClient{cc: cc, health: healthpb.NewHealthClient(cc), token: token}
}

func (c *AdminClient) Status(ctx context.Context) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, server.StatusFullMethodName, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *AdminClient) ListUsers(ctx context.Context) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.invoke(ctx, server.ListUsersFullMethodName, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return lo.Map(out.GetValues(), func(v *structpb.Value, _ int) string {
		return v.GetStringValue()
	}), nil
}

func (c *AdminClient) Kick(ctx context.Context, name string) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, server.KickFullMethodName, wrapperspb.String(name), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *AdminClient) Announce(ctx context.Context, text string) error {
	return c.invoke(ctx, server.AnnounceFullMethodName, wrapperspb.String(text), new(emptypb.Empty))
}

// Start asks the relay to listen on port; 0 keeps the configured port.
func (c *AdminClient) Start(ctx context.Context, port uint32) error {
	return c.invoke(ctx, server.StartFullMethodName, wrapperspb.UInt32(port), new(emptypb.Empty))
}

func (c *AdminClient) Stop(ctx context.Context) error {
	return c.invoke(ctx, server.StopFullMethodName, &emptypb.Empty{}, new(emptypb.Empty))
}

func (c *AdminClient) Journal(ctx context.Context, limit int32) ([]JournalEntry, error) {
	out := new(structpb.ListValue)
	if err := c.invoke(ctx, server.JournalFullMethodName, wrapperspb.Int32(limit), out); err != nil {
		return nil, err
	}
	return lo.Map(out.GetValues(), func(v *structpb.Value, _ int) JournalEntry {
		fields := v.GetStructValue().GetFields()
		return JournalEntry{
			ID:      fields["id"].GetStringValue(),
			At:      fields["at"].GetStringValue(),
			Kind:    fields["kind"].GetStringValue(),
			Sender:  fields["sender"].GetStringValue(),
			Content: fields["content"].GetStringValue(),
		}
	}), nil
}

// Health reports whether the chat relay is currently serving.
func (c *AdminClient) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func (c *AdminClient) invoke(ctx context.Context, method string, in, out any) error {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return c.cc.Invoke(ctx, method, in, out)
}
