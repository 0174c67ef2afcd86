package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAdminService(t *testing.T) (*AdminService, *mocks.MockIRelay, *mocks.MockIPresenceJournal) {
	ctrl := gomock.NewController(t)
	relay := mocks.NewMockIRelay(ctrl)
	journal := mocks.NewMockIPresenceJournal(ctrl)
	svc := NewAdminService(logs.GetLoggerFromLevel(slog.LevelDebug), relay, journal, observability.NewRelayStats(), "127.0.0.1", 8888, 50)
	return svc, relay, journal
}

func TestAdminService_Status(t *testing.T) {
	t.Run("should report address and users when running", func(t *testing.T) {
		req := require.New(t)
		svc, relay, _ := newAdminService(t)
		addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8888}

		relay.EXPECT().IsRunning().Return(true)
		relay.EXPECT().ListNames().Return([]string{"alice", "bob"})
		relay.EXPECT().Addr().Return(addr)

		report := svc.Status()

		req.True(report.Running)
		req.Equal("127.0.0.1:8888", report.Address)
		req.Equal([]string{"alice", "bob"}, report.Users)
	})

	t.Run("should leave the address empty when stopped", func(t *testing.T) {
		req := require.New(t)
		svc, relay, _ := newAdminService(t)

		relay.EXPECT().IsRunning().Return(false)
		relay.EXPECT().ListNames().Return([]string{})
		relay.EXPECT().Addr().Return(nil)

		report := svc.Status()

		req.False(report.Running)
		req.Empty(report.Address)
		req.Empty(report.Users)
	})
}

func TestAdminService_Announce(t *testing.T) {
	t.Run("should broadcast trimmed text", func(t *testing.T) {
		req := require.New(t)
		svc, relay, _ := newAdminService(t)
		ctx := context.Background()

		relay.EXPECT().IsRunning().Return(true)
		relay.EXPECT().Announce(ctx, "maintenance at noon").Times(1)

		req.NoError(svc.Announce(ctx, "  maintenance at noon "))
	})

	t.Run("should reject blank text without touching the relay", func(t *testing.T) {
		req := require.New(t)
		svc, relay, _ := newAdminService(t)

		relay.EXPECT().Announce(gomock.Any(), gomock.Any()).Times(0)

		req.ErrorIs(svc.Announce(context.Background(), "   "), errors.ErrEmptyNotice)
	})

	t.Run("should fail when the relay is stopped", func(t *testing.T) {
		req := require.New(t)
		svc, relay, _ := newAdminService(t)

		relay.EXPECT().IsRunning().Return(false)
		relay.EXPECT().Announce(gomock.Any(), gomock.Any()).Times(0)

		req.ErrorIs(svc.Announce(context.Background(), "hello"), errors.ErrNotRunning)
	})
}

func TestAdminService_Start(t *testing.T) {
	t.Run("should fall back to the configured port", func(t *testing.T) {
		req := require.New(t)
		svc, relay, _ := newAdminService(t)

		relay.EXPECT().Start("127.0.0.1", 8888).Return(nil)

		req.NoError(svc.Start(0))
	})

	t.Run("should propagate already running", func(t *testing.T) {
		req := require.New(t)
		svc, relay, _ := newAdminService(t)

		relay.EXPECT().Start("127.0.0.1", 9000).Return(errors.ErrAlreadyRunning)

		req.ErrorIs(svc.Start(9000), errors.ErrAlreadyRunning)
	})
}

func TestAdminService_KickAndStop(t *testing.T) {
	req := require.New(t)
	svc, relay, _ := newAdminService(t)
	ctx := context.Background()

	relay.EXPECT().Kick(ctx, "mallory").Return(true)
	relay.EXPECT().Kick(ctx, "ghost").Return(false)
	relay.EXPECT().Stop().Return(errors.ErrShutdownTimeout)

	req.True(svc.Kick(ctx, "mallory"))
	req.False(svc.Kick(ctx, "ghost"))
	req.ErrorIs(svc.Stop(), errors.ErrShutdownTimeout)
}

func TestAdminService_Journal(t *testing.T) {
	t.Run("should use the configured limit when none is given", func(t *testing.T) {
		req := require.New(t)
		svc, _, journal := newAdminService(t)
		events := []domain.PresenceEvent{{
			ID:      uuid.New(),
			At:      time.Now().UTC(),
			Message: domain.NewSystemMessage(domain.KindSystem, domain.JoinedText("alice")),
		}}

		journal.EXPECT().Recent(50).Return(events, nil)

		got, err := svc.Journal(0)

		req.NoError(err)
		req.Equal(events, got)
	})

	t.Run("should fail when journaling is disabled", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		svc := NewAdminService(logs.GetLoggerFromLevel(slog.LevelDebug), mocks.NewMockIRelay(ctrl), nil, observability.NewRelayStats(), "", 8888, 50)

		_, err := svc.Journal(10)

		req.ErrorIs(err, errors.ErrJournalDisabled)
	})
}
