package runtime

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"chat-relay/observability"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestDispatcher(registry *Registry) (*Dispatcher, *observability.RelayStats) {
	stats := observability.NewRelayStats()
	return NewDispatcher(testLogger(), registry, 100*time.Millisecond, stats), stats
}

func TestDispatcher_Broadcast_IncludesSender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	dispatcher, _ := newTestDispatcher(registry)
	alice, bob := &recordingSink{}, &recordingSink{}
	registry.Register("alice", alice)
	registry.Register("bob", bob)

	msg := domain.NewMessage(domain.KindChat, "alice", "hello")
	dispatcher.Broadcast(context.Background(), msg)

	req.Equal([]domain.ChatMessage{msg}, alice.received())
	req.Equal([]domain.ChatMessage{msg}, bob.received())
}

func TestDispatcher_Broadcast_EvictsFailedSink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(testLogger())
	dispatcher, stats := newTestDispatcher(registry)

	// Given three members, bob's connection is broken
	alice, carol := &recordingSink{}, &recordingSink{}
	bob := mocks.NewMockSink(ctrl)
	registry.Register("alice", alice)
	registry.Register("bob", bob)
	registry.Register("carol", carol)

	bob.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(fmt.Errorf("broken pipe")).Times(1)
	bob.EXPECT().Close().Return(nil).Times(1)

	// When alice's message is broadcast
	msg := domain.NewMessage(domain.KindChat, "alice", "hi all")
	dispatcher.Broadcast(context.Background(), msg)

	// Then the healthy members got it, followed by bob's departure
	for _, sink := range []*recordingSink{alice, carol} {
		got := sink.received()
		req.Len(got, 3)
		req.Equal(msg, got[0])
		req.Equal(domain.KindUserList, got[1].Kind)
		req.Equal("alice,carol", got[1].Content)
		req.Equal(domain.KindSystem, got[2].Kind)
		req.Equal(domain.LeftText("bob"), got[2].Content)
	}
	req.Equal([]string{"alice", "carol"}, registry.ListNames())
	req.Equal(uint64(1), stats.Snapshot().Evictions)
}

func TestDispatcher_Broadcast_SlowSinkDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(testLogger())
	dispatcher, _ := newTestDispatcher(registry)

	alice := &recordingSink{}
	slow := mocks.NewMockSink(ctrl)
	registry.Register("slow", slow)
	registry.Register("alice", alice)

	// Given a sink that never completes before its deadline
	slow.EXPECT().
		Deliver(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.ChatMessage) error {
			<-ctx.Done()
			return ctx.Err()
		})
	slow.EXPECT().Close().Return(nil)

	start := time.Now()
	dispatcher.Broadcast(context.Background(), domain.NewMessage(domain.KindChat, "alice", "ping"))

	req.Less(time.Since(start), time.Second)
	req.Equal([]string{"alice"}, registry.ListNames())
	first := alice.received()[0]
	req.Equal("ping", first.Content)
}

func TestDispatcher_AnnounceArrival_SendsTotalUserList(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	dispatcher, _ := newTestDispatcher(registry)
	alice, bob := &recordingSink{}, &recordingSink{}
	registry.Register("alice", alice)
	registry.Register("bob", bob)

	dispatcher.AnnounceArrival(context.Background(), "bob")

	for _, sink := range []*recordingSink{alice, bob} {
		got := sink.received()
		req.Len(got, 2)
		req.Equal(domain.KindUserList, got[0].Kind)
		req.ElementsMatch([]string{"alice", "bob"}, domain.ParseUserList(got[0].Content))
		req.Equal(domain.KindSystem, got[1].Kind)
		req.Equal(domain.JoinedText("bob"), got[1].Content)
	}
}

func TestDispatcher_Kick_AnnouncesToOthers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	dispatcher, stats := newTestDispatcher(registry)
	alice, bob := &recordingSink{}, &recordingSink{}
	registry.Register("alice", alice)
	registry.Register("bob", bob)

	// When the operator kicks bob
	req.True(dispatcher.Kick(context.Background(), "bob"))

	// Then bob was told and closed
	notice, ok := bob.lastOfKind(domain.KindForceLogout)
	req.True(ok)
	req.Equal(domain.KickedText, notice.Content)
	req.True(bob.closed.Load())

	// And alice sees the refreshed list and a departure notice
	list, ok := alice.lastOfKind(domain.KindUserList)
	req.True(ok)
	req.Equal("alice", list.Content)
	system, ok := alice.lastOfKind(domain.KindSystem)
	req.True(ok)
	req.Equal(domain.KickedNoticeText("bob"), system.Content)
	req.Equal(uint64(1), stats.Snapshot().Kicks)

	// And kicking again is a no-op
	req.False(dispatcher.Kick(context.Background(), "bob"))
}

func TestDispatcher_AnnounceDeparture_EmptyRegistry(t *testing.T) {
	registry := NewRegistry(testLogger())
	dispatcher, _ := newTestDispatcher(registry)

	dispatcher.AnnounceDeparture(context.Background(), domain.LeftDeparture("alice"))
}

func TestDispatcher_Observers_SeeEveryBroadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(testLogger())
	observer := mocks.NewMockObserver(ctrl)
	dispatcher := NewDispatcher(testLogger(), registry, 100*time.Millisecond, observability.NewRelayStats(), observer)
	registry.Register("alice", &recordingSink{})

	var kinds []domain.Kind
	observer.EXPECT().
		Observe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg domain.ChatMessage) error {
			kinds = append(kinds, msg.Kind)
			return fmt.Errorf("journal unavailable")
		}).
		Times(2)

	dispatcher.AnnounceArrival(context.Background(), "alice")

	// Then a failing observer is neither evicted nor blocking
	req.Equal([]domain.Kind{domain.KindUserList, domain.KindSystem}, kinds)
	req.Equal([]string{"alice"}, registry.ListNames())
}
