package runtime

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

type recordingSink struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	fail     bool
	closed   atomic.Bool
}

func (s *recordingSink) Deliver(_ context.Context, msg domain.ChatMessage) error {
	if s.fail || s.closed.Load() {
		return fmt.Errorf("broken pipe")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *recordingSink) received() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.messages...)
}

func (s *recordingSink) lastOfKind(kind domain.Kind) (domain.ChatMessage, bool) {
	msgs := s.received()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == kind {
			return msgs[i], true
		}
	}
	return domain.ChatMessage{}, false
}

func TestRegistry_Register_UniqueNames(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	alice := &recordingSink{}

	// Given alice is registered
	req.True(registry.Register("alice", alice))

	// When another connection claims the same name
	ok := registry.Register("alice", &recordingSink{})

	// Then it is refused and the first binding is kept
	req.False(ok)
	sink, found := registry.SinkFor("alice")
	req.True(found)
	req.Same(alice, sink)
	req.True(registry.IsTaken("alice"))
	req.False(registry.IsTaken("bob"))
}

func TestRegistry_Register_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if registry.Register("bob", &recordingSink{}) {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	req.Equal(int32(1), winners.Load())
	req.Equal([]string{"bob"}, registry.ListNames())
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	registry.Register("alice", &recordingSink{})

	req.True(registry.Unregister("alice"))
	req.False(registry.Unregister("alice"))
	req.False(registry.Unregister("nobody"))
	req.Empty(registry.ListNames())
}

func TestRegistry_Release_OnlyMatchingSink(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())
	first := &recordingSink{}
	second := &recordingSink{}

	// Given alice left and a new connection took the name
	registry.Register("alice", first)
	req.True(registry.Release("alice", first))
	registry.Register("alice", second)

	// When the old connection cleans up late
	released := registry.Release("alice", first)

	// Then the new binding survives
	req.False(released)
	sink, ok := registry.SinkFor("alice")
	req.True(ok)
	req.Same(second, sink)
}

func TestRegistry_ListNames_RegistrationOrder(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())

	for _, name := range []string{"carol", "alice", "bob"} {
		registry.Register(name, &recordingSink{})
	}
	registry.Unregister("alice")
	registry.Register("alice", &recordingSink{})

	req.Equal([]string{"carol", "bob", "alice"}, registry.ListNames())
	req.Equal(3, registry.Len())
}

func TestRegistry_Kick_NotifiesAndCloses(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(testLogger())
	sink := mocks.NewMockSink(ctrl)

	// Given bob is connected
	registry.Register("bob", sink)

	// Then bob receives a forced logout and his sink is closed
	gomock.InOrder(
		sink.EXPECT().
			Deliver(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msg domain.ChatMessage) error {
				req.Equal(domain.KindForceLogout, msg.Kind)
				req.Equal(domain.SystemSender, msg.Sender)
				return nil
			}),
		sink.EXPECT().Close().Return(nil),
	)

	// When the operator kicks him
	req.True(registry.Kick(context.Background(), "bob"))

	req.False(registry.IsTaken("bob"))
}

func TestRegistry_Kick_UnknownName(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger())

	req.False(registry.Kick(context.Background(), "ghost"))
}

func TestRegistry_Kick_FailedNoticeStillRemoves(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(testLogger())
	sink := mocks.NewMockSink(ctrl)
	registry.Register("bob", sink)

	sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(fmt.Errorf("connection reset"))
	sink.EXPECT().Close().Return(nil)

	req.True(registry.Kick(context.Background(), "bob"))
	req.Empty(registry.ListNames())
}
