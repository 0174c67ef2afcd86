package repositories

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newInMemoryRepository(t *testing.T) *PresenceRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPresenceRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func TestPresence_Recent_NewestFirst(t *testing.T) {
	req := require.New(t)
	repository := newInMemoryRepository(t)
	at := time.Now().UTC()

	// Given three notices stored out of order
	events := []domain.PresenceEvent{
		{ID: uuid.New(), At: at.Add(time.Minute), Message: domain.NewSystemMessage(domain.KindSystem, domain.LeftText("bob"))},
		{ID: uuid.New(), At: at, Message: domain.NewSystemMessage(domain.KindSystem, domain.JoinedText("bob"))},
		{ID: uuid.New(), At: at.Add(2 * time.Minute), Message: domain.NewSystemMessage(domain.KindForceLogout, domain.ShutdownText)},
	}
	for _, e := range events {
		req.NoError(repository.Store(e))
	}

	// When fetching the journal
	got, err := repository.Recent(0)

	// Then the newest comes first
	req.NoError(err)
	req.Equal([]domain.PresenceEvent{events[2], events[0], events[1]}, got)
}

func TestPresence_Recent_Limit(t *testing.T) {
	req := require.New(t)
	repository := newInMemoryRepository(t)
	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		req.NoError(repository.Store(domain.PresenceEvent{
			ID:      uuid.New(),
			At:      at.Add(time.Duration(i) * time.Second),
			Message: domain.NewSystemMessage(domain.KindSystem, domain.JoinedText("user")),
		}))
	}

	got, err := repository.Recent(2)

	req.NoError(err)
	req.Len(got, 2)
	req.True(got[0].At.After(got[1].At))
}

func TestPresence_Observe_SkipsChatAndLists(t *testing.T) {
	req := require.New(t)
	repository := newInMemoryRepository(t)
	ctx := context.Background()

	req.NoError(repository.Observe(ctx, domain.NewMessage(domain.KindChat, "alice", "secret plans")))
	req.NoError(repository.Observe(ctx, domain.NewUserList([]string{"alice"})))
	req.NoError(repository.Observe(ctx, domain.NewSystemMessage(domain.KindSystem, domain.JoinedText("alice"))))

	got, err := repository.Recent(0)
	req.NoError(err)
	req.Len(got, 1)
	req.Equal(domain.JoinedText("alice"), got[0].Message.Content)
}

func TestPresence_Recent_Empty(t *testing.T) {
	req := require.New(t)
	repository := newInMemoryRepository(t)

	got, err := repository.Recent(10)

	req.NoError(err)
	req.Empty(got)
}
