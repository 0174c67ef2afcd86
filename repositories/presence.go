package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/protocol"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const presencePrefix = "presence:"

// PresenceRepository journals the server notices seen by the dispatcher.
// Chat text is never stored.
type PresenceRepository struct {
	db  *badger.DB
	log *slog.Logger
}

var (
	_ contract.Observer         = (*PresenceRepository)(nil)
	_ contract.IPresenceJournal = (*PresenceRepository)(nil)
)

func NewPresenceRepository(db *badger.DB, log *slog.Logger) *PresenceRepository {
	return &PresenceRepository{db: db, log: log}
}

// OpenBadger opens the journal database at path.
func OpenBadger(path string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
}

// Observe stores System and ForceLogout notices and ignores everything else.
func (r *PresenceRepository) Observe(_ context.Context, msg domain.ChatMessage) error {
	if msg.Kind != domain.KindSystem && msg.Kind != domain.KindForceLogout {
		return nil
	}
	return r.Store(domain.PresenceEvent{ID: uuid.New(), At: time.Now().UTC(), Message: msg})
}

// Store persists an event under "presence:{timestamp_padded}:{uuid}".
// The 19-digit padding keeps keys in chronological order.
func (r *PresenceRepository) Store(event domain.PresenceEvent) error {
	key := fmt.Sprintf("%s%019d:%s", presencePrefix, event.At.UnixNano(), event.ID)
	value := protocol.Marshal(event.Message)
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Recent returns at most limit events, newest first.
func (r *PresenceRepository) Recent(limit int) ([]domain.PresenceEvent, error) {
	var events []domain.PresenceEvent
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(presencePrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration starts from the largest possible key of the prefix
		it.Seek(append([]byte(presencePrefix), []byte("9999999999999999999")...))
		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(events) == limit {
				break
			}
			item := it.Item()
			event, err := parsePresenceKey(string(item.Key()))
			if err != nil {
				return err
			}
			err = item.Value(func(value []byte) error {
				event.Message, err = protocol.Unmarshal(value)
				return err
			})
			if err != nil {
				return err
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func parsePresenceKey(key string) (domain.PresenceEvent, error) {
	parts := strings.SplitN(strings.TrimPrefix(key, presencePrefix), ":", 2)
	if len(parts) != 2 {
		return domain.PresenceEvent{}, fmt.Errorf("malformed presence key %q", key)
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return domain.PresenceEvent{}, fmt.Errorf("malformed presence key %q: %w", key, err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return domain.PresenceEvent{}, fmt.Errorf("malformed presence key %q: %w", key, err)
	}
	return domain.PresenceEvent{ID: id, At: time.Unix(0, nanos).UTC()}, nil
}
