//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"net"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Sink is the outbound half of one client connection.
// Deliver must be safe for concurrent use; writes are serialized per sink.
type Sink interface {
	Deliver(ctx context.Context, msg domain.ChatMessage) error
	Close() error
}

// Observer sees every broadcast message without being a registry member.
// A failing observer is logged and never evicted.
type Observer interface {
	Observe(ctx context.Context, msg domain.ChatMessage) error
}

// Member is a registered name and its sink.
type Member struct {
	Name string
	Sink Sink
}

type IRegistry interface {
	Register(name string, sink Sink) bool
	Unregister(name string) bool
	Release(name string, sink Sink) bool
	IsTaken(name string) bool
	Kick(ctx context.Context, name string) bool
	ListNames() []string
	SinkFor(name string) (Sink, bool)
	Snapshot() []Member
}

type IDispatcher interface {
	Broadcast(ctx context.Context, msg domain.ChatMessage)
	BroadcastUserList(ctx context.Context)
	AnnounceArrival(ctx context.Context, name string)
	AnnounceDeparture(ctx context.Context, departures ...domain.Departure)
	Kick(ctx context.Context, name string) bool
}

// IRelay is the chat server as seen by the operator surface.
type IRelay interface {
	Start(bindAddress string, port int) error
	Stop() error
	IsRunning() bool
	Addr() net.Addr
	ListNames() []string
	Kick(ctx context.Context, name string) bool
	Announce(ctx context.Context, text string)
}

type IPresenceJournal interface {
	Recent(limit int) ([]domain.PresenceEvent, error)
}
