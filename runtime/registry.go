package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type registration struct {
	sink contract.Sink
	seq  uint64
}

// Registry is the single authority on which names are connected.
// Every operation is atomic with respect to the others; no lock is held while a sink is written to.
type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sessions map[string]registration // map name -> Sink
	seq      uint64
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		sessions: make(map[string]registration),
	}
}

// Register binds name to sink if the name is free.
// Concurrent registrations of the same name have exactly one winner.
func (r *Registry) Register(name string, sink contract.Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.sessions[name]; taken {
		return false
	}
	r.seq++
	r.sessions[name] = registration{sink: sink, seq: r.seq}
	return true
}

// Unregister removes name whatever sink it is bound to.
// It returns false when the name was not registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[name]; !ok {
		return false
	}
	delete(r.sessions, name)
	return true
}

// Release removes name only while it is still bound to sink.
// Exactly one of several concurrent callers (cleanup, eviction, kick) observes true.
func (r *Registry) Release(name string, sink contract.Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.sessions[name]
	if !ok || reg.sink != sink {
		return false
	}
	delete(r.sessions, name)
	return true
}

func (r *Registry) IsTaken(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[name]
	return ok
}

func (r *Registry) SinkFor(name string) (contract.Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.sessions[name]
	return reg.sink, ok
}

// Kick removes name, then tells its sink it was forced out and closes it.
// The broadcast side effects belong to the dispatcher.
func (r *Registry) Kick(ctx context.Context, name string) bool {
	r.mu.Lock()
	reg, ok := r.sessions[name]
	if ok {
		delete(r.sessions, name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	if err := reg.sink.Deliver(ctx, domain.NewSystemMessage(domain.KindForceLogout, domain.KickedText)); err != nil {
		r.log.Debug("Kick notice not delivered", "name", name, "error", err)
	}
	if err := reg.sink.Close(); err != nil {
		r.log.Debug("Closing kicked sink failed", "name", name, "error", err)
	}
	return true
}

// ListNames returns the connected names in registration order.
func (r *Registry) ListNames() []string {
	return lo.Map(r.Snapshot(), func(m contract.Member, _ int) string {
		return m.Name
	})
}

// Snapshot copies the current members in registration order.
func (r *Registry) Snapshot() []contract.Member {
	r.mu.RLock()
	entries := lo.Entries(r.sessions)
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b lo.Entry[string, registration]) int {
		return cmp.Compare(a.Value.seq, b.Value.seq)
	})
	return lo.Map(entries, func(e lo.Entry[string, registration], _ int) contract.Member {
		return contract.Member{Name: e.Key, Sink: e.Value.sink}
	})
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
