package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher fans messages out to every registered sink.
// A sink that fails to accept a message within sinkTimeout is evicted, closed and
// announced as departed, so one broken connection never blocks the others.
type Dispatcher struct {
	log         *slog.Logger
	registry    contract.IRegistry
	observers   []contract.Observer // permanent, never evicted
	sinkTimeout time.Duration
	stats       *observability.RelayStats
}

var _ contract.IDispatcher = (*Dispatcher)(nil)

func NewDispatcher(
	log *slog.Logger,
	registry contract.IRegistry,
	sinkTimeout time.Duration,
	stats *observability.RelayStats,
	observers ...contract.Observer,
) *Dispatcher {
	return &Dispatcher{
		log:         log,
		registry:    registry,
		observers:   observers,
		sinkTimeout: sinkTimeout,
		stats:       stats,
	}
}

// Broadcast delivers msg to every member registered when the pass starts, sender included.
func (d *Dispatcher) Broadcast(ctx context.Context, msg domain.ChatMessage) {
	d.settle(ctx, d.fanout(ctx, msg))
}

// BroadcastUserList sends the total list of connected names to everyone.
func (d *Dispatcher) BroadcastUserList(ctx context.Context) {
	d.Broadcast(ctx, domain.NewUserList(d.registry.ListNames()))
}

// AnnounceArrival refreshes everyone's user list, then notifies that name joined.
func (d *Dispatcher) AnnounceArrival(ctx context.Context, name string) {
	departed := d.fanout(ctx, domain.NewUserList(d.registry.ListNames()))
	departed = append(departed, d.fanout(ctx, domain.NewSystemMessage(domain.KindSystem, domain.JoinedText(name)))...)
	d.settle(ctx, departed)
}

// AnnounceDeparture tells the remaining members who left.
// The caller must already have removed the departed names from the registry.
func (d *Dispatcher) AnnounceDeparture(ctx context.Context, departures ...domain.Departure) {
	d.settle(ctx, departures)
}

// Kick forces name out and announces it like a departure.
func (d *Dispatcher) Kick(ctx context.Context, name string) bool {
	if !d.registry.Kick(ctx, name) {
		return false
	}
	d.stats.Kicked()
	d.log.Info("Member kicked", "name", name)
	d.settle(ctx, []domain.Departure{domain.KickedDeparture(name)})
	return true
}

// settle announces departures until a round evicts nobody.
// One user list per round covers every departure of that round.
func (d *Dispatcher) settle(ctx context.Context, pending []domain.Departure) {
	for len(pending) > 0 {
		next := d.fanout(ctx, domain.NewUserList(d.registry.ListNames()))
		for _, dep := range pending {
			next = append(next, d.fanout(ctx, domain.NewSystemMessage(domain.KindSystem, dep.Notice))...)
		}
		pending = next
	}
}

// fanout runs one delivery pass over a registry snapshot and evicts the members that failed.
// It returns the departures caused by those evictions.
func (d *Dispatcher) fanout(ctx context.Context, msg domain.ChatMessage) []domain.Departure {
	d.stats.Broadcast()
	d.observe(ctx, msg)

	members := d.registry.Snapshot()
	failed := make([]bool, len(members))

	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
			defer cancel()
			if err := m.Sink.Deliver(sinkCtx, msg); err != nil {
				d.log.Debug("Delivery failed", "name", m.Name, "kind", msg.Kind, "error", err)
				failed[i] = true
			}
		}()
	}
	wg.Wait()

	var departed []domain.Departure
	nbFailed := 0
	for i, m := range members {
		if !failed[i] {
			continue
		}
		nbFailed++
		// Cleanup or a kick may have removed the member in the meantime
		if !d.registry.Release(m.Name, m.Sink) {
			continue
		}
		if err := m.Sink.Close(); err != nil {
			d.log.Debug("Closing evicted sink failed", "name", m.Name, "error", err)
		}
		d.stats.Evicted()
		d.log.Info("Evicted unreachable member", "name", m.Name)
		departed = append(departed, domain.LeftDeparture(m.Name))
	}
	d.stats.Deliveries(len(members)-nbFailed, nbFailed)
	return departed
}

func (d *Dispatcher) observe(ctx context.Context, msg domain.ChatMessage) {
	for _, o := range d.observers {
		if err := o.Observe(ctx, msg); err != nil {
			d.log.Warn("Observer failed", "observer", fmt.Sprintf("%T", o), "kind", msg.Kind, "error", err)
		}
	}
}
