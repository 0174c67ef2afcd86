package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// ReporterWorker logs the relay counters and the process footprint at a fixed interval.
type ReporterWorker struct {
	log      *slog.Logger
	stats    *observability.RelayStats
	members  func() int
	interval time.Duration
}

var _ contract.Worker = (*ReporterWorker)(nil)

func NewReporterWorker(log *slog.Logger, stats *observability.RelayStats, members func() int, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, stats: stats, members: members, interval: interval}
}

// Run reports until ctx is cancelled, then reports one last time.
func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	snap := w.stats.Snapshot()
	attrs := []any{
		"uptime", snap.Uptime.String(),
		"members", w.members(),
		"connections", snap.Connections,
		"logins", snap.Logins,
		"rejected_logins", snap.RejectedLogins,
		"broadcasts", snap.Broadcasts,
		"delivered", snap.Delivered,
		"failed_deliveries", snap.FailedDeliveries,
		"evictions", snap.Evictions,
		"kicks", snap.Kicks,
	}
	if proc, err := observability.CurrentProcess(); err == nil {
		attrs = append(attrs, "rss_mb", proc.RSSBytes/1024/1024, "cpu_percent", proc.CPUPercent)
	} else {
		w.log.Debug("Failed to collect process stats", "error", err)
	}
	w.log.Info("Relay stats", attrs...)
}
