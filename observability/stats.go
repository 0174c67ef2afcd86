package observability

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsSnapshot is a point-in-time copy of the relay counters.
type StatsSnapshot struct {
	Uptime           time.Duration `json:"uptime"`
	Connections      uint64        `json:"connections"`
	Logins           uint64        `json:"logins"`
	RejectedLogins   uint64        `json:"rejected_logins"`
	Broadcasts       uint64        `json:"broadcasts"`
	Delivered        uint64        `json:"delivered"`
	FailedDeliveries uint64        `json:"failed_deliveries"`
	Evictions        uint64        `json:"evictions"`
	Kicks            uint64        `json:"kicks"`
}

// RelayStats holds lock-free counters shared by the server, the sessions and the dispatcher.
type RelayStats struct {
	startedAt        time.Time
	connections      atomic.Uint64
	logins           atomic.Uint64
	rejectedLogins   atomic.Uint64
	broadcasts       atomic.Uint64
	delivered        atomic.Uint64
	failedDeliveries atomic.Uint64
	evictions        atomic.Uint64
	kicks            atomic.Uint64
}

func NewRelayStats() *RelayStats {
	return &RelayStats{startedAt: time.Now()}
}

func (s *RelayStats) ConnectionAccepted() { s.connections.Add(1) }
func (s *RelayStats) LoginAccepted()      { s.logins.Add(1) }
func (s *RelayStats) LoginRejected()      { s.rejectedLogins.Add(1) }
func (s *RelayStats) Broadcast()          { s.broadcasts.Add(1) }
func (s *RelayStats) Evicted()            { s.evictions.Add(1) }
func (s *RelayStats) Kicked()             { s.kicks.Add(1) }

// Deliveries records the outcome of one fan-out pass.
func (s *RelayStats) Deliveries(ok, failed int) {
	s.delivered.Add(uint64(ok))
	s.failedDeliveries.Add(uint64(failed))
}

func (s *RelayStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Uptime:           time.Since(s.startedAt).Round(time.Second),
		Connections:      s.connections.Load(),
		Logins:           s.logins.Load(),
		RejectedLogins:   s.rejectedLogins.Load(),
		Broadcasts:       s.broadcasts.Load(),
		Delivered:        s.delivered.Load(),
		FailedDeliveries: s.failedDeliveries.Load(),
		Evictions:        s.evictions.Load(),
		Kicks:            s.kicks.Load(),
	}
}

// ProcessStats describes the resource usage of the relay process.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

// CurrentProcess samples RSS and CPU usage of this process.
func CurrentProcess() (ProcessStats, error) {
	pid := int32(os.Getpid())
	p, err := process.NewProcess(pid)
	if err != nil {
		return ProcessStats{}, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{PID: pid, RSSBytes: mem.RSS, CPUPercent: cpu}, nil
}
