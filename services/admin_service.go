package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"log/slog"
	"strings"
)

// StatusReport is what an operator sees when asking for the relay status.
type StatusReport struct {
	Running bool
	Address string
	Users   []string
	Stats   observability.StatsSnapshot
	Process observability.ProcessStats
}

// AdminService exposes the operator actions of the relay, independently of the transport.
type AdminService struct {
	log          *slog.Logger
	relay        contract.IRelay
	journal      contract.IPresenceJournal
	stats        *observability.RelayStats
	bindAddress  string
	defaultPort  int
	journalLimit int
}

// NewAdminService builds the service. journal may be nil when journaling is disabled.
func NewAdminService(
	log *slog.Logger,
	relay contract.IRelay,
	journal contract.IPresenceJournal,
	stats *observability.RelayStats,
	bindAddress string,
	defaultPort int,
	journalLimit int,
) *AdminService {
	return &AdminService{
		log:          log,
		relay:        relay,
		journal:      journal,
		stats:        stats,
		bindAddress:  bindAddress,
		defaultPort:  defaultPort,
		journalLimit: journalLimit,
	}
}

func (s *AdminService) Status() StatusReport {
	report := StatusReport{
		Running: s.relay.IsRunning(),
		Users:   s.relay.ListNames(),
		Stats:   s.stats.Snapshot(),
	}
	if addr := s.relay.Addr(); addr != nil {
		report.Address = addr.String()
	}
	process, err := observability.CurrentProcess()
	if err != nil {
		s.log.Debug("Process stats unavailable", "error", err)
	}
	report.Process = process
	return report
}

func (s *AdminService) ListUsers() []string {
	return s.relay.ListNames()
}

// Kick removes name from the chat. It reports whether name was a member.
func (s *AdminService) Kick(ctx context.Context, name string) bool {
	kicked := s.relay.Kick(ctx, name)
	s.log.Info("Operator kick", "name", name, "kicked", kicked)
	return kicked
}

func (s *AdminService) Announce(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.ErrEmptyNotice
	}
	if !s.relay.IsRunning() {
		return errors.ErrNotRunning
	}
	s.relay.Announce(ctx, text)
	return nil
}

// Start binds the relay on port, or on the configured port when port is 0.
func (s *AdminService) Start(port int) error {
	if port == 0 {
		port = s.defaultPort
	}
	s.log.Info("Operator start", "port", port)
	return s.relay.Start(s.bindAddress, port)
}

func (s *AdminService) Stop() error {
	s.log.Info("Operator stop")
	return s.relay.Stop()
}

// Journal returns the latest presence notices, newest first.
// A limit of 0 or less falls back to the configured limit.
func (s *AdminService) Journal(limit int) ([]domain.PresenceEvent, error) {
	if s.journal == nil {
		return nil, errors.ErrJournalDisabled
	}
	if limit <= 0 {
		limit = s.journalLimit
	}
	return s.journal.Recent(limit)
}
