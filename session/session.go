// Package session drives one client connection from login to cleanup.
package session

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/protocol"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// NameChecker validates a proposed display name before registration.
type NameChecker interface {
	Validate(name string) error
}

type Config struct {
	WriteTimeout   time.Duration
	MaxMessageSize int
}

// Session owns one accepted connection.
// The read loop is the only reader; outbound frames go through the ConnSink, shared with the dispatcher.
type Session struct {
	id         string
	log        *slog.Logger
	reader     *protocol.Reader
	sink       *ConnSink
	registry   contract.IRegistry
	dispatcher contract.IDispatcher
	names      NameChecker
	stats      *observability.RelayStats

	mu    sync.Mutex
	state State
	name  string

	stopping    atomic.Bool
	cleanupOnce sync.Once
}

func New(
	log *slog.Logger,
	conn net.Conn,
	registry contract.IRegistry,
	dispatcher contract.IDispatcher,
	names NameChecker,
	stats *observability.RelayStats,
	cfg Config,
) *Session {
	id := uuid.NewString()
	return &Session{
		id:         id,
		log:        log.With("session_id", id, "remote", conn.RemoteAddr().String()),
		reader:     protocol.NewReader(conn, cfg.MaxMessageSize),
		sink:       NewConnSink(conn, cfg.WriteTimeout),
		registry:   registry,
		dispatcher: dispatcher,
		names:      names,
		stats:      stats,
		state:      Unauthenticated,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Name returns the registered display name, empty before login.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Run reads frames until the peer logs out, the connection fails or ctx is cancelled.
// Cleanup has always completed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	// Broadcasts must outlive the cancellation that ends the read loop
	bctx := context.WithoutCancel(ctx)
	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()
	defer s.cleanup()

	s.log.Debug("Session started")
	for {
		msg, err := s.reader.ReadMessage()
		if err != nil {
			return s.readError(err)
		}

		done, err := s.handle(bctx, msg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Stop closes the connection and runs cleanup. It is safe to call more than once.
func (s *Session) Stop() {
	s.Abort()
	s.cleanup()
}

// Abort closes the connection and returns at once; Run completes the cleanup.
func (s *Session) Abort() {
	s.stopping.Store(true)
	if err := s.sink.Close(); err != nil {
		s.log.Debug("Closing connection failed", "error", err)
	}
}

func (s *Session) handle(ctx context.Context, msg domain.ChatMessage) (bool, error) {
	switch s.State() {
	case Unauthenticated:
		if msg.Kind != domain.KindLogin {
			s.log.Debug("Ignoring message before login", "kind", msg.Kind)
			return false, nil
		}
		return false, s.login(ctx, msg)

	case Authenticated:
		switch msg.Kind {
		case domain.KindChat:
			s.dispatcher.Broadcast(ctx, msg)
		case domain.KindLogout:
			if err := s.sink.Deliver(ctx, domain.NewSystemMessage(domain.KindLogout, domain.LoggedOutText)); err != nil {
				s.log.Debug("Logout acknowledgement not delivered", "error", err)
			}
			return true, nil
		default:
			s.log.Debug("Ignoring message", "kind", msg.Kind)
		}
		return false, nil

	default:
		return true, nil
	}
}

func (s *Session) login(ctx context.Context, msg domain.ChatMessage) error {
	name := msg.LoginName()
	if err := s.names.Validate(name); err != nil {
		s.stats.LoginRejected()
		s.log.Info("Login rejected", "name", name, "error", err)
		return s.sink.Deliver(ctx, domain.NewSystemMessage(domain.KindLoginFail, err.Error()))
	}

	registered, err := s.sink.DeliverIf(ctx, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != Unauthenticated || !s.registry.Register(name, s.sink) {
			return false
		}
		s.name = name
		s.state = Authenticated
		return true
	}, domain.NewSystemMessage(domain.KindLoginSuccess, domain.LoginSucceededText))

	if !registered {
		if s.sink.Closed() {
			return nil
		}
		s.stats.LoginRejected()
		s.log.Info("Login rejected, name taken", "name", name)
		return s.sink.Deliver(ctx, domain.NewSystemMessage(domain.KindLoginFail, domain.NameTakenText(name)))
	}
	if err != nil {
		return fmt.Errorf("confirming login of %q: %w", name, err)
	}

	s.stats.LoginAccepted()
	s.log.Info("Member joined", "name", name)
	s.dispatcher.AnnounceArrival(ctx, name)
	return nil
}

// cleanup runs exactly once: release the name, tell the others, close the connection.
// Nothing is announced when an eviction or a kick already removed the name.
func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		s.mu.Lock()
		name := s.name
		s.state = Closed
		s.mu.Unlock()

		if name != "" && s.registry.Release(name, s.sink) {
			s.log.Info("Member left", "name", name)
			s.dispatcher.AnnounceDeparture(context.Background(), domain.LeftDeparture(name))
		}
		if err := s.sink.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Debug("Closing connection failed", "error", err)
		}
		s.log.Debug("Session closed")
	})
}

// readError maps the end of the read loop to nil for every ordinary disconnection.
func (s *Session) readError(err error) error {
	switch {
	case s.stopping.Load(), s.sink.Closed():
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, syscall.ECONNRESET):
		s.log.Debug("Peer disconnected", "error", err)
		return nil
	default:
		return fmt.Errorf("reading from %s: %w", s.id, err)
	}
}
