// Package server accepts TCP connections and runs one session per connection.
package server

import (
	"chat-relay/contract"
	"chat-relay/domain"
	relayerrors "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/session"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultPort            = 8888
	DefaultShutdownTimeout = 5 * time.Second
	DefaultWriteTimeout    = 2 * time.Second

	maxAcceptDelay = time.Second
)

// Server owns the listening socket, the accept loop and the set of live sessions.
type Server struct {
	log        *slog.Logger
	registry   contract.IRegistry
	dispatcher contract.IDispatcher
	names      session.NameChecker
	stats      *observability.RelayStats

	shutdownTimeout time.Duration
	sessionConfig   session.Config
	onStateChange   func(running bool)

	mu       sync.Mutex
	running  bool
	stopping bool
	listener net.Listener
	cancel   context.CancelFunc
	sessions map[string]*session.Session
	wg       sync.WaitGroup // sessions
	loopDone chan struct{}
}

var _ contract.IRelay = (*Server)(nil)

type Option func(*Server)

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.sessionConfig.WriteTimeout = d }
}

func WithMaxMessageSize(size int) Option {
	return func(s *Server) { s.sessionConfig.MaxMessageSize = size }
}

// WithStateHook is called after every start and stop.
func WithStateHook(hook func(running bool)) Option {
	return func(s *Server) { s.onStateChange = hook }
}

func New(
	log *slog.Logger,
	registry contract.IRegistry,
	dispatcher contract.IDispatcher,
	names session.NameChecker,
	stats *observability.RelayStats,
	opts ...Option,
) *Server {
	s := &Server{
		log:             log,
		registry:        registry,
		dispatcher:      dispatcher,
		names:           names,
		stats:           stats,
		shutdownTimeout: DefaultShutdownTimeout,
		sessionConfig:   session.Config{WriteTimeout: DefaultWriteTimeout},
		sessions:        make(map[string]*session.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds bindAddress:port and runs the accept loop in the background.
// An empty bindAddress listens on all interfaces; port 0 picks a free port.
func (s *Server) Start(bindAddress string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return relayerrors.ErrAlreadyRunning
	}
	if s.stopping {
		return relayerrors.ErrStopping
	}

	address := net.JoinHostPort(bindAddress, strconv.Itoa(port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	s.running = true
	s.loopDone = make(chan struct{})

	go s.acceptLoop(ctx, listener, s.loopDone)

	s.log.Info("Chat relay listening", "address", listener.Addr().String())
	s.notify(true)
	return nil
}

// Stop tells every member the server is going away, closes the listener and waits for
// sessions to finish. Sessions still alive after the shutdown timeout are closed forcibly.
// Calling Stop on a stopped or stopping server does nothing.
// Start fails with ErrStopping until Stop has returned.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.stopping = true
	listener, cancel, loopDone := s.listener, s.cancel, s.loopDone
	s.mu.Unlock()

	s.log.Info("Stopping chat relay")
	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("Closing listener failed", "error", err)
	}
	<-loopDone

	s.dispatcher.Broadcast(context.Background(), domain.NewSystemMessage(domain.KindForceLogout, domain.ShutdownText))
	cancel()

	var err error
	if !s.waitSessions(s.shutdownTimeout) {
		err = relayerrors.ErrShutdownTimeout
		for _, sess := range s.liveSessions() {
			s.log.Warn("Closing session forcibly", "session_id", sess.ID(), "name", sess.Name())
			sess.Abort()
		}
		// Every connection is closed, so departures fail fast
		s.wg.Wait()
	}

	s.notify(false)
	s.mu.Lock()
	s.stopping = false
	s.mu.Unlock()
	s.log.Info("Chat relay stopped")
	return err
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address while running, nil otherwise.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.listener.Addr()
}

// Run starts the server and stops it when ctx is cancelled, so it can be supervised.
func (s *Server) Run(ctx context.Context, bindAddress string, port int) error {
	if err := s.Start(bindAddress, port); err != nil {
		return err
	}
	<-ctx.Done()
	if err := s.Stop(); err != nil {
		s.log.Warn("Chat relay stopped with error", "error", err)
	}
	return nil
}

func (s *Server) Kick(ctx context.Context, name string) bool {
	return s.dispatcher.Kick(ctx, name)
}

func (s *Server) ListNames() []string {
	return s.registry.ListNames()
}

// Announce broadcasts an operator notice to every member.
func (s *Server) Announce(ctx context.Context, text string) {
	s.dispatcher.Broadcast(ctx, domain.NewSystemMessage(domain.KindSystem, text))
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener, done chan<- struct{}) {
	defer close(done)

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.log.Warn("Accept failed, retrying", "error", err, "delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}
		delay = 0
		s.spawn(ctx, conn)
	}
}

func (s *Server) spawn(ctx context.Context, conn net.Conn) {
	s.stats.ConnectionAccepted()
	sess := session.New(s.log, conn, s.registry, s.dispatcher, s.names, s.stats, s.sessionConfig)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.untrack(sess)
		if err := sess.Run(ctx); err != nil {
			s.log.Warn("Session ended with error", "session_id", sess.ID(), "error", err)
		}
	}()
}

func (s *Server) untrack(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.ID())
}

func (s *Server) liveSessions() []*session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	return live
}

func (s *Server) waitSessions(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *Server) notify(running bool) {
	if s.onStateChange != nil {
		s.onStateChange(running)
	}
}
