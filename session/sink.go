package session

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/protocol"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ConnSink is the outbound half of a client connection.
// Writes are serialized so a direct reply and a broadcast never interleave on the socket,
// and each write is bounded by a deadline so a stalled peer cannot hold the lock forever.
type ConnSink struct {
	mu           sync.Mutex
	conn         net.Conn
	writer       *protocol.Writer
	writeTimeout time.Duration
	closed       atomic.Bool
	closeOnce    sync.Once
	closeErr     error
}

var _ contract.Sink = (*ConnSink)(nil)

func NewConnSink(conn net.Conn, writeTimeout time.Duration) *ConnSink {
	return &ConnSink{
		conn:         conn,
		writer:       protocol.NewWriter(conn),
		writeTimeout: writeTimeout,
	}
}

// Deliver writes one frame, honouring the earlier of ctx's deadline and the write timeout.
func (s *ConnSink) Deliver(ctx context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, msg)
}

// DeliverIf evaluates cond and, when it holds, writes msg before any other delivery can
// reach the connection. It is used to make a registration and its confirmation a single step.
func (s *ConnSink) DeliverIf(ctx context.Context, cond func() bool, msg domain.ChatMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !cond() {
		return false, nil
	}
	return true, s.write(ctx, msg)
}

func (s *ConnSink) write(ctx context.Context, msg domain.ChatMessage) error {
	if s.closed.Load() {
		return errors.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.writer.WriteMessage(msg)
}

// Close closes the underlying connection once. Later deliveries fail with errors.ErrSinkClosed.
func (s *ConnSink) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *ConnSink) Closed() bool {
	return s.closed.Load()
}
