package session

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type peer struct {
	conn   net.Conn
	writer *protocol.Writer
	in     chan domain.ChatMessage
}

func newPeer(conn net.Conn) *peer {
	p := &peer{conn: conn, writer: protocol.NewWriter(conn), in: make(chan domain.ChatMessage, 64)}
	go func() {
		defer close(p.in)
		r := protocol.NewReader(conn, 0)
		for {
			msg, err := r.ReadMessage()
			if err != nil {
				return
			}
			p.in <- msg
		}
	}()
	return p
}

func (p *peer) send(t *testing.T, msg domain.ChatMessage) {
	t.Helper()
	require.NoError(t, p.writer.WriteMessage(msg))
}

func (p *peer) next(t *testing.T) domain.ChatMessage {
	t.Helper()
	select {
	case msg, ok := <-p.in:
		require.True(t, ok, "connection closed")
		return msg
	case <-time.After(waitFor):
		require.FailNow(t, "no message received")
	}
	return domain.ChatMessage{}
}

// expect skips messages until one of the given kind arrives
func (p *peer) expect(t *testing.T, kind domain.Kind) domain.ChatMessage {
	t.Helper()
	for {
		if msg := p.next(t); msg.Kind == kind {
			return msg
		}
	}
}

func (p *peer) expectClosed(t *testing.T) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case _, ok := <-p.in:
			if !ok {
				return
			}
		case <-deadline:
			require.FailNow(t, "connection still open")
		}
	}
}

type fixture struct {
	log        *slog.Logger
	registry   *runtime.Registry
	dispatcher *runtime.Dispatcher
	stats      *observability.RelayStats
	ctx        context.Context
	cancel     context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry(log)
	stats := observability.NewRelayStats()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &fixture{
		log:        log,
		registry:   registry,
		dispatcher: runtime.NewDispatcher(log, registry, time.Second, stats),
		stats:      stats,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (f *fixture) connect(t *testing.T) (*Session, *peer, <-chan error) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close() })

	sess := New(f.log, serverConn, f.registry, f.dispatcher, auth.NewNameValidator(nil), f.stats,
		Config{WriteTimeout: time.Second})
	done := make(chan error, 1)
	go func() { done <- sess.Run(f.ctx) }()
	return sess, newPeer(clientConn), done
}

func (f *fixture) login(t *testing.T, name string) (*Session, *peer, <-chan error) {
	sess, p, done := f.connect(t)
	p.send(t, domain.NewMessage(domain.KindLogin, "", name))
	require.Equal(t, domain.KindLoginSuccess, p.next(t).Kind)
	p.expect(t, domain.KindSystem)
	return sess, p, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		require.FailNow(t, "session did not stop")
	}
	return nil
}

func TestSession_Login_Success(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	sess, alice, _ := f.connect(t)

	// When alice logs in on an empty server
	alice.send(t, domain.NewMessage(domain.KindLogin, "", "alice"))

	// Then she is confirmed first, then sees the user list and her own arrival
	success := alice.next(t)
	req.Equal(domain.KindLoginSuccess, success.Kind)
	req.Equal(domain.SystemSender, success.Sender)

	list := alice.next(t)
	req.Equal(domain.KindUserList, list.Kind)
	req.Equal("alice", list.Content)

	joined := alice.next(t)
	req.Equal(domain.KindSystem, joined.Kind)
	req.Equal(domain.JoinedText("alice"), joined.Content)

	req.Equal(Authenticated, sess.State())
	req.Equal("alice", sess.Name())
	req.True(f.registry.IsTaken("alice"))
}

func TestSession_Login_NameTaken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.login(t, "alice")
	sess, other, _ := f.connect(t)

	// When a second connection asks for the same name
	other.send(t, domain.NewMessage(domain.KindLogin, "", "alice"))

	// Then it is refused and may try again
	fail := other.next(t)
	req.Equal(domain.KindLoginFail, fail.Kind)
	req.Equal(domain.NameTakenText("alice"), fail.Content)
	req.Equal(Unauthenticated, sess.State())

	other.send(t, domain.NewMessage(domain.KindLogin, "", "alice2"))
	req.Equal(domain.KindLoginSuccess, other.next(t).Kind)
	req.ElementsMatch([]string{"alice", "alice2"}, f.registry.ListNames())
}

func TestSession_Login_InvalidName(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	sess, p, _ := f.connect(t)

	p.send(t, domain.NewMessage(domain.KindLogin, "", "   "))

	fail := p.next(t)
	req.Equal(domain.KindLoginFail, fail.Kind)
	req.Contains(fail.Content, "required")
	req.Equal(Unauthenticated, sess.State())
	req.Empty(f.registry.ListNames())
}

func TestSession_Login_NameInSenderField(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, p, _ := f.connect(t)

	p.send(t, domain.NewMessage(domain.KindLogin, "bob", ""))

	req.Equal(domain.KindLoginSuccess, p.next(t).Kind)
	req.True(f.registry.IsTaken("bob"))
}

func TestSession_IgnoresMessagesBeforeLogin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, p, _ := f.connect(t)

	// Given chat and logout sent before any login
	p.send(t, domain.NewMessage(domain.KindChat, "mallory", "spam"))
	p.send(t, domain.NewMessage(domain.KindLogout, "mallory", ""))

	// When the client logs in
	p.send(t, domain.NewMessage(domain.KindLogin, "", "carol"))

	// Then the first thing it hears is the login confirmation
	req.Equal(domain.KindLoginSuccess, p.next(t).Kind)
}

func TestSession_Chat_RelayedVerbatimWithSelfEcho(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, alice, _ := f.login(t, "alice")
	_, bob, _ := f.login(t, "bob")
	alice.expect(t, domain.KindSystem) // bob joined

	msg := domain.ChatMessage{Kind: domain.KindChat, Sender: "alice", Content: "hi bob", Timestamp: "01:02:03"}
	alice.send(t, msg)

	req.Equal(msg, alice.expect(t, domain.KindChat))
	req.Equal(msg, bob.expect(t, domain.KindChat))
}

func TestSession_Logout(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, alice, aliceDone := f.login(t, "alice")
	_, bob, _ := f.login(t, "bob")

	// When alice logs out
	alice.send(t, domain.NewMessage(domain.KindLogout, "alice", ""))

	// Then she is acknowledged and disconnected
	ack := alice.expect(t, domain.KindLogout)
	req.Equal(domain.LoggedOutText, ack.Content)
	alice.expectClosed(t)
	req.NoError(waitDone(t, aliceDone))

	// And bob sees the refreshed list and her departure
	list := bob.expect(t, domain.KindUserList)
	for list.Content != "bob" {
		list = bob.expect(t, domain.KindUserList)
	}
	left := bob.expect(t, domain.KindSystem)
	req.Equal(domain.LeftText("alice"), left.Content)
	req.Equal([]string{"bob"}, f.registry.ListNames())
}

func TestSession_PeerDisconnect_CleansUp(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	sess, alice, done := f.login(t, "alice")

	req.NoError(alice.conn.Close())

	req.NoError(waitDone(t, done))
	req.Equal(Closed, sess.State())
	req.False(f.registry.IsTaken("alice"))
}

func TestSession_ContextCancel_StopsSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, alice, done := f.login(t, "alice")

	f.cancel()

	req.NoError(waitDone(t, done))
	alice.expectClosed(t)
	req.Empty(f.registry.ListNames())
}

func TestSession_Stop_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	sess, _, done := f.login(t, "alice")

	sess.Stop()
	sess.Stop()

	req.NoError(waitDone(t, done))
	req.Equal(Closed, sess.State())
	req.Empty(f.registry.ListNames())
}

func TestSession_Abort_RunFinishesCleanup(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	sess, alice, done := f.login(t, "alice")

	sess.Abort()

	alice.expectClosed(t)
	req.NoError(waitDone(t, done))
	req.Equal(Closed, sess.State())
	req.False(f.registry.IsTaken("alice"))
}

func TestSession_Kicked_NoDoubleDeparture(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, alice, aliceDone := f.login(t, "alice")
	_, bob, _ := f.login(t, "bob")

	// When the operator kicks alice
	req.True(f.dispatcher.Kick(context.Background(), "alice"))

	// Then alice is told and disconnected
	notice := alice.expect(t, domain.KindForceLogout)
	req.Equal(domain.KickedText, notice.Content)
	req.NoError(waitDone(t, aliceDone))

	// And bob hears exactly one departure notice for her
	var departures int
	deadline := time.After(300 * time.Millisecond)
	for done := false; !done; {
		select {
		case msg := <-bob.in:
			if msg.Kind == domain.KindSystem && msg.Content != domain.JoinedText("bob") {
				departures++
				req.Equal(domain.KickedNoticeText("alice"), msg.Content)
			}
		case <-deadline:
			done = true
		}
	}
	req.Equal(1, departures)
}
