// Package client is a small Go client for the chat relay.
package client

import (
	"chat-relay/domain"
	relayerrors "chat-relay/errors"
	"chat-relay/protocol"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultLoginTimeout bounds the wait for LoginSuccess or LoginFail.
const DefaultLoginTimeout = 5 * time.Second

type Client struct {
	conn         net.Conn
	reader       *protocol.Reader
	loginTimeout time.Duration

	mu     sync.Mutex // guards writer and name
	writer *protocol.Writer
	name   string
}

type Option func(*Client)

func WithLoginTimeout(d time.Duration) Option {
	return func(c *Client) { c.loginTimeout = d }
}

// Dial connects to a relay. Login must succeed before chat messages are relayed.
func Dial(ctx context.Context, address string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", address, err)
	}
	c := &Client{
		conn:         conn,
		reader:       protocol.NewReader(conn, 0),
		writer:       protocol.NewWriter(conn),
		loginTimeout: DefaultLoginTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login proposes name and waits for the verdict. Messages arriving before it are discarded.
// A refusal returns an error wrapping errors.ErrLoginRejected with the server's reason;
// the connection stays usable for another attempt.
func (c *Client) Login(ctx context.Context, name string) error {
	if err := c.write(domain.NewMessage(domain.KindLogin, name, name)); err != nil {
		return err
	}

	deadline := time.Now().Add(c.loginTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return relayerrors.ErrLoginTimeout
			}
			return err
		}
		switch msg.Kind {
		case domain.KindLoginSuccess:
			c.mu.Lock()
			c.name = name
			c.mu.Unlock()
			return nil
		case domain.KindLoginFail:
			return fmt.Errorf("%w: %s", relayerrors.ErrLoginRejected, msg.Content)
		}
	}
}

// Send posts chat text under the logged-in name.
func (c *Client) Send(text string) error {
	name := c.Name()
	if name == "" {
		return relayerrors.ErrNotLoggedIn
	}
	return c.write(domain.NewMessage(domain.KindChat, name, text))
}

// Receive blocks for the next message, until ctx's deadline if it has one.
func (c *Client) Receive(ctx context.Context) (domain.ChatMessage, error) {
	if d, ok := ctx.Deadline(); ok {
		if err := c.conn.SetReadDeadline(d); err != nil {
			return domain.ChatMessage{}, err
		}
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}
	return c.reader.ReadMessage()
}

// Logout asks the server to end the session. The server acknowledges and closes the connection.
func (c *Client) Logout() error {
	return c.write(domain.NewMessage(domain.KindLogout, c.Name(), ""))
}

func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) write(msg domain.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer.WriteMessage(msg)
}
