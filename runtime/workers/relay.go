package workers

import (
	"chat-relay/contract"
	"context"
)

// RelayServer is the part of the chat server a supervisor needs.
type RelayServer interface {
	Run(ctx context.Context, bindAddress string, port int) error
}

// RelayWorker keeps the chat listener bound to its configured address.
type RelayWorker struct {
	server      RelayServer
	bindAddress string
	port        int
}

var _ contract.Worker = (*RelayWorker)(nil)

func NewRelayWorker(server RelayServer, bindAddress string, port int) *RelayWorker {
	return &RelayWorker{server: server, bindAddress: bindAddress, port: port}
}

func (w *RelayWorker) Run(ctx context.Context) error {
	return w.server.Run(ctx, w.bindAddress, w.port)
}
