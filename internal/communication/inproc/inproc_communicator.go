package inproccomm

import (
	"context"

	"github.com/pagestore/pagestore/internal/communication"
	"github.com/pagestore/pagestore/internal/protocol"
)

// Loopback is a same-process rendezvous with a handler. It gives tests and
// the single-binary demo mode the exact exchange semantics of the socket
// transport: the handler sees the request page, and the reply page lands in
// the destination page when one is supplied, otherwise back in the request
// buffer.
type Loopback struct {
	handler communication.Handler
}

func NewLoopback(handler communication.Handler) *Loopback {
	return &Loopback{handler: handler}
}

func (l *Loopback) Exchange(ctx context.Context, op protocol.Opcode, buf *protocol.Page, dst *protocol.Page) (int32, error) {
	if l.handler == nil {
		return 0, communication.ErrHandlerNotSet
	}

	ret, reply := l.handler(ctx, op, buf)

	target := buf
	if dst != nil {
		target = dst
	}
	if reply != nil {
		copy(target[:], reply[:])
	}

	return ret, nil
}

var _ communication.Exchanger = (*Loopback)(nil)
