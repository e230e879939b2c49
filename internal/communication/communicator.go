package communication

import (
	"context"

	"github.com/pagestore/pagestore/internal/protocol"
)

// Handler is the server side of one exchange. It receives the request page,
// returns the signed result and, when the operation carries a response
// payload, a reply page. A nil reply page means the reply carries only the
// result value.
type Handler func(ctx context.Context, op protocol.Opcode, page *protocol.Page) (int32, *protocol.Page)

// Exchanger performs one blocking request/reply cycle with the file server.
//
// The caller must have fully populated buf with the request record for op
// before calling Exchange. Exchange hands buf to the server, blocks until
// exactly one reply arrives, copies the reply page into dst when dst is
// non-nil (otherwise back into buf, overwriting the request), and returns
// the signed result carried by the reply. It never returns before the reply
// arrives, so at most one request per client context is ever outstanding.
//
// There are no retries and no cancellation of an issued exchange; ctx is
// consulted only while the connection is being established.
type Exchanger interface {
	Exchange(ctx context.Context, op protocol.Opcode, buf *protocol.Page, dst *protocol.Page) (int32, error)
}

// Listener is the server-side transport: it accepts exchanges and dispatches
// each one to the registered handler.
type Listener interface {
	Start(handler Handler) error
	Stop() error
	Address() string
}
