package socketcomm

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/pagestore/pagestore/internal/communication"
	"github.com/pagestore/pagestore/internal/locator"
	"github.com/pagestore/pagestore/internal/log_service"
	"github.com/pagestore/pagestore/internal/protocol"
)

// Wire frame: 8-byte header followed by exactly one page.
//
//	[0:4]  opcode (echoed back in the reply)
//	[4:8]  signed result (zero on requests)
//	[8:]   page
const (
	frameHeaderLen = 8
	frameLen       = frameHeaderLen + protocol.PageSize
)

func writeFrame(w io.Writer, op protocol.Opcode, value int32, page *protocol.Page) error {
	var frame [frameLen]byte
	binary.LittleEndian.PutUint32(frame[0:], uint32(op))
	binary.LittleEndian.PutUint32(frame[4:], uint32(value))
	copy(frame[frameHeaderLen:], page[:])
	_, err := w.Write(frame[:])
	return err
}

func readFrame(r io.Reader, page *protocol.Page) (protocol.Opcode, int32, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, err
	}
	if _, err := io.ReadFull(r, page[:]); err != nil {
		return 0, 0, communication.ErrShortFrame
	}
	op := protocol.Opcode(binary.LittleEndian.Uint32(header[0:]))
	value := int32(binary.LittleEndian.Uint32(header[4:]))
	return op, value, nil
}

// SocketExchanger is the client side of the socket transport. It resolves
// the file server once through the locator, keeps a single connection to it,
// and performs one frame round trip per Exchange.
type SocketExchanger struct {
	loc locator.Locator
	ls  log_service.LogService

	mu   sync.Mutex
	conn net.Conn
}

func NewSocketExchanger(loc locator.Locator, ls log_service.LogService) *SocketExchanger {
	return &SocketExchanger{loc: loc, ls: ls}
}

func (c *SocketExchanger) Exchange(ctx context.Context, op protocol.Opcode, buf *protocol.Page, dst *protocol.Page) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connect(ctx)
	if err != nil {
		return 0, err
	}

	if err := writeFrame(conn, op, 0, buf); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send exchange frame",
			Metadata: map[string]any{"op": op.String(), "error": err.Error()},
		})
		c.reset()
		return 0, communication.ErrExchangeFailed
	}

	// The reply page overwrites the request buffer in place unless the
	// caller asked for it elsewhere.
	target := buf
	if dst != nil {
		target = dst
	}
	echo, ret, err := readFrame(conn, target)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to receive exchange frame",
			Metadata: map[string]any{"op": op.String(), "error": err.Error()},
		})
		c.reset()
		return 0, communication.ErrExchangeFailed
	}
	if echo != op {
		c.reset()
		return 0, communication.ErrOpcodeMismatch
	}

	return ret, nil
}

func (c *SocketExchanger) connect(ctx context.Context) (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	addr, err := c.loc.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to connect to file server",
			Metadata: map[string]any{"address": addr, "error": err.Error()},
		})
		return nil, communication.ErrConnectionFailed
	}

	c.conn = conn
	return conn, nil
}

func (c *SocketExchanger) reset() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *SocketExchanger) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	return nil
}

var _ communication.Exchanger = (*SocketExchanger)(nil)

// SocketListener is the server side: it accepts connections and dispatches
// each frame to the registered handler.
type SocketListener struct {
	listenAddress string
	ls            log_service.LogService

	handler communication.Handler
	lis     net.Listener

	stopMutex sync.Mutex
	stopped   bool
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
}

func NewSocketListener(listenAddress string, ls log_service.LogService) *SocketListener {
	return &SocketListener{
		listenAddress: listenAddress,
		ls:            ls,
		conns:         make(map[net.Conn]struct{}),
	}
}

func (s *SocketListener) Address() string {
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.listenAddress
}

func (s *SocketListener) Start(handler communication.Handler) error {
	if handler == nil {
		return communication.ErrHandlerNotSet
	}
	s.handler = handler

	lis, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": s.listenAddress, "error": err.Error()},
		})
		return communication.ErrServerStartFailed
	}
	s.lis = lis

	s.ls.Info(log_service.LogEvent{
		Message:  "Socket listener started",
		Metadata: map[string]any{"address": s.Address()},
	})

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *SocketListener) Stop() error {
	s.stopMutex.Lock()
	if s.stopped {
		s.stopMutex.Unlock()
		return nil
	}
	s.stopped = true
	for conn := range s.conns {
		conn.Close()
	}
	s.stopMutex.Unlock()

	if s.lis != nil {
		s.lis.Close()
	}
	s.wg.Wait()

	s.ls.Info(log_service.LogEvent{
		Message:  "Socket listener stopped",
		Metadata: map[string]any{"address": s.listenAddress},
	})
	return nil
}

func (s *SocketListener) isStopped() bool {
	s.stopMutex.Lock()
	defer s.stopMutex.Unlock()
	return s.stopped
}

func (s *SocketListener) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if !s.isStopped() {
				s.ls.Error(log_service.LogEvent{
					Message:  "Accept failed",
					Metadata: map[string]any{"error": err.Error()},
				})
			}
			return
		}

		s.stopMutex.Lock()
		if s.stopped {
			s.stopMutex.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.stopMutex.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *SocketListener) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.stopMutex.Lock()
		delete(s.conns, conn)
		s.stopMutex.Unlock()
	}()

	ctx := context.Background()
	var page protocol.Page
	var empty protocol.Page

	for {
		op, _, err := readFrame(conn, &page)
		if err != nil {
			if err != io.EOF && !s.isStopped() {
				s.ls.Debug(log_service.LogEvent{
					Message:  "Connection closed",
					Metadata: map[string]any{"remote": conn.RemoteAddr().String(), "error": err.Error()},
				})
			}
			return
		}

		ret, reply := s.handler(ctx, op, &page)
		if reply == nil {
			reply = &empty
		}

		if err := writeFrame(conn, op, ret, reply); err != nil {
			s.ls.Error(log_service.LogEvent{
				Message:  "Failed to write reply frame",
				Metadata: map[string]any{"op": op.String(), "error": err.Error()},
			})
			return
		}
	}
}

var _ communication.Listener = (*SocketListener)(nil)
