// Package file_client implements the client side of the file protocol: a
// driver that performs open/read/write/stat/truncate/flush/sync by
// exchanging single-page messages with the file server.
package file_client

import (
	"context"
	"fmt"

	"github.com/pagestore/pagestore/internal/communication"
	"github.com/pagestore/pagestore/internal/descriptor"
	"github.com/pagestore/pagestore/internal/protocol"
)

// Client is one client context. It owns exactly one page buffer, reused
// sequentially for every request and response, so it must not be used from
// more than one goroutine at a time: the required discipline is at most one
// in-flight operation per Client, enforced by serial call sequencing rather
// than a lock.
//
// The Client performs no logging; observability belongs to the transports
// and the server.
type Client struct {
	buf *protocol.Page
	ex  communication.Exchanger
	fds *descriptor.Table
}

func NewClient(ex communication.Exchanger) *Client {
	return &Client{
		buf: new(protocol.Page),
		ex:  ex,
		fds: descriptor.NewTable(),
	}
}

// Open opens path with the given mode and returns the descriptor index for
// the new handle. Paths at or beyond the length limit are rejected locally
// before any resource is consumed or any message sent. On any failure after
// allocation the descriptor slot is released, so no handle leaks.
func (c *Client) Open(ctx context.Context, path string, mode protocol.OpenMode) (int, error) {
	if len(path) >= protocol.MaxPathLen {
		return 0, protocol.ErrBadPath
	}

	h, idx, err := c.fds.Alloc()
	if err != nil {
		return 0, err
	}

	req := protocol.OpenRequest{Path: path, Mode: mode}
	if err := req.Encode(c.buf); err != nil {
		c.fds.Release(idx)
		return 0, err
	}

	// The server writes the new handle's metadata into a destination page
	// rather than the shared buffer, so the request record stays intact
	// until the exchange completes.
	var meta protocol.Page
	ret, err := c.ex.Exchange(ctx, protocol.OpOpen, c.buf, &meta)
	if err != nil {
		c.fds.Release(idx)
		return 0, err
	}
	if ret < 0 {
		c.fds.Release(idx)
		return 0, protocol.ErrnoToError(ret)
	}

	resp := protocol.DecodeOpenResponse(&meta)
	h.Dev = descriptor.DevFile
	h.FileID = resp.FileID
	h.Mode = resp.Mode
	h.Offset = 0
	return idx, nil
}

// Read reads up to len(p) bytes at the handle's offset. The server may
// return fewer bytes than requested; 0 means end of file, not an error.
// Read does not move the offset; that is the descriptor layer's job.
func (c *Client) Read(ctx context.Context, h *descriptor.Handle, p []byte) (int, error) {
	n := len(p)
	if n > protocol.PageSize {
		n = protocol.PageSize
	}

	req := protocol.ReadRequest{FileID: h.FileID, Offset: h.Offset, Count: uint32(n)}
	req.Encode(c.buf)

	ret, err := c.ex.Exchange(ctx, protocol.OpRead, c.buf, nil)
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, protocol.ErrnoToError(ret)
	}
	if int(ret) > n || ret > protocol.PageSize {
		panic(fmt.Sprintf("file_client: server returned %d bytes for a %d byte read", ret, n))
	}

	copy(p[:ret], protocol.ReadPayload(c.buf)[:ret])
	return int(ret), nil
}

// Write writes up to len(p) bytes at the handle's offset and returns the
// count the server reports as written. The attempt is clamped to the inline
// payload cap, so a single call issues exactly one exchange and may return a
// short count; looping to cover all of p is the caller's responsibility.
func (c *Client) Write(ctx context.Context, h *descriptor.Handle, p []byte) (int, error) {
	n := len(p)
	if n > protocol.MaxWritePayload {
		n = protocol.MaxWritePayload
	}

	req := protocol.WriteRequest{FileID: h.FileID, Offset: h.Offset, Data: p[:n]}
	if err := req.Encode(c.buf); err != nil {
		return 0, err
	}

	ret, err := c.ex.Exchange(ctx, protocol.OpWrite, c.buf, nil)
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, protocol.ErrnoToError(ret)
	}
	if int(ret) > n || ret > protocol.PageSize {
		panic(fmt.Sprintf("file_client: server reported %d bytes written of %d sent", ret, n))
	}

	return int(ret), nil
}

// Stat returns the file's name, size and directory flag.
func (c *Client) Stat(ctx context.Context, h *descriptor.Handle) (protocol.FileInfo, error) {
	req := protocol.StatRequest{FileID: h.FileID}
	req.Encode(c.buf)

	ret, err := c.ex.Exchange(ctx, protocol.OpStat, c.buf, nil)
	if err != nil {
		return protocol.FileInfo{}, err
	}
	if ret < 0 {
		return protocol.FileInfo{}, protocol.ErrnoToError(ret)
	}

	return protocol.DecodeStatResponse(c.buf).Info, nil
}

// Truncate shrinks or grows the file to size bytes.
func (c *Client) Truncate(ctx context.Context, h *descriptor.Handle, size int64) error {
	req := protocol.SetSizeRequest{FileID: h.FileID, Size: size}
	req.Encode(c.buf)

	ret, err := c.ex.Exchange(ctx, protocol.OpSetSize, c.buf, nil)
	if err != nil {
		return err
	}
	return protocol.ErrnoToError(ret)
}

// Flush tells the server this client instance of the file id is done. It is
// the terminal step of closing a handle; the file id is invalid afterwards.
func (c *Client) Flush(ctx context.Context, h *descriptor.Handle) error {
	req := protocol.FlushRequest{FileID: h.FileID}
	req.Encode(c.buf)

	ret, err := c.ex.Exchange(ctx, protocol.OpFlush, c.buf, nil)
	if err != nil {
		return err
	}
	return protocol.ErrnoToError(ret)
}

// Sync asks the server to flush all dirty state to durable storage. No file
// id, no payload.
func (c *Client) Sync(ctx context.Context) error {
	c.buf.Reset()

	ret, err := c.ex.Exchange(ctx, protocol.OpSync, c.buf, nil)
	if err != nil {
		return err
	}
	return protocol.ErrnoToError(ret)
}
