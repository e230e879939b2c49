package file_client

import (
	"context"

	"github.com/pagestore/pagestore/internal/protocol"
)

// Descriptor-index convenience layer. These wrappers look the handle up in
// the table, check the open mode, and keep the handle's offset current; the
// driver methods above never touch the offset themselves.

func (c *Client) ReadFd(ctx context.Context, fdnum int, p []byte) (int, error) {
	h, err := c.fds.Lookup(fdnum)
	if err != nil {
		return 0, err
	}
	if !h.Mode.Readable() {
		return 0, protocol.ErrPermission
	}

	n, err := c.Read(ctx, h, p)
	if err != nil {
		return 0, err
	}
	h.Offset += int64(n)
	return n, nil
}

func (c *Client) WriteFd(ctx context.Context, fdnum int, p []byte) (int, error) {
	h, err := c.fds.Lookup(fdnum)
	if err != nil {
		return 0, err
	}
	if !h.Mode.Writable() {
		return 0, protocol.ErrPermission
	}

	n, err := c.Write(ctx, h, p)
	if err != nil {
		return 0, err
	}
	h.Offset += int64(n)
	return n, nil
}

func (c *Client) StatFd(ctx context.Context, fdnum int) (protocol.FileInfo, error) {
	h, err := c.fds.Lookup(fdnum)
	if err != nil {
		return protocol.FileInfo{}, err
	}
	return c.Stat(ctx, h)
}

func (c *Client) TruncateFd(ctx context.Context, fdnum int, size int64) error {
	h, err := c.fds.Lookup(fdnum)
	if err != nil {
		return err
	}
	if !h.Mode.Writable() {
		return protocol.ErrPermission
	}
	return c.Truncate(ctx, h, size)
}

// Seek repositions the handle's offset. Purely local; no message is sent.
func (c *Client) Seek(fdnum int, offset int64) error {
	h, err := c.fds.Lookup(fdnum)
	if err != nil {
		return err
	}
	h.Offset = offset
	return nil
}

// Close flushes the handle and releases its slot. The slot is released even
// when the flush fails; the flush error is returned either way.
func (c *Client) Close(ctx context.Context, fdnum int) error {
	h, err := c.fds.Lookup(fdnum)
	if err != nil {
		return err
	}

	flushErr := c.Flush(ctx, h)
	c.fds.Release(fdnum)
	return flushErr
}
