package file_client

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pagestore/pagestore/internal/communication"
	inproccomm "github.com/pagestore/pagestore/internal/communication/inproc"
	"github.com/pagestore/pagestore/internal/descriptor"
	"github.com/pagestore/pagestore/internal/file_server"
	"github.com/pagestore/pagestore/internal/log_service"
	"github.com/pagestore/pagestore/internal/log_service/localdisc"
	"github.com/pagestore/pagestore/internal/protocol"
)

// countingExchanger records how many exchanges each opcode issued.
type countingExchanger struct {
	inner communication.Exchanger
	calls map[protocol.Opcode]int
}

func (c *countingExchanger) Exchange(ctx context.Context, op protocol.Opcode, buf *protocol.Page, dst *protocol.Page) (int32, error) {
	c.calls[op]++
	return c.inner.Exchange(ctx, op, buf, dst)
}

func newTestClient(t *testing.T) (*Client, *file_server.FileServer, *countingExchanger) {
	t.Helper()
	ls := localdisc.NewLocalDiscLogService(t.TempDir(), "test", log_service.ErrorLevel)
	srv := file_server.NewFileServer(ls)
	ex := &countingExchanger{
		inner: inproccomm.NewLoopback(srv.Handle),
		calls: make(map[protocol.Opcode]int),
	}
	return NewClient(ex), srv, ex
}

func TestOpenBadPathConsumesNothing(t *testing.T) {
	fc, srv, ex := newTestClient(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "path at limit", path: strings.Repeat("p", protocol.MaxPathLen)},
		{name: "path far beyond limit", path: "/" + strings.Repeat("p", protocol.MaxPathLen*4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fc.Open(context.Background(), tt.path, protocol.ReadWrite|protocol.Create)
			if !errors.Is(err, protocol.ErrBadPath) {
				t.Fatalf("Open() error = %v, want %v", err, protocol.ErrBadPath)
			}
			if fc.fds.Open() != 0 {
				t.Errorf("descriptor allocated for rejected path")
			}
			if ex.calls[protocol.OpOpen] != 0 {
				t.Errorf("exchange issued for rejected path")
			}
			if srv.OpenCount() != 0 {
				t.Errorf("server opened an instance for rejected path")
			}
		})
	}
}

func TestOpenFailureReleasesDescriptor(t *testing.T) {
	fc, _, _ := newTestClient(t)

	_, err := fc.Open(context.Background(), "/missing.txt", protocol.ReadOnly)
	if !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("Open() error = %v, want %v", err, protocol.ErrNotFound)
	}
	if fc.fds.Open() != 0 {
		t.Errorf("descriptor leaked on open failure")
	}

	// The released slot is immediately reusable.
	fd, err := fc.Open(context.Background(), "/ok.txt", protocol.ReadWrite|protocol.Create)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if fd != 0 {
		t.Errorf("Open() descriptor = %d, want 0", fd)
	}
}

func TestWriteClampedToSingleExchange(t *testing.T) {
	fc, _, ex := newTestClient(t)
	ctx := context.Background()

	fd, err := fc.Open(ctx, "/big.bin", protocol.ReadWrite|protocol.Create)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	big := bytes.Repeat([]byte{0xCD}, protocol.MaxWritePayload*3)
	n, err := fc.WriteFd(ctx, fd, big)
	if err != nil {
		t.Fatalf("WriteFd() error = %v", err)
	}
	if n != protocol.MaxWritePayload {
		t.Errorf("WriteFd() = %d, want the inline cap %d", n, protocol.MaxWritePayload)
	}
	if ex.calls[protocol.OpWrite] != 1 {
		t.Errorf("write issued %d exchanges, want 1", ex.calls[protocol.OpWrite])
	}

	// Callers loop to cover the rest.
	total := n
	for total < len(big) {
		n, err = fc.WriteFd(ctx, fd, big[total:])
		if err != nil {
			t.Fatalf("WriteFd() error = %v", err)
		}
		total += n
	}
	if ex.calls[protocol.OpWrite] != 3 {
		t.Errorf("full write issued %d exchanges, want 3", ex.calls[protocol.OpWrite])
	}

	info, err := fc.StatFd(ctx, fd)
	if err != nil {
		t.Fatalf("StatFd() error = %v", err)
	}
	if info.Size != int64(len(big)) {
		t.Errorf("size after looped write = %d, want %d", info.Size, len(big))
	}
}

func TestReadBoundsAndEOF(t *testing.T) {
	fc, _, _ := newTestClient(t)
	ctx := context.Background()

	fd, err := fc.Open(ctx, "/r.txt", protocol.ReadWrite|protocol.Create)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := fc.WriteFd(ctx, fd, []byte("abc")); err != nil {
		t.Fatalf("WriteFd() error = %v", err)
	}

	// Request more than the file holds: short read, then EOF as 0.
	if err := fc.Seek(fd, 0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	buf := make([]byte, 100)
	n, err := fc.ReadFd(ctx, fd, buf)
	if err != nil || n != 3 {
		t.Fatalf("ReadFd() = (%d, %v), want (3, nil)", n, err)
	}
	n, err = fc.ReadFd(ctx, fd, buf)
	if err != nil {
		t.Fatalf("ReadFd() at EOF error = %v", err)
	}
	if n != 0 {
		t.Errorf("ReadFd() at EOF = %d, want 0", n)
	}

	// A request larger than a page is satisfied one page at a time.
	if err := fc.TruncateFd(ctx, fd, protocol.PageSize*2); err != nil {
		t.Fatalf("TruncateFd() error = %v", err)
	}
	if err := fc.Seek(fd, 0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	huge := make([]byte, protocol.PageSize*2)
	n, err = fc.ReadFd(ctx, fd, huge)
	if err != nil {
		t.Fatalf("ReadFd() error = %v", err)
	}
	if n != protocol.PageSize {
		t.Errorf("ReadFd() with oversized buffer = %d, want one page %d", n, protocol.PageSize)
	}
}

func TestRoundTrip(t *testing.T) {
	fc, _, _ := newTestClient(t)
	ctx := context.Background()

	payload := []byte("the quick brown fox jumps over the lazy dog")

	fd, err := fc.Open(ctx, "/round.txt", protocol.ReadWrite|protocol.Create)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := fc.WriteFd(ctx, fd, payload); err != nil {
		t.Fatalf("WriteFd() error = %v", err)
	}
	if err := fc.TruncateFd(ctx, fd, int64(len(payload))); err != nil {
		t.Fatalf("TruncateFd() error = %v", err)
	}

	info, err := fc.StatFd(ctx, fd)
	if err != nil {
		t.Fatalf("StatFd() error = %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Errorf("stat size = %d, want %d", info.Size, len(payload))
	}

	if err := fc.Seek(fd, 0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	got := make([]byte, len(payload))
	n, err := fc.ReadFd(ctx, fd, got)
	if err != nil {
		t.Fatalf("ReadFd() error = %v", err)
	}
	if n != len(payload) || !bytes.Equal(got[:n], payload) {
		t.Errorf("read back %q, want %q", got[:n], payload)
	}
}

func TestSyncWithNoPriorWrites(t *testing.T) {
	fc, _, _ := newTestClient(t)
	if err := fc.Sync(context.Background()); err != nil {
		t.Errorf("Sync() error = %v, want nil", err)
	}
}

func TestCloseFlushesAndReleases(t *testing.T) {
	fc, srv, ex := newTestClient(t)
	ctx := context.Background()

	fd, err := fc.Open(ctx, "/c.txt", protocol.ReadWrite|protocol.Create)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if srv.OpenCount() != 1 {
		t.Fatalf("server OpenCount() = %d, want 1", srv.OpenCount())
	}

	if err := fc.Close(ctx, fd); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if ex.calls[protocol.OpFlush] != 1 {
		t.Errorf("close issued %d flush exchanges, want 1", ex.calls[protocol.OpFlush])
	}
	if srv.OpenCount() != 0 {
		t.Errorf("server OpenCount() after close = %d, want 0", srv.OpenCount())
	}

	if _, err := fc.ReadFd(ctx, fd, make([]byte, 1)); !errors.Is(err, descriptor.ErrBadDescriptor) {
		t.Errorf("ReadFd() on closed descriptor error = %v, want %v", err, descriptor.ErrBadDescriptor)
	}
	if err := fc.Close(ctx, fd); !errors.Is(err, descriptor.ErrBadDescriptor) {
		t.Errorf("double Close() error = %v, want %v", err, descriptor.ErrBadDescriptor)
	}
}

func TestAccessModeEnforcedLocally(t *testing.T) {
	fc, _, ex := newTestClient(t)
	ctx := context.Background()

	fd, err := fc.Open(ctx, "/ro.txt", protocol.ReadOnly|protocol.Create)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := fc.WriteFd(ctx, fd, []byte("x")); !errors.Is(err, protocol.ErrPermission) {
		t.Fatalf("WriteFd() on read-only descriptor error = %v, want %v", err, protocol.ErrPermission)
	}
	if ex.calls[protocol.OpWrite] != 0 {
		t.Errorf("write exchange issued despite local mode check")
	}
}

func TestHandleTracksFileInstance(t *testing.T) {
	fc, _, _ := newTestClient(t)
	ctx := context.Background()

	// Two descriptors on the same path are distinct instances with
	// independent offsets over shared contents.
	writer, err := fc.Open(ctx, "/shared.txt", protocol.ReadWrite|protocol.Create)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	reader, err := fc.Open(ctx, "/shared.txt", protocol.ReadOnly)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	wh, _ := fc.fds.Lookup(writer)
	rh, _ := fc.fds.Lookup(reader)
	if wh.FileID == rh.FileID {
		t.Fatalf("distinct opens share file id %d", wh.FileID)
	}

	if _, err := fc.WriteFd(ctx, writer, []byte("hello")); err != nil {
		t.Fatalf("WriteFd() error = %v", err)
	}

	buf := make([]byte, 10)
	n, err := fc.ReadFd(ctx, reader, buf)
	if err != nil || n != 5 || string(buf[:5]) != "hello" {
		t.Errorf("ReadFd() via second instance = (%d, %q, %v), want (5, %q, nil)", n, buf[:n], err, "hello")
	}
}

func TestScenarioHello(t *testing.T) {
	fc, _, _ := newTestClient(t)
	ctx := context.Background()

	fd, err := fc.Open(ctx, "/a.txt", protocol.ReadWrite|protocol.Create)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	n, err := fc.WriteFd(ctx, fd, []byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("WriteFd() = (%d, %v), want (5, nil)", n, err)
	}

	info, err := fc.StatFd(ctx, fd)
	if err != nil {
		t.Fatalf("StatFd() error = %v", err)
	}
	if info.Name != "a.txt" || info.Size != 5 || info.IsDir {
		t.Errorf("stat = %+v, want {a.txt 5 false}", info)
	}

	if err := fc.Seek(fd, 0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	buf := make([]byte, 10)
	n, err = fc.ReadFd(ctx, fd, buf)
	if err != nil || n != 5 || string(buf[:n]) != "hello" {
		t.Errorf("ReadFd() = (%d, %q, %v), want (5, %q, nil)", n, buf[:n], err, "hello")
	}
}
