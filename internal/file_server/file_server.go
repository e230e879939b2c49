// Package file_server is an in-memory file service speaking the page
// protocol. It backs the server binary, the demo mode, and the client tests.
package file_server

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pagestore/pagestore/internal/log_service"
	"github.com/pagestore/pagestore/internal/protocol"
)

type file struct {
	name  string
	data  []byte
	isDir bool
}

// openFile is one client open instance. The file id identifies the instance,
// not the path: two opens of the same path get distinct ids.
type openFile struct {
	path string
	f    *file
	mode protocol.OpenMode
}

type FileServer struct {
	ls log_service.LogService
	id string

	mu     sync.Mutex
	files  map[string]*file
	open   map[int32]*openFile
	nextID int32
	writes uint64
}

func NewFileServer(ls log_service.LogService) *FileServer {
	s := &FileServer{
		ls:     ls,
		id:     uuid.NewString(),
		files:  map[string]*file{"/": {name: "/", isDir: true}},
		open:   make(map[int32]*openFile),
		nextID: 1,
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "File server created",
		Metadata: map[string]any{"server": s.id},
	})
	return s
}

// Handle dispatches one exchange. It satisfies communication.Handler.
func (s *FileServer) Handle(ctx context.Context, op protocol.Opcode, page *protocol.Page) (int32, *protocol.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch op {
	case protocol.OpOpen:
		return s.handleOpen(page)
	case protocol.OpRead:
		return s.handleRead(page)
	case protocol.OpWrite:
		return s.handleWrite(page)
	case protocol.OpStat:
		return s.handleStat(page)
	case protocol.OpSetSize:
		return s.handleSetSize(page)
	case protocol.OpFlush:
		return s.handleFlush(page)
	case protocol.OpSync:
		return s.handleSync()
	default:
		s.ls.Warn(log_service.LogEvent{
			Message:  "Unknown opcode",
			Metadata: map[string]any{"op": uint32(op)},
		})
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}
}

// OpenCount reports the number of live open instances; flush removes them.
func (s *FileServer) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

func (s *FileServer) handleOpen(page *protocol.Page) (int32, *protocol.Page) {
	req, err := protocol.DecodeOpenRequest(page)
	if err != nil {
		return protocol.ErrorToErrno(err), nil
	}

	p := path.Clean(req.Path)
	if !strings.HasPrefix(p, "/") {
		return protocol.ErrorToErrno(protocol.ErrBadPath), nil
	}

	f, exists := s.files[p]
	if exists && req.Mode&protocol.Create != 0 && req.Mode&protocol.Excl != 0 {
		return protocol.ErrorToErrno(protocol.ErrFileExists), nil
	}
	if !exists {
		if req.Mode&protocol.Create == 0 {
			return protocol.ErrorToErrno(protocol.ErrNotFound), nil
		}
		parent, ok := s.files[path.Dir(p)]
		if !ok {
			return protocol.ErrorToErrno(protocol.ErrNotFound), nil
		}
		if !parent.isDir {
			return protocol.ErrorToErrno(protocol.ErrNotDir), nil
		}
		f = &file{name: path.Base(p), isDir: req.Mode&protocol.Mkdir != 0}
		s.files[p] = f
	}

	if req.Mode&protocol.Mkdir != 0 && !f.isDir {
		return protocol.ErrorToErrno(protocol.ErrNotDir), nil
	}
	if f.isDir && req.Mode.Writable() {
		return protocol.ErrorToErrno(protocol.ErrIsDir), nil
	}
	if req.Mode&protocol.Trunc != 0 {
		if !req.Mode.Writable() {
			return protocol.ErrorToErrno(protocol.ErrPermission), nil
		}
		f.data = nil
	}

	id := s.nextID
	s.nextID++
	s.open[id] = &openFile{path: p, f: f, mode: req.Mode}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Opened file",
		Metadata: map[string]any{"path": p, "fileid": id, "mode": uint32(req.Mode)},
	})

	var reply protocol.Page
	resp := protocol.OpenResponse{FileID: id, Mode: req.Mode}
	resp.Encode(&reply)
	return 0, &reply
}

func (s *FileServer) handleRead(page *protocol.Page) (int32, *protocol.Page) {
	req := protocol.DecodeReadRequest(page)

	of, ok := s.open[req.FileID]
	if !ok {
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}
	if !of.mode.Readable() {
		return protocol.ErrorToErrno(protocol.ErrPermission), nil
	}
	if req.Offset < 0 {
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}

	n := int(req.Count)
	if n > protocol.PageSize {
		n = protocol.PageSize
	}
	if req.Offset >= int64(len(of.f.data)) {
		return 0, nil // end of file
	}
	if remaining := int(int64(len(of.f.data)) - req.Offset); n > remaining {
		n = remaining
	}

	var reply protocol.Page
	copy(reply[:], of.f.data[req.Offset:req.Offset+int64(n)])
	return int32(n), &reply
}

func (s *FileServer) handleWrite(page *protocol.Page) (int32, *protocol.Page) {
	req, err := protocol.DecodeWriteRequest(page)
	if err != nil {
		return protocol.ErrorToErrno(err), nil
	}

	of, ok := s.open[req.FileID]
	if !ok {
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}
	if !of.mode.Writable() {
		return protocol.ErrorToErrno(protocol.ErrPermission), nil
	}
	if of.f.isDir {
		return protocol.ErrorToErrno(protocol.ErrIsDir), nil
	}
	if req.Offset < 0 {
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}

	end := req.Offset + int64(len(req.Data))
	if end > int64(len(of.f.data)) {
		grown := make([]byte, end)
		copy(grown, of.f.data)
		of.f.data = grown
	}
	copy(of.f.data[req.Offset:end], req.Data)
	s.writes++

	return int32(len(req.Data)), nil
}

func (s *FileServer) handleStat(page *protocol.Page) (int32, *protocol.Page) {
	req := protocol.DecodeStatRequest(page)

	of, ok := s.open[req.FileID]
	if !ok {
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}

	var reply protocol.Page
	resp := protocol.StatResponse{Info: protocol.FileInfo{
		Name:  of.f.name,
		Size:  int64(len(of.f.data)),
		IsDir: of.f.isDir,
	}}
	resp.Encode(&reply)
	return 0, &reply
}

func (s *FileServer) handleSetSize(page *protocol.Page) (int32, *protocol.Page) {
	req := protocol.DecodeSetSizeRequest(page)

	of, ok := s.open[req.FileID]
	if !ok {
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}
	if !of.mode.Writable() {
		return protocol.ErrorToErrno(protocol.ErrPermission), nil
	}
	if req.Size < 0 {
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}

	if req.Size <= int64(len(of.f.data)) {
		of.f.data = of.f.data[:req.Size]
	} else {
		grown := make([]byte, req.Size)
		copy(grown, of.f.data)
		of.f.data = grown
	}
	s.writes++

	return 0, nil
}

func (s *FileServer) handleFlush(page *protocol.Page) (int32, *protocol.Page) {
	req := protocol.DecodeFlushRequest(page)

	of, ok := s.open[req.FileID]
	if !ok {
		return protocol.ErrorToErrno(protocol.ErrInvalid), nil
	}
	delete(s.open, req.FileID)

	s.ls.Debug(log_service.LogEvent{
		Message:  "Flushed file",
		Metadata: map[string]any{"path": of.path, "fileid": req.FileID},
	})
	return 0, nil
}

func (s *FileServer) handleSync() (int32, *protocol.Page) {
	// The store is memory-resident, so durability is a no-op; the write
	// counter gives operators a progress marker.
	s.ls.Info(log_service.LogEvent{
		Message:  "Sync requested",
		Metadata: map[string]any{"server": s.id, "writes": s.writes},
	})
	return 0, nil
}
