// Package protocol defines the page-sized wire records exchanged with the
// file server. Every request and every response occupies exactly one page;
// the operation code and the signed result travel next to the page, not
// inside it.
package protocol

import "encoding/binary"

const (
	// PageSize is the transport unit. A request or response never spans pages.
	PageSize = 4096

	// MaxPathLen bounds the path field of an open request. Longer paths are
	// rejected locally before any message is sent.
	MaxPathLen = 1024

	// MaxNameLen bounds the name field of a stat response.
	MaxNameLen = 128

	// writeHeaderLen is the fixed prefix of a write request: file id (4),
	// offset (8), count (4).
	writeHeaderLen = 16

	// MaxWritePayload is the inline payload cap: whatever fits in one page
	// alongside the write header.
	MaxWritePayload = PageSize - writeHeaderLen
)

// Page is the shared request/response buffer. One instance is owned by each
// client context and reused sequentially for every exchange.
type Page [PageSize]byte

// Reset zeroes the page.
func (p *Page) Reset() {
	*p = Page{}
}

type Opcode uint32

const (
	OpOpen Opcode = iota + 1
	OpRead
	OpWrite
	OpFlush
	OpStat
	OpSetSize
	OpSync
)

func (op Opcode) String() string {
	switch op {
	case OpOpen:
		return "open"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpFlush:
		return "flush"
	case OpStat:
		return "stat"
	case OpSetSize:
		return "set_size"
	case OpSync:
		return "sync"
	default:
		return "unknown"
	}
}

// OpenMode is the mode word of an open request.
type OpenMode uint32

const (
	ReadOnly   OpenMode = 0x0
	WriteOnly  OpenMode = 0x1
	ReadWrite  OpenMode = 0x2
	AccessMask OpenMode = 0x3

	Create OpenMode = 0x100
	Trunc  OpenMode = 0x200
	Excl   OpenMode = 0x400
	Mkdir  OpenMode = 0x800
)

// Readable reports whether the access bits permit reads.
func (m OpenMode) Readable() bool {
	acc := m & AccessMask
	return acc == ReadOnly || acc == ReadWrite
}

// Writable reports whether the access bits permit writes.
func (m OpenMode) Writable() bool {
	acc := m & AccessMask
	return acc == WriteOnly || acc == ReadWrite
}

// FileInfo is the payload of a stat response.
type FileInfo struct {
	Name  string
	Size  int64
	IsDir bool
}

// --- Request records ---
//
// Field offsets are fixed; integers are little-endian. Each Encode fully
// overwrites the header region of the page, and each response record fully
// overwrites the page before the caller may read payload fields back out.

type OpenRequest struct {
	Path string
	Mode OpenMode
}

func (r *OpenRequest) Encode(p *Page) error {
	if len(r.Path) >= MaxPathLen {
		return ErrBadPath
	}
	for i := range MaxPathLen {
		p[i] = 0
	}
	copy(p[:], r.Path)
	binary.LittleEndian.PutUint32(p[MaxPathLen:], uint32(r.Mode))
	return nil
}

func DecodeOpenRequest(p *Page) (OpenRequest, error) {
	n := 0
	for n < MaxPathLen && p[n] != 0 {
		n++
	}
	if n == MaxPathLen {
		return OpenRequest{}, ErrBadPath
	}
	return OpenRequest{
		Path: string(p[:n]),
		Mode: OpenMode(binary.LittleEndian.Uint32(p[MaxPathLen:])),
	}, nil
}

// OpenResponse is written by the server into the destination page supplied
// with an open exchange. It carries the server-assigned file id for the new
// open instance.
type OpenResponse struct {
	FileID int32
	Mode   OpenMode
}

func (r *OpenResponse) Encode(p *Page) {
	binary.LittleEndian.PutUint32(p[0:], uint32(r.FileID))
	binary.LittleEndian.PutUint32(p[4:], uint32(r.Mode))
}

func DecodeOpenResponse(p *Page) OpenResponse {
	return OpenResponse{
		FileID: int32(binary.LittleEndian.Uint32(p[0:])),
		Mode:   OpenMode(binary.LittleEndian.Uint32(p[4:])),
	}
}

type ReadRequest struct {
	FileID int32
	Offset int64
	Count  uint32
}

func (r *ReadRequest) Encode(p *Page) {
	binary.LittleEndian.PutUint32(p[0:], uint32(r.FileID))
	binary.LittleEndian.PutUint64(p[4:], uint64(r.Offset))
	binary.LittleEndian.PutUint32(p[12:], r.Count)
}

func DecodeReadRequest(p *Page) ReadRequest {
	return ReadRequest{
		FileID: int32(binary.LittleEndian.Uint32(p[0:])),
		Offset: int64(binary.LittleEndian.Uint64(p[4:])),
		Count:  binary.LittleEndian.Uint32(p[12:]),
	}
}

// ReadPayload returns the region of a read response page that carries the
// returned bytes. The valid length is the exchange's return value.
func ReadPayload(p *Page) []byte {
	return p[:]
}

type WriteRequest struct {
	FileID int32
	Offset int64
	Data   []byte
}

func (r *WriteRequest) Encode(p *Page) error {
	if len(r.Data) > MaxWritePayload {
		return ErrInvalid
	}
	binary.LittleEndian.PutUint32(p[0:], uint32(r.FileID))
	binary.LittleEndian.PutUint64(p[4:], uint64(r.Offset))
	binary.LittleEndian.PutUint32(p[12:], uint32(len(r.Data)))
	copy(p[writeHeaderLen:], r.Data)
	return nil
}

func DecodeWriteRequest(p *Page) (WriteRequest, error) {
	count := binary.LittleEndian.Uint32(p[12:])
	if count > MaxWritePayload {
		return WriteRequest{}, ErrInvalid
	}
	return WriteRequest{
		FileID: int32(binary.LittleEndian.Uint32(p[0:])),
		Offset: int64(binary.LittleEndian.Uint64(p[4:])),
		Data:   p[writeHeaderLen : writeHeaderLen+int(count)],
	}, nil
}

type StatRequest struct {
	FileID int32
}

func (r *StatRequest) Encode(p *Page) {
	binary.LittleEndian.PutUint32(p[0:], uint32(r.FileID))
}

func DecodeStatRequest(p *Page) StatRequest {
	return StatRequest{FileID: int32(binary.LittleEndian.Uint32(p[0:]))}
}

type StatResponse struct {
	Info FileInfo
}

func (r *StatResponse) Encode(p *Page) {
	for i := range MaxNameLen {
		p[i] = 0
	}
	name := r.Info.Name
	if len(name) >= MaxNameLen {
		name = name[:MaxNameLen-1]
	}
	copy(p[:], name)
	binary.LittleEndian.PutUint64(p[MaxNameLen:], uint64(r.Info.Size))
	var isDir uint32
	if r.Info.IsDir {
		isDir = 1
	}
	binary.LittleEndian.PutUint32(p[MaxNameLen+8:], isDir)
}

func DecodeStatResponse(p *Page) StatResponse {
	n := 0
	for n < MaxNameLen && p[n] != 0 {
		n++
	}
	return StatResponse{Info: FileInfo{
		Name:  string(p[:n]),
		Size:  int64(binary.LittleEndian.Uint64(p[MaxNameLen:])),
		IsDir: binary.LittleEndian.Uint32(p[MaxNameLen+8:]) != 0,
	}}
}

type SetSizeRequest struct {
	FileID int32
	Size   int64
}

func (r *SetSizeRequest) Encode(p *Page) {
	binary.LittleEndian.PutUint32(p[0:], uint32(r.FileID))
	binary.LittleEndian.PutUint64(p[4:], uint64(r.Size))
}

func DecodeSetSizeRequest(p *Page) SetSizeRequest {
	return SetSizeRequest{
		FileID: int32(binary.LittleEndian.Uint32(p[0:])),
		Size:   int64(binary.LittleEndian.Uint64(p[4:])),
	}
}

type FlushRequest struct {
	FileID int32
}

func (r *FlushRequest) Encode(p *Page) {
	binary.LittleEndian.PutUint32(p[0:], uint32(r.FileID))
}

func DecodeFlushRequest(p *Page) FlushRequest {
	return FlushRequest{FileID: int32(binary.LittleEndian.Uint32(p[0:]))}
}
