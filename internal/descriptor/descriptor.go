// Package descriptor owns the client-side table of open file handles. The
// file driver consumes handles; it never allocates or frees them itself.
package descriptor

import (
	"sync"

	"github.com/pagestore/pagestore/internal/protocol"
)

const (
	// MaxOpen is the number of descriptor slots per client context.
	MaxOpen = 32

	// DevFile tags handles whose operations route to the file driver.
	DevFile = "file"
)

// Handle is one open file instance. FileID is the server-assigned identifier
// for this instance; it is distinct from the path and from the handle's slot
// index. Offset is owned and mutated only by this layer, never by the driver.
type Handle struct {
	Dev    string
	FileID int32
	Mode   protocol.OpenMode
	Offset int64
}

type Table struct {
	mu    sync.Mutex
	slots [MaxOpen]*Handle
}

func NewTable() *Table {
	return &Table{}
}

// Alloc returns the lowest free slot and its index.
func (t *Table) Alloc() (*Handle, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i] == nil {
			h := &Handle{}
			t.slots[i] = h
			return h, i, nil
		}
	}
	return nil, 0, ErrTableFull
}

func (t *Table) Lookup(index int) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= MaxOpen || t.slots[index] == nil {
		return nil, ErrBadDescriptor
	}
	return t.slots[index], nil
}

// Release frees the slot. The caller is responsible for flushing the handle
// first; after Release the index may be handed out again.
func (t *Table) Release(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= MaxOpen || t.slots[index] == nil {
		return ErrBadDescriptor
	}
	t.slots[index] = nil
	return nil
}

// Open reports the number of slots in use.
func (t *Table) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.slots {
		if t.slots[i] != nil {
			n++
		}
	}
	return n
}
