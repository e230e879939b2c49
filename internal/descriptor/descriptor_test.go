package descriptor

import (
	"errors"
	"testing"
)

func TestTableAllocLowestSlot(t *testing.T) {
	tbl := NewTable()

	_, first, err := tbl.Alloc()
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	_, second, err := tbl.Alloc()
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if first != 0 || second != 1 {
		t.Errorf("Alloc() indices = %d, %d, want 0, 1", first, second)
	}

	if err := tbl.Release(first); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	_, again, err := tbl.Alloc()
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if again != first {
		t.Errorf("Alloc() after release = %d, want %d", again, first)
	}
}

func TestTableExhaustion(t *testing.T) {
	tbl := NewTable()

	for i := 0; i < MaxOpen; i++ {
		if _, _, err := tbl.Alloc(); err != nil {
			t.Fatalf("Alloc() #%d error = %v", i, err)
		}
	}

	if _, _, err := tbl.Alloc(); !errors.Is(err, ErrTableFull) {
		t.Fatalf("Alloc() on full table error = %v, want %v", err, ErrTableFull)
	}
	if got := tbl.Open(); got != MaxOpen {
		t.Errorf("Open() = %d, want %d", got, MaxOpen)
	}
}

func TestTableLookup(t *testing.T) {
	tbl := NewTable()
	h, idx, err := tbl.Alloc()
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	h.FileID = 99

	tests := []struct {
		name    string
		index   int
		wantErr error
	}{
		{name: "allocated slot", index: idx},
		{name: "free slot", index: idx + 1, wantErr: ErrBadDescriptor},
		{name: "negative index", index: -1, wantErr: ErrBadDescriptor},
		{name: "index beyond table", index: MaxOpen, wantErr: ErrBadDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tbl.Lookup(tt.index)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Lookup(%d) error = %v, want %v", tt.index, err, tt.wantErr)
			}
			if tt.wantErr == nil && got.FileID != 99 {
				t.Errorf("Lookup(%d).FileID = %d, want 99", tt.index, got.FileID)
			}
		})
	}

	if err := tbl.Release(idx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := tbl.Release(idx); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("double Release() error = %v, want %v", err, ErrBadDescriptor)
	}
}
