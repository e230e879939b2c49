package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestOpenRequestPathLimit(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{
			name: "short path",
			path: "/a.txt",
		},
		{
			name: "longest legal path",
			path: "/" + strings.Repeat("a", MaxPathLen-2),
		},
		{
			name:    "path at limit",
			path:    strings.Repeat("a", MaxPathLen),
			wantErr: ErrBadPath,
		},
		{
			name:    "path beyond limit",
			path:    strings.Repeat("a", MaxPathLen*2),
			wantErr: ErrBadPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page Page
			req := OpenRequest{Path: tt.path, Mode: ReadWrite | Create}
			err := req.Encode(&page)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Encode() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			got, err := DecodeOpenRequest(&page)
			if err != nil {
				t.Fatalf("DecodeOpenRequest() error = %v", err)
			}
			if got.Path != tt.path {
				t.Errorf("decoded path = %q, want %q", got.Path, tt.path)
			}
			if got.Mode != ReadWrite|Create {
				t.Errorf("decoded mode = %#x, want %#x", got.Mode, ReadWrite|Create)
			}
		})
	}
}

func TestOpenRequestOverwritesStalePath(t *testing.T) {
	var page Page

	long := OpenRequest{Path: "/a/very/long/path/name.txt", Mode: ReadOnly}
	if err := long.Encode(&page); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	short := OpenRequest{Path: "/b", Mode: ReadOnly}
	if err := short.Encode(&page); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := DecodeOpenRequest(&page)
	if err != nil {
		t.Fatalf("DecodeOpenRequest() error = %v", err)
	}
	if got.Path != "/b" {
		t.Errorf("decoded path = %q, want %q (stale bytes leaked)", got.Path, "/b")
	}
}

func TestWriteRequestPayloadCap(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{name: "small payload", size: 5},
		{name: "payload at cap", size: MaxWritePayload},
		{name: "payload over cap", size: MaxWritePayload + 1, wantErr: ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xAB}, tt.size)
			var page Page
			req := WriteRequest{FileID: 7, Offset: 12, Data: data}
			err := req.Encode(&page)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Encode() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			got, err := DecodeWriteRequest(&page)
			if err != nil {
				t.Fatalf("DecodeWriteRequest() error = %v", err)
			}
			if got.FileID != 7 || got.Offset != 12 {
				t.Errorf("decoded header = (%d, %d), want (7, 12)", got.FileID, got.Offset)
			}
			if !bytes.Equal(got.Data, data) {
				t.Errorf("decoded payload mismatch, len = %d, want %d", len(got.Data), len(data))
			}
		})
	}
}

func TestDecodeWriteRequestRejectsOversizedCount(t *testing.T) {
	var page Page
	binary.LittleEndian.PutUint32(page[12:], MaxWritePayload+1)

	if _, err := DecodeWriteRequest(&page); !errors.Is(err, ErrInvalid) {
		t.Fatalf("DecodeWriteRequest() error = %v, want %v", err, ErrInvalid)
	}
}

func TestStatResponseNameBounded(t *testing.T) {
	var page Page
	resp := StatResponse{Info: FileInfo{
		Name:  strings.Repeat("n", MaxNameLen*2),
		Size:  42,
		IsDir: true,
	}}
	resp.Encode(&page)

	got := DecodeStatResponse(&page)
	if len(got.Info.Name) >= MaxNameLen {
		t.Errorf("decoded name length = %d, want < %d", len(got.Info.Name), MaxNameLen)
	}
	if got.Info.Size != 42 || !got.Info.IsDir {
		t.Errorf("decoded info = %+v", got.Info)
	}
}

func TestErrnoMapping(t *testing.T) {
	sentinels := []error{
		ErrUnspecified, ErrInvalid, ErrBadPath, ErrNotFound, ErrFileExists,
		ErrMaxOpen, ErrNotDir, ErrIsDir, ErrNoDisk, ErrPermission,
	}

	seen := make(map[int32]bool)
	for _, sentinel := range sentinels {
		code := ErrorToErrno(sentinel)
		if code >= 0 {
			t.Errorf("ErrorToErrno(%v) = %d, want negative", sentinel, code)
		}
		if seen[code] {
			t.Errorf("code %d assigned to more than one error", code)
		}
		seen[code] = true

		if got := ErrnoToError(code); !errors.Is(got, sentinel) {
			t.Errorf("ErrnoToError(%d) = %v, want %v", code, got, sentinel)
		}
	}

	if err := ErrnoToError(0); err != nil {
		t.Errorf("ErrnoToError(0) = %v, want nil", err)
	}
	if err := ErrnoToError(123); err != nil {
		t.Errorf("ErrnoToError(123) = %v, want nil", err)
	}
	if err := ErrnoToError(-9999); !errors.Is(err, ErrUnspecified) {
		t.Errorf("ErrnoToError(-9999) = %v, want %v", err, ErrUnspecified)
	}
	if code := ErrorToErrno(nil); code != 0 {
		t.Errorf("ErrorToErrno(nil) = %d, want 0", code)
	}
}
