package protocol

import "errors"

// Closed error set shared by client and server. On the wire each error is a
// negative 32-bit code; the mapping below is the only place the integer form
// exists.
var (
	ErrUnspecified = errors.New("unspecified error")
	ErrInvalid     = errors.New("invalid request")
	ErrBadPath     = errors.New("bad path")
	ErrNotFound    = errors.New("file not found")
	ErrFileExists  = errors.New("file already exists")
	ErrMaxOpen     = errors.New("too many open files")
	ErrNotDir      = errors.New("not a directory")
	ErrIsDir       = errors.New("is a directory")
	ErrNoDisk      = errors.New("out of storage")
	ErrPermission  = errors.New("permission denied")
)

const (
	codeUnspecified int32 = -1
	codeInvalid     int32 = -2
	codeBadPath     int32 = -3
	codeNotFound    int32 = -4
	codeFileExists  int32 = -5
	codeMaxOpen     int32 = -6
	codeNotDir      int32 = -7
	codeIsDir       int32 = -8
	codeNoDisk      int32 = -9
	codePermission  int32 = -10
)

var errnoByError = map[error]int32{
	ErrUnspecified: codeUnspecified,
	ErrInvalid:     codeInvalid,
	ErrBadPath:     codeBadPath,
	ErrNotFound:    codeNotFound,
	ErrFileExists:  codeFileExists,
	ErrMaxOpen:     codeMaxOpen,
	ErrNotDir:      codeNotDir,
	ErrIsDir:       codeIsDir,
	ErrNoDisk:      codeNoDisk,
	ErrPermission:  codePermission,
}

var errorByErrno = map[int32]error{
	codeUnspecified: ErrUnspecified,
	codeInvalid:     ErrInvalid,
	codeBadPath:     ErrBadPath,
	codeNotFound:    ErrNotFound,
	codeFileExists:  ErrFileExists,
	codeMaxOpen:     ErrMaxOpen,
	codeNotDir:      ErrNotDir,
	codeIsDir:       ErrIsDir,
	codeNoDisk:      ErrNoDisk,
	codePermission:  ErrPermission,
}

// ErrnoToError maps a wire result to an error. Non-negative results map to
// nil; unknown negative codes collapse to ErrUnspecified.
func ErrnoToError(code int32) error {
	if code >= 0 {
		return nil
	}
	if err, ok := errorByErrno[code]; ok {
		return err
	}
	return ErrUnspecified
}

// ErrorToErrno maps an error to its wire code for the reply frame.
func ErrorToErrno(err error) int32 {
	if err == nil {
		return 0
	}
	for sentinel, code := range errnoByError {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return codeUnspecified
}
