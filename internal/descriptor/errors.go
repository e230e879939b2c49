package descriptor

import "errors"

var (
	ErrTableFull     = errors.New("no free descriptor slot")
	ErrBadDescriptor = errors.New("bad descriptor index")
)
