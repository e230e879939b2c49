package locator

import "errors"

var (
	ErrServerNotFound      = errors.New("file server not found")
	ErrRegistryUnavailable = errors.New("server registry unavailable")
)
