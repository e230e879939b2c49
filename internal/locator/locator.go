// Package locator resolves the identity of the file server. Exactly one file
// server exists for the lifetime of a client process, so a successful
// resolution is cached and never repeated, and a failed lookup is not
// retryable.
package locator

import "context"

type Locator interface {
	// Resolve returns the server address. The first call may perform a
	// lookup; subsequent calls return the cached result.
	Resolve(ctx context.Context) (string, error)
}

// StaticLocator returns a fixed, configuration-supplied address.
type StaticLocator struct {
	address string
}

func NewStaticLocator(address string) *StaticLocator {
	return &StaticLocator{address: address}
}

func (l *StaticLocator) Resolve(ctx context.Context) (string, error) {
	if l.address == "" {
		return "", ErrServerNotFound
	}
	return l.address, nil
}

var _ Locator = (*StaticLocator)(nil)
