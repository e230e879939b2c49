package communication

import "errors"

var (
	// Server startup/shutdown errors
	ErrServerStartFailed = errors.New("failed to start server")
	ErrServerStopFailed  = errors.New("failed to stop server")
	ErrHandlerNotSet     = errors.New("exchange handler not set")

	// Client connection errors
	ErrConnectionFailed = errors.New("failed to connect to server")

	// Exchange errors
	ErrExchangeFailed  = errors.New("exchange failed")
	ErrShortFrame      = errors.New("truncated frame")
	ErrOpcodeMismatch  = errors.New("reply opcode does not match request")
	ErrListenerStopped = errors.New("listener stopped")
)
