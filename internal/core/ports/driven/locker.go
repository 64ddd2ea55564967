package driven

import "context"

// SessionLocker serialises chat turns per session so that message
// append order is well defined. Different sessions never block each other.
type SessionLocker interface {
	// Lock blocks until the session is free or ctx is done.
	// The returned function releases the lock and is safe to call once.
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)

	// Close releases resources.
	Close() error
}
