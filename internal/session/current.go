package session

import "sync"

// Current tracks the daemon's interactive session: the one the monitor and
// manager operate on. The store may hold several historical sessions, but
// timers and modal state belong to the session that signed in last.
type Current struct {
	mu     sync.RWMutex
	id     string
	secret string
}

// NewCurrent creates an empty holder.
func NewCurrent() *Current {
	return &Current{}
}

// Set records the active session credentials.
func (c *Current) Set(id, secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	c.secret = secret
}

// Get returns the active session credentials, or ok=false when no session
// is active.
func (c *Current) Get() (id, secret string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, c.secret, c.id != ""
}

// Clear drops the active session.
func (c *Current) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = ""
	c.secret = ""
}
