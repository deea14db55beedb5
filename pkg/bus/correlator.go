package bus

import (
	"fmt"
	"log/slog"
	"sync"
)

// correlator matches inbound replies to waiting sessions by session id.
// At most one waiter may exist per session id; replies with no matching
// waiter (stale or duplicate) are dropped.
type correlator struct {
	mu      sync.Mutex
	waiters map[string]chan VoiceReply
	logger  *slog.Logger
}

func newCorrelator(logger *slog.Logger) *correlator {
	return &correlator{
		waiters: make(map[string]chan VoiceReply),
		logger:  logger,
	}
}

// register creates a waiter for the session id.
// The returned channel has capacity 1 so resolve never blocks.
func (c *correlator) register(sessionID string) (<-chan VoiceReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.waiters[sessionID]; exists {
		return nil, fmt.Errorf("bus: waiter already registered for session %s", sessionID)
	}

	ch := make(chan VoiceReply, 1)
	c.waiters[sessionID] = ch
	return ch, nil
}

// remove discards the waiter for the session id, if any.
// A reply arriving after removal is dropped by resolve.
func (c *correlator) remove(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, sessionID)
}

// resolve delivers a reply to its waiter.
// Returns false if no waiter matched and the reply was dropped.
func (c *correlator) resolve(reply VoiceReply) bool {
	c.mu.Lock()
	ch, ok := c.waiters[reply.SessionID]
	if ok {
		delete(c.waiters, reply.SessionID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Info("dropping reply with no waiter",
			"session_id", reply.SessionID,
		)
		return false
	}

	ch <- reply
	return true
}

// pending returns the number of registered waiters.
func (c *correlator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
