package chat

import "sync"

// TurnGuard enforces at most one in-flight turn per character. The turn
// service itself does not serialize callers; transports acquire before
// starting a turn and release when it ends, whatever the outcome.
type TurnGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewTurnGuard returns an empty guard.
func NewTurnGuard() *TurnGuard {
	return &TurnGuard{active: make(map[string]struct{})}
}

// TryAcquire reserves characterID for a turn. It reports false when a turn
// is already running for that character.
func (g *TurnGuard) TryAcquire(characterID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[characterID]; busy {
		return false
	}
	g.active[characterID] = struct{}{}
	return true
}

// Release frees characterID for the next turn.
func (g *TurnGuard) Release(characterID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, characterID)
}
