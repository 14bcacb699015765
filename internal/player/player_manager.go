package player

import (
	"sync"
)

// PlayerManager is the session registry: one Session per guild, created on
// first access and kept for the lifetime of the process unless removed.
type PlayerManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	defaultVolume func(guildID string) int
}

type ManagerOption func(*PlayerManager)

// WithDefaultVolume sets the lookup used to seed the volume of new sessions.
// It is called without the registry lock held.
func WithDefaultVolume(fn func(guildID string) int) ManagerOption {
	return func(pm *PlayerManager) { pm.defaultVolume = fn }
}

func NewPlayerManager(opts ...ManagerOption) *PlayerManager {
	pm := &PlayerManager{sessions: make(map[string]*Session)}
	for _, o := range opts {
		o(pm)
	}
	return pm
}

func (pm *PlayerManager) Get(guildID string) *Session {
	if s := pm.Peek(guildID); s != nil {
		return s
	}

	// settings lookups can block, so resolve the volume outside the lock
	vol := DefaultVolume
	if pm.defaultVolume != nil {
		vol = pm.defaultVolume(guildID)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if s, ok := pm.sessions[guildID]; ok {
		return s
	}
	s := newSession(guildID, vol)
	pm.sessions[guildID] = s
	return s
}

func (pm *PlayerManager) Peek(guildID string) *Session {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.sessions[guildID]
}

// Remove forgets the guild's session. Callers are expected to have stopped it.
func (pm *PlayerManager) Remove(guildID string) *Session {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	s := pm.sessions[guildID]
	delete(pm.sessions, guildID)
	return s
}

func (pm *PlayerManager) Len() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.sessions)
}
