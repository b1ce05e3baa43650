package bot

import "sync"

// actorLocks serializes the handling of actions from the same actor.
// Entries are dropped once nobody holds or waits for them.
type actorLocks struct {
	mu    sync.Mutex
	locks map[int64]*actorLock
}

type actorLock struct {
	mu   sync.Mutex
	refs int
}

func newActorLocks() *actorLocks {
	return &actorLocks{locks: make(map[int64]*actorLock)}
}

// lock blocks until actorID is free and returns the matching unlock.
func (l *actorLocks) lock(actorID int64) func() {
	l.mu.Lock()
	entry, ok := l.locks[actorID]
	if !ok {
		entry = &actorLock{}
		l.locks[actorID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, actorID)
		}
		l.mu.Unlock()
	}
}

func (l *actorLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
