package filestore

import "sync"

// sessionLocks hands out one RW lock per session directory. Uploads, reads
// and deletes share the read side; the purge sweep needs the write side.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.RWMutex)}
}

func (l *sessionLocks) get(sessionID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sync.RWMutex{}
		l.locks[sessionID] = lock
	}
	return lock
}

// forget drops the entry once the session directory is gone. A caller that
// grabbed the lock earlier keeps a stale pointer, which is harmless.
func (l *sessionLocks) forget(sessionID string, lock *sync.RWMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[sessionID] == lock {
		delete(l.locks, sessionID)
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
