package attach

import "sync"

// PathLock serializes check-then-act sequences on a filesystem path within
// this process. Keys are resolved absolute paths, so a folder create, a
// rename targeting it and an upload into it all contend on the same mutex.
type PathLock struct {
	mu    sync.Mutex
	locks map[string]*pathEntry
}

type pathEntry struct {
	mu   sync.Mutex
	refs int
}

func NewPathLock() *PathLock {
	return &PathLock{locks: make(map[string]*pathEntry)}
}

// Lock acquires the mutex for key and returns its unlock func.
func (l *PathLock) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &pathEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
