package keep

import "sync"

// lockTable hands out one mutex per uid. Entries are dropped once no
// goroutine holds or waits on them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*uidLock
}

type uidLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until uid is held and returns its release function.
func (t *lockTable) lock(uid string) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*uidLock)
	}
	l, ok := t.locks[uid]
	if !ok {
		l = &uidLock{}
		t.locks[uid] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, uid)
		}
		t.mu.Unlock()
	}
}

// size returns the number of live entries.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
