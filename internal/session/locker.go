package session

import "sync"

// Locker hands out one mutex per customer so turns of the same customer run
// one at a time while different customers proceed in parallel. Entries are
// reference counted and dropped once nobody holds or waits on them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the customer's lock is held and returns its release func.
func (l *Locker) Lock(customerID string) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.locks[customerID]
	if !ok {
		kl = &keyedLock{}
		l.locks[customerID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.mu.Unlock()
			l.mu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(l.locks, customerID)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports how many customers currently have a lock entry.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
