package memory

import (
	"context"
	"sync"
	"time"

	"chaos-story-service/internal/domain"
)

const DefaultLockTimeout = 15 * time.Second

// Locker is a keyed mutex for a single process. Entries are reference
// counted and dropped once nobody holds or waits for the key.
type Locker struct {
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewLocker(timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Locker{timeout: timeout, locks: make(map[string]*keyLock)}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	kl := l.ref(key)

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case kl.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.sem
				l.unref(key, kl)
			})
		}, nil
	case <-timer.C:
		l.unref(key, kl)
		return nil, domain.ErrBusy
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, ctx.Err()
	}
}

func (l *Locker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *Locker) unref(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Held reports how many keys currently have holders or waiters.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
