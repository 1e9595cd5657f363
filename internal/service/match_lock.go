package service

import "sync"

// ticketLock is a mutex that admits waiters in the order they called Lock.
// Intents on one match are therefore applied in arrival order.
type ticketLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func newTicketLock() *ticketLock {
	l := &ticketLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *ticketLock) Lock() {
	l.mu.Lock()
	ticket := l.next
	l.next++
	for ticket != l.serving {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

func (l *ticketLock) Unlock() {
	l.mu.Lock()
	l.serving++
	l.mu.Unlock()
	l.cond.Broadcast()
}

// queued returns the number of holders and waiters.
func (l *ticketLock) queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.next - l.serving)
}
