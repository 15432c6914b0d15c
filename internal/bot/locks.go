package bot

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// conversationLocks hands out a weighted semaphore of one per conversation
// id, serializing in-flight turns so overlapping deliveries for the same
// conversation cannot interleave their history reads. Entries are never
// reaped; the conversation population is operator-seeded and small.
type conversationLocks struct {
	mu     sync.Mutex
	leases map[int64]*semaphore.Weighted
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{leases: make(map[int64]*semaphore.Weighted)}
}

func (l *conversationLocks) lease(id int64) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.leases[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.leases[id] = sem
	}
	return sem
}
