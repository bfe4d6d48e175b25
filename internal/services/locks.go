package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/interpolis/tourpoule/internal/errors"
)

// DefaultLockTimeout bounds how long a request waits for a busy participant.
const DefaultLockTimeout = 5 * time.Second

// ParticipantLocks serialises roster edits, reserve activation and commits
// per participant inside this process. Keys are always taken in ascending
// order so two callers locking overlapping sets cannot deadlock.
type ParticipantLocks struct {
	mu      sync.Mutex
	slots   map[int]chan struct{}
	timeout time.Duration
}

// NewParticipantLocks creates a lock set with the given wait timeout.
func NewParticipantLocks(timeout time.Duration) *ParticipantLocks {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &ParticipantLocks{slots: make(map[int]chan struct{}), timeout: timeout}
}

func (l *ParticipantLocks) slot(id int) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}
	return ch
}

// Lock acquires every participant in ids. On timeout it releases what it
// holds and returns a retriable error.
func (l *ParticipantLocks) Lock(ctx context.Context, ids ...int) (unlock func(), err error) {
	keys := append([]int(nil), ids...)
	sort.Ints(keys)

	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = nil
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	for i, id := range keys {
		if i > 0 && keys[i-1] == id {
			continue
		}
		ch := l.slot(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			release()
			return nil, errors.Retriable(fmt.Sprintf("team %d is being updated, try again", id), nil)
		case <-ctx.Done():
			release()
			return nil, errors.Retriable("request cancelled while waiting for team lock", ctx.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
