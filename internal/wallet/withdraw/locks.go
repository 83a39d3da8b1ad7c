package withdraw

import (
	"fmt"
	"strings"
	"sync"
)

// senderLocks serializes withdrawals per (sender, chain). Without it two
// concurrent withdrawals from the same sender would both read the same
// pending nonce from the node and one would be rejected or silently
// replaced at the network layer.
type senderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSenderLocks() *senderLocks {
	return &senderLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the (sender, chain) key and returns the unlock func.
func (l *senderLocks) acquire(sender string, chainID int64) func() {
	key := fmt.Sprintf("%s@%d", strings.ToLower(sender), chainID)

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
