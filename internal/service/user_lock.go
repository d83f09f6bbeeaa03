package service

import "sync"

// UserLock serializes habit and streak writes for one user. The bot loop
// already processes a user's updates one at a time, but the mini-app API
// mutates the same rows from HTTP goroutines, so both paths must share
// one lock instance.
type UserLock struct {
	shards [64]sync.Mutex
}

func NewUserLock() *UserLock {
	return &UserLock{}
}

func (l *UserLock) Lock(userID int64) {
	l.shards[uint64(userID)%uint64(len(l.shards))].Lock()
}

func (l *UserLock) Unlock(userID int64) {
	l.shards[uint64(userID)%uint64(len(l.shards))].Unlock()
}
