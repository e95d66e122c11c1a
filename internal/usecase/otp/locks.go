package otp

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// keyLocks serializes operations per key. Keys hashing to the same shard share
// a mutex, which only costs throughput.
type keyLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &l.shards[h.Sum32()%lockShards]
	mu.Lock()
	return mu.Unlock
}
