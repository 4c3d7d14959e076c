package store

import (
	"hash/fnv"
	"sync"
)

// KeyMutex serializes writes per key with a fixed pool of striped locks.
// The credential store's read-then-patch-then-write pattern for auxiliary
// key sets is not atomic on its own; rapid successive rotations for the
// same (tenant, bot) must not lose updates. Different keys rarely contend
// because they hash to different stripes.
type KeyMutex struct {
	stripes [64]sync.Mutex
}

// Lock acquires the stripe for key and returns its unlock func.
func (k *KeyMutex) Lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%uint32(len(k.stripes))]
	m.Lock()
	return m.Unlock
}
