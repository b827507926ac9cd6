package tokens

import (
	"hash/fnv"
	"slices"
	"sync"
)

const lockStripes = 256

// stripedLocks maps keys onto a fixed set of mutexes.
type stripedLocks struct {
	mu [lockStripes]sync.RWMutex
}

func (s *stripedLocks) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % lockStripes)
}

func (s *stripedLocks) lock(key string) func() {
	m := &s.mu[s.index(key)]
	m.Lock()
	return m.Unlock
}

func (s *stripedLocks) rlock(key string) func() {
	m := &s.mu[s.index(key)]
	m.RLock()
	return m.RUnlock
}

// lockAll takes the write lock for every key, in stripe order.
func (s *stripedLocks) lockAll(keys []string) func() {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, s.index(k))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		s.mu[i].Lock()
	}

	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			s.mu[idx[i]].Unlock()
		}
	}
}
