package cmap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAcquire(t *testing.T) {
	m := New[int]()

	e, inserted := m.Insert("a", 1)
	require.True(t, inserted)
	assert.Equal(t, 1, e.Value)
	e.Value = 2
	e.Release()

	e, inserted = m.Insert("a", 99)
	require.False(t, inserted, "second insert must keep the stored value")
	assert.Equal(t, 2, e.Value)
	e.Release()

	e, ok := m.Acquire("a")
	require.True(t, ok)
	assert.Equal(t, 2, e.Value)
	e.Release()

	_, ok = m.Acquire("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestConcurrentInsertCountsOnce(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	var insertions sync.Map

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i)
				e, inserted := m.Insert(key, w)
				if inserted {
					if _, loaded := insertions.LoadOrStore(key, w); loaded {
						t.Errorf("key %s inserted twice", key)
					}
				}
				e.Release()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 100, m.Len())
}

func TestDisjointKeysDoNotBlock(t *testing.T) {
	m := New[int]()
	a, _ := m.Insert("a", 1)
	defer a.Release()

	// Holding "a" must not prevent acquiring "b".
	done := make(chan struct{})
	go func() {
		b, _ := m.Insert("b", 2)
		b.Release()
		close(done)
	}()
	<-done
}

func TestRange(t *testing.T) {
	m := New[int]()
	for i := 0; i < 10; i++ {
		e, _ := m.Insert(fmt.Sprintf("k%d", i), i)
		e.Release()
	}

	seen := map[string]int{}
	m.Range(func(key string, e *Entry[int]) bool {
		seen[key] = e.Value
		return true
	})
	assert.Len(t, seen, 10)
}
