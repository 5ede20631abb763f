// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import (
	"sync"
	"testing"
)

func TestLockedQueueConcurrentProducersSingleConsumer(t *testing.T) {
	q, err := New().BuildLocked()
	if err != nil {
		t.Fatalf("BuildLocked: %v", err)
	}
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := Push(q, i); err != nil {
					t.Errorf("push: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := TryConsume[int](q); !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Fatalf("got %d elements, want %d", count, producers*perProducer)
	}
	if !q.Empty() {
		t.Fatal("expected empty() true after full drain")
	}
}

func TestSpinlockQueueConcurrentProducersSingleConsumer(t *testing.T) {
	q, err := New().BuildSpinlock()
	if err != nil {
		t.Fatalf("BuildSpinlock: %v", err)
	}
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := Push(q, i); err != nil {
					t.Errorf("push: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := TryConsume[int](q); !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Fatalf("got %d elements, want %d", count, producers*perProducer)
	}
	if !q.Empty() {
		t.Fatal("expected empty() true after full drain")
	}
}

func TestBuilderPageSizeRoundsAndValidates(t *testing.T) {
	q, err := New().PageSize(5000).BuildSingleThreaded()
	if err != nil {
		t.Fatalf("BuildSingleThreaded: %v", err)
	}
	if got := q.Allocator(); got == nil {
		t.Fatal("expected a non-nil allocator")
	}
	if got := q.Allocator().pageSize; got != 8192 {
		t.Fatalf("expected PageSize(5000) to round up to 8192, got %d", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected PageSize below 4096 to panic")
		}
	}()
	New().PageSize(100)
}
