package journal

import (
	"sync"
	"testing"
	"time"
)

// collectingFlush records every callback invocation.
type collectingFlush struct {
	mu      sync.Mutex
	batches [][][]byte
	ticks   int // nil flushes
}

func (c *collectingFlush) fn(records [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if records == nil {
		c.ticks++
		return
	}
	c.batches = append(c.batches, records)
}

func (c *collectingFlush) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func TestBatcher_FlushesAtCapacity(t *testing.T) {
	var got collectingFlush
	b := newBatcher(3, 0, got.fn)
	defer b.close()

	for i := 0; i < 3; i++ {
		if !b.put([]byte{byte('a' + i)}) {
			t.Fatalf("put %d rejected", i)
		}
	}

	if got.batchCount() != 1 {
		t.Fatalf("expected 1 batch, got %d", got.batchCount())
	}
	if len(got.batches[0]) != 3 {
		t.Fatalf("expected 3 records in batch, got %d", len(got.batches[0]))
	}
}

func TestBatcher_TimerFlush(t *testing.T) {
	var got collectingFlush
	b := newBatcher(0, 20*time.Millisecond, got.fn)
	defer b.close()

	b.put([]byte("one"))

	deadline := time.Now().Add(2 * time.Second)
	for got.batchCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timer flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBatcher_EmptyTimerFlushIsLivenessTick(t *testing.T) {
	var got collectingFlush
	b := newBatcher(0, 10*time.Millisecond, got.fn)
	defer b.close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got.mu.Lock()
		ticks := got.ticks
		got.mu.Unlock()
		if ticks > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("empty flush tick never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got.batchCount() != 0 {
		t.Fatalf("expected no record batches, got %d", got.batchCount())
	}
}

func TestBatcher_CloseFlushesRemainder(t *testing.T) {
	var got collectingFlush
	b := newBatcher(10, time.Hour, got.fn)

	b.put([]byte("tail"))
	b.close()

	if got.batchCount() != 1 {
		t.Fatalf("expected final flush, got %d batches", got.batchCount())
	}
	if b.put([]byte("late")) {
		t.Fatal("put after close was accepted")
	}
}

func TestBatcher_ConcurrentProducers(t *testing.T) {
	var mu sync.Mutex
	total := 0
	b := newBatcher(7, 5*time.Millisecond, func(records [][]byte) {
		mu.Lock()
		total += len(records)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.put([]byte("x"))
			}
		}()
	}
	wg.Wait()
	b.close()

	mu.Lock()
	defer mu.Unlock()
	if total != 400 {
		t.Fatalf("expected 400 records through the callback, got %d", total)
	}
}
