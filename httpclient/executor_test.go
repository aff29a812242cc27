package httpclient

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSerialExecutorOrder(t *testing.T) {
	e := NewSerialExecutor()
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		e.Execute(func() {
			defer wg.Done()
			got = append(got, i)
		})
	}
	wg.Wait()
	e.Close()
	for i, v := range got {
		if v != i {
			t.Fatalf("callback %d ran at position %d", v, i)
		}
	}
}

func TestSerialExecutorAfterClose(t *testing.T) {
	e := NewSerialExecutor()
	e.Close()
	ran := make(chan struct{})
	e.Execute(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("callback submitted after Close never ran")
	}
}

func TestPoolExecutorBound(t *testing.T) {
	e := NewPoolExecutor(2)
	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		e.Execute(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()
	e.Close()
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}

	ran := make(chan struct{})
	e.Execute(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("callback submitted after Close never ran")
	}
}
