package processor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestConcLimiter(t *testing.T) {
	c := NewConcLimiter(2)

	var inFlight int32
	var peak int32
	for i := 0; i < 8; i++ {
		c.Increase()
		go func() {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			c.Decrease()
		}()
	}
	c.Wait()

	if atomic.LoadInt32(&inFlight) != 0 {
		t.Errorf("conc limiter wait test failed, %d tasks still in flight", atomic.LoadInt32(&inFlight))
	}
	if atomic.LoadInt32(&peak) > 2 {
		t.Errorf("conc limiter cap test failed, peak concurrency %d", atomic.LoadInt32(&peak))
	}
}
