package processor

import (
	"sync"
)

// ConcLimiter caps how many decode granules a pipeline stage keeps in
// flight at once. Increase blocks once the cap is reached, Wait blocks
// until every acquired slot has been released.
type ConcLimiter struct {
	wg    sync.WaitGroup
	slots chan struct{}
}

func NewConcLimiter(cLevel int) *ConcLimiter {
	if cLevel < 1 {
		cLevel = 1
	}
	return &ConcLimiter{slots: make(chan struct{}, cLevel)}
}

func (c *ConcLimiter) Increase() {
	c.wg.Add(1)
	c.slots <- struct{}{}
}

func (c *ConcLimiter) Decrease() {
	select {
	case <-c.slots:
		c.wg.Done()
	default:
	}
}

func (c *ConcLimiter) Wait() {
	c.wg.Wait()
}
