package model

import (
	"sync"
	"time"
)

// IDClock hands out task ids derived from the wall clock in milliseconds.
// Ids never repeat within a process: when the clock has not moved, or moved
// backwards, the next id is the previous one plus one. That is what keeps a
// bulk import created inside one millisecond collision free.
type IDClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewIDClock() *IDClock {
	return &IDClock{now: time.Now}
}

// NewIDClockAt returns a clock reading from now, for tests.
func NewIDClockAt(now func() time.Time) *IDClock {
	return &IDClock{now: now}
}

func (c *IDClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.now().UnixMilli()
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id
}

// Observe makes sure future ids are greater than an id already in use, so
// ids loaded from the store are never handed out again.
func (c *IDClock) Observe(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id > c.last {
		c.last = id
	}
}
