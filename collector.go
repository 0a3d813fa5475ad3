package rttiscanner

// collector receives results from any number of workers and keeps the first
// RTTIInfo seen for every vtable address.
type collector struct {
	ch      chan RTTIInfo
	done    chan struct{}
	seen    map[Address]struct{}
	results []RTTIInfo
	dropped int
}

func newCollector(backlog int) *collector {
	c := &collector{
		ch:   make(chan RTTIInfo, backlog),
		done: make(chan struct{}),
		seen: make(map[Address]struct{}),
	}
	go c.run()
	return c
}

func (c *collector) run() {
	defer close(c.done)
	for info := range c.ch {
		if _, ok := c.seen[info.VTable]; ok {
			c.dropped++
			continue
		}
		c.seen[info.VTable] = struct{}{}
		c.results = append(c.results, info)
	}
}

// publish must not be called after close.
func (c *collector) publish(info RTTIInfo) {
	c.ch <- info
}

// close waits until every published result has been consumed. Callers must
// make sure all publishers have returned first.
func (c *collector) close() []RTTIInfo {
	close(c.ch)
	<-c.done
	return c.results
}
