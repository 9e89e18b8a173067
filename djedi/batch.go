package djedi

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type pending struct {
	value     *string
	callbacks []Callback
}

// batch collects requests until its timer fires. A flushed batch is replaced
// by a fresh one, so requests arriving during a fetch start the next batch.
type batch struct {
	timer *time.Timer
	queue map[string]*pending
}

func newBatch() *batch {
	return &batch{queue: make(map[string]*pending)}
}

// GetBatched resolves a node, coalescing every request made within the batch
// interval into a single fetch. Cached values are delivered synchronously;
// stale ones are delivered and refreshed as part of the next batch. With a
// batch interval of zero or less it behaves like Get.
func (c *Client) GetBatched(node Node, cb Callback) {
	c.mu.Lock()
	if c.settings.batchInterval <= 0 {
		c.mu.Unlock()
		c.Get(node, cb)
		return
	}

	key := c.normalizeLocked(node.URI)
	if e, stale, ok := c.cache.Get(key); ok {
		if stale {
			c.refreshLocked(key, node.Value, true)
		}
		c.mu.Unlock()
		cb(valueNode(e.URI, e.Value), nil)
		return
	}

	c.enqueueLocked(key, node.Value, cb)
	c.mu.Unlock()
}

// enqueueLocked adds cb to the pending batch and arms the timer on the first
// request since the last flush. The first default seen for a key is sent.
func (c *Client) enqueueLocked(key string, value *string, cb Callback) {
	b := c.batch
	p, ok := b.queue[key]
	if !ok {
		p = &pending{value: value}
		b.queue[key] = p
	}
	p.callbacks = append(p.callbacks, cb)

	if b.timer == nil {
		b.timer = time.AfterFunc(c.settings.batchInterval, func() { c.flush(b) })
	}
}

func (c *Client) flush(b *batch) {
	c.mu.Lock()
	if c.batch != b {
		// ResetState took over this batch's callbacks.
		c.mu.Unlock()
		return
	}
	c.batch = newBatch()
	c.mu.Unlock()

	nodes := make(map[string]*string, len(b.queue))
	callbacks := 0
	for key, p := range b.queue {
		nodes[key] = p.value
		callbacks += len(p.callbacks)
	}

	batchID := uuid.NewString()
	c.log.Debug().
		Str("batch_id", batchID).
		Int("nodes", len(nodes)).
		Int("callbacks", callbacks).
		Msg("flushing batch")

	_, resolved, err := c.fetch(context.Background(), nodes)
	if err != nil {
		c.log.Debug().Err(err).Str("batch_id", batchID).Msg("batch failed")
	}

	for key, p := range b.queue {
		node, nerr := deliver(resolved, key, err)
		for _, cb := range p.callbacks {
			cb(node, nerr)
		}
	}
}
