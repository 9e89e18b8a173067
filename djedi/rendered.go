package djedi

type renderedNode struct {
	value     *string
	instances int
}

// ReportRenderedNode records one more on-screen instance of a node. Instances
// are counted per versionless URI. A different default replaces the published
// one.
//
// The sink is called with the client lock held and must not call back into
// the client.
func (c *Client) ReportRenderedNode(node Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.versionlessLocked(node.URI)
	r, ok := c.rendered[key]
	if !ok {
		r = &renderedNode{value: node.Value}
		c.rendered[key] = r
		c.sink.Publish(key, node.Value)
	} else if !sameValue(r.value, node.Value) {
		r.value = node.Value
		c.sink.Publish(key, node.Value)
	}
	r.instances++
}

// ReportRemovedNode records that one instance of a node left the screen. The
// node is unpublished when its last instance goes. Unknown URIs are ignored.
func (c *Client) ReportRemovedNode(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.versionlessLocked(raw)
	r, ok := c.rendered[key]
	if !ok {
		return
	}
	r.instances--
	if r.instances <= 0 {
		delete(c.rendered, key)
		c.sink.Unpublish(key)
	}
}

// RenderedNodes returns the versionless URI and default of every node on
// screen.
func (c *Client) RenderedNodes() map[string]*string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*string, len(c.rendered))
	for key, r := range c.rendered {
		out[key] = r.value
	}
	return out
}
