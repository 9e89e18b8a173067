package djedi

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderedNodesAreReferenceCounted(t *testing.T) {
	sink := NewMapSink()
	c, err := New(WithSink(sink))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c.ReportRenderedNode(Node{URI: "home/title", Value: String("Hello")})
	}
	c.ReportRemovedNode("home/title")
	c.ReportRemovedNode("i18n://en-us@home/title.txt")

	want := map[string]*string{"i18n://en-us@home/title.txt": String("Hello")}
	assert.Equal(t, want, c.RenderedNodes())
	assert.Equal(t, want, sink.Snapshot())

	c.ReportRemovedNode("home/title")
	assert.Empty(t, c.RenderedNodes())
	assert.Empty(t, sink.Snapshot())

	// Removing an unknown node is a no-op.
	c.ReportRemovedNode("home/title")
	c.ReportRemovedNode("never/rendered")
	assert.Empty(t, c.RenderedNodes())
}

func TestRenderedNodesIgnoreVersion(t *testing.T) {
	sink := NewMapSink()
	c, err := New(WithSink(sink))
	require.NoError(t, err)

	c.ReportRenderedNode(Node{URI: "a#1"})
	c.ReportRenderedNode(Node{URI: "a#2"})
	assert.Equal(t, map[string]*string{"i18n://en-us@a.txt": nil}, sink.Snapshot())

	c.ReportRemovedNode("a")
	assert.Len(t, c.RenderedNodes(), 1)
	c.ReportRemovedNode("a#7")
	assert.Empty(t, c.RenderedNodes())
}

func TestRenderedNodeLastDefaultWins(t *testing.T) {
	sink := NewMapSink()
	c, err := New(WithSink(sink))
	require.NoError(t, err)

	c.ReportRenderedNode(Node{URI: "a", Value: String("first")})
	c.ReportRenderedNode(Node{URI: "a", Value: String("second")})

	assert.Equal(t, "second", StringValue(c.RenderedNodes()["i18n://en-us@a.txt"]))
	assert.Equal(t, "second", StringValue(sink.Snapshot()["i18n://en-us@a.txt"]))

	c.ReportRemovedNode("a")
	assert.Equal(t, "second", StringValue(sink.Snapshot()["i18n://en-us@a.txt"]))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	c, err := New(WithSink(LogSink{Log: zerolog.New(&buf)}))
	require.NoError(t, err)

	c.ReportRenderedNode(Node{URI: "a", Value: String("A")})
	c.ReportRemovedNode("a")

	out := buf.String()
	assert.Contains(t, out, `"message":"node rendered"`)
	assert.Contains(t, out, `"default":"A"`)
	assert.Contains(t, out, `"message":"node removed"`)
	assert.Contains(t, out, `"uri":"i18n://en-us@a.txt"`)
}
