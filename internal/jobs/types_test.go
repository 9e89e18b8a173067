package jobs

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmNodesTaskRoundTrip(t *testing.T) {
	def := "Welcome"
	task, err := NewWarmNodesTask(map[string]*string{
		"i18n://en-us@home/title.txt": &def,
		"i18n://en-us@home/body.md":   nil,
	})
	require.NoError(t, err)
	assert.Equal(t, TaskWarmNodes, task.Type())
	assert.JSONEq(t, `{"nodes":{"i18n://en-us@home/title.txt":"Welcome","i18n://en-us@home/body.md":null}}`, string(task.Payload()))

	p, err := ParseWarmNodesPayload(task)
	require.NoError(t, err)
	require.Len(t, p.Nodes, 2)
	assert.Equal(t, "Welcome", *p.Nodes["i18n://en-us@home/title.txt"])
	assert.Nil(t, p.Nodes["i18n://en-us@home/body.md"])
}

func TestWarmNodesTaskErrors(t *testing.T) {
	_, err := NewWarmNodesTask(nil)
	assert.Error(t, err)

	_, err = ParseWarmNodesPayload(asynq.NewTask(TaskWarmNodes, []byte("{")))
	assert.Error(t, err)
}
