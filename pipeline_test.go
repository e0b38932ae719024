package redistmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineTracker(t *testing.T) {
	var p pipelineTracker

	_, ok := p.Pop()
	assert.False(t, ok, "nothing pending")
	assert.Equal(t, 0, p.Depth())

	p.Push()
	p.Push()
	p.Push()

	before, ok := p.Pop()
	assert.True(t, ok)
	assert.Equal(t, 3, before)
	assert.Equal(t, 2, p.Depth())

	p.Pop()
	p.Pop()
	_, ok = p.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, p.Depth(), "depth never goes negative")

	p.Push()
	p.Reset()
	assert.Equal(t, 0, p.Depth())
}
