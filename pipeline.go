package redistmpl

// pipelineTracker counts appended commands whose replies have not been drained
type pipelineTracker struct {
	depth int
}

// Push records one appended command
func (p *pipelineTracker) Push() {
	p.depth++
}

// Pop records one drained reply and returns the depth before it was
// decremented. ok is false when nothing is pending.
func (p *pipelineTracker) Pop() (before int, ok bool) {
	if p.depth == 0 {
		return 0, false
	}
	before = p.depth
	p.depth--
	return before, true
}

// Reset discards every pending count
func (p *pipelineTracker) Reset() {
	p.depth = 0
}

// Depth returns the number of pending replies
func (p *pipelineTracker) Depth() int {
	return p.depth
}
