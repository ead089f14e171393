package fixpoint

import "github.com/speakeasy-api/annotator/flowgraph"

// blockWorklist is the FIFO queue of blocks waiting to be evaluated. A block
// is queued at most once at a time; pushing a queued block is a no-op.
type blockWorklist struct {
	blocks []flowgraph.BlockKey
	queued map[flowgraph.BlockKey]bool
	pushes int
}

func newBlockWorklist() *blockWorklist {
	return &blockWorklist{
		blocks: make([]flowgraph.BlockKey, 0, 32),
		queued: make(map[flowgraph.BlockKey]bool),
	}
}

// push adds a block to the worklist. It reports false when the block was
// already pending.
func (w *blockWorklist) push(k flowgraph.BlockKey) bool {
	if w.queued[k] {
		return false
	}
	w.queued[k] = true
	w.blocks = append(w.blocks, k)
	w.pushes++
	return true
}

// pop removes and returns the oldest pending block.
func (w *blockWorklist) pop() (flowgraph.BlockKey, bool) {
	if len(w.blocks) == 0 {
		return flowgraph.BlockKey{}, false
	}
	k := w.blocks[0]
	w.blocks = w.blocks[1:]
	delete(w.queued, k)
	return k, true
}

func (w *blockWorklist) isEmpty() bool {
	return len(w.blocks) == 0
}

func (w *blockWorklist) len() int {
	return len(w.blocks)
}
