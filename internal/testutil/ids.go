package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable UUID-shaped ids for tests:
//
//	00000000-0000-0000-0000-000000000001
//	00000000-0000-0000-0000-000000000002
//	...
//
// Runs use it for their run id, uuid() results and blank node labels, so
// the same scenario produces byte-identical output.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceIDs creates a generator whose first id ends in 1.
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.seq)
}

// Reset restarts the sequence. After Reset, the next id ends in 1.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
