package device

import (
	"runtime"
	"sync"
	"time"
)

// DefaultCheckpointCapacity bounds the in-memory event log.
const DefaultCheckpointCapacity = 128

// Checkpoint is one entry of the device event log. The heap figures let the
// host-side monitor chart memory pressure next to camera recoveries.
type Checkpoint struct {
	Seq       uint64    `json:"seq"`
	Name      string    `json:"name"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	HeapAlloc uint64    `json:"heap_alloc"`
	HeapFree  uint64    `json:"heap_free"`
}

// Checkpoints keeps the most recent events, oldest first.
type Checkpoints struct {
	mu       sync.Mutex
	items    []Checkpoint
	capacity int
	seq      uint64
}

func NewCheckpoints(capacity int) *Checkpoints {
	if capacity <= 0 {
		capacity = DefaultCheckpointCapacity
	}
	return &Checkpoints{capacity: capacity}
}

// Add appends an event, dropping the oldest one once the log is full.
func (c *Checkpoints) Add(name, detail string) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	cp := Checkpoint{
		Seq:       c.seq,
		Name:      name,
		Detail:    detail,
		Timestamp: time.Now(),
		HeapAlloc: ms.HeapAlloc,
		HeapFree:  ms.HeapIdle - ms.HeapReleased,
	}
	if len(c.items) == c.capacity {
		copy(c.items, c.items[1:])
		c.items[len(c.items)-1] = cp
		return
	}
	c.items = append(c.items, cp)
}

// List returns a copy of the log.
func (c *Checkpoints) List() []Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Checkpoint, len(c.items))
	copy(out, c.items)
	return out
}
