package audit

import "sync"

// ringBuffer is a bounded, thread-safe buffer for security events awaiting
// flush. When full, the oldest events are dropped to make room for new ones:
// losing an old diagnostic beats blocking a request or growing without bound.
type ringBuffer struct {
	mu       sync.Mutex
	events   []SecurityEvent
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &ringBuffer{
		events:   make([]SecurityEvent, capacity),
		capacity: capacity,
	}
}

// enqueue adds an event, dropping the oldest if the buffer is full.
func (b *ringBuffer) enqueue(event SecurityEvent) (droppedOldest bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		droppedOldest = true
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return droppedOldest
}

// dequeueBatch removes up to n events from the buffer, oldest first.
func (b *ringBuffer) dequeueBatch(n int) []SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]SecurityEvent, n)
	for i := range n {
		result[i] = b.events[b.tail]
		b.events[b.tail] = SecurityEvent{} // release Details for GC
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) droppedTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
