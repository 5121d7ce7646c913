package client

// pendingFrame is one encoded envelope waiting for a connection.
type pendingFrame struct {
	frame   []byte
	msgType string
}

// outboundQueue holds intents sent while disconnected. Bounded; overflow
// drops the oldest entry so the freshest intents survive a long outage.
type outboundQueue struct {
	entries []pendingFrame
	cap     int
}

func newOutboundQueue(capacity int) *outboundQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &outboundQueue{cap: capacity}
}

// push appends a frame. When full it evicts the oldest entry first and
// reports what was dropped.
func (q *outboundQueue) push(frame []byte, msgType string) (dropped bool, droppedType string) {
	if len(q.entries) >= q.cap {
		droppedType = q.entries[0].msgType
		q.entries = q.entries[1:]
		dropped = true
	}
	q.entries = append(q.entries, pendingFrame{frame: frame, msgType: msgType})
	return dropped, droppedType
}

// drain empties the queue and returns the entries oldest first.
func (q *outboundQueue) drain() []pendingFrame {
	entries := q.entries
	q.entries = nil
	return entries
}

// requeue puts frames back at the front, preserving their original order.
func (q *outboundQueue) requeue(entries []pendingFrame) {
	if len(entries) == 0 {
		return
	}
	q.entries = append(entries, q.entries...)
	for len(q.entries) > q.cap {
		q.entries = q.entries[1:]
	}
}

func (q *outboundQueue) len() int {
	return len(q.entries)
}
