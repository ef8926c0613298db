package chat

// History is a bounded FIFO of messages kept in arrival order. Once full,
// every append evicts the oldest message.
//
// History is not safe for concurrent use; the Engine serializes access.
type History struct {
	buf   []Message
	start int
	size  int
}

// NewHistory returns an empty history holding at most capacity messages.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{buf: make([]Message, capacity)}
}

// Append stores m as the newest message.
func (h *History) Append(m Message) {
	capacity := len(h.buf)
	if h.size < capacity {
		h.buf[(h.start+h.size)%capacity] = m
		h.size++
		return
	}
	h.buf[h.start] = m
	h.start = (h.start + 1) % capacity
}

// Recent returns the last min(n, Len()) messages, oldest first. The result is
// never nil.
func (h *History) Recent(n int) []Message {
	if n > h.size {
		n = h.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]Message, n)
	capacity := len(h.buf)
	first := h.start + h.size - n
	for i := 0; i < n; i++ {
		out[i] = h.buf[(first+i)%capacity]
	}
	return out
}

// Len returns the number of stored messages.
func (h *History) Len() int { return h.size }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }
