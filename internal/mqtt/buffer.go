package mqtt

import "log"

// bufferedMsg is a serialized publish held until the broker is reachable.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO; when full the oldest message is overwritten.
// Not safe for concurrent use. RealPublisher guards it with its mutex.
type ringBuffer struct {
	slots   []bufferedMsg
	next    int // slot the next push writes
	count   int
	warned  bool // overflow logged since the last drain
	dropped int  // messages overwritten since creation
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{slots: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.slots)
	if r.count == size {
		if !r.warned {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", size)
			r.warned = true
		}
		r.dropped++
	} else {
		r.count++
	}
	r.slots[r.next] = msg
	r.next = (r.next + 1) % size
}

// drainAll returns buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	size := len(r.slots)
	first := (r.next - r.count + size) % size
	out := make([]bufferedMsg, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.slots[(first+i)%size])
	}

	r.next, r.count, r.warned = 0, 0, false
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
