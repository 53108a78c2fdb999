package packet

// UnsentPacketQueue tracks the chain of buffers holding bytes that have not
// yet been handed to the socket.
type UnsentPacketQueue struct {
	first *PacketBuffer
	last  *PacketBuffer
}

// Empty reports whether any unsent bytes remain.
func (q *UnsentPacketQueue) Empty() bool {
	return q.first == nil || q.first.BytesSent == q.first.BytesWritten && q.first.next == nil
}

// GetWriteBuffer returns the tail buffer to serialize into, allocating the
// chain's first buffer on demand.
func (q *UnsentPacketQueue) GetWriteBuffer() *PacketBuffer {
	if q.last == nil {
		q.first = NewPacketBuffer()
		q.last = q.first
	}
	return q.last
}

// SetWriteBuffer records the new tail after a PacketWriter extended the
// chain.
func (q *UnsentPacketQueue) SetWriteBuffer(b *PacketBuffer) { q.last = b }

// PrependWriteBuffer pushes a rewritten chain (from ReliablePacketList
// compaction or resend) in front of the unsent bytes.
func (q *UnsentPacketQueue) PrependWriteBuffer(first, last *PacketBuffer) {
	last.next = q.first
	q.first = first
	if q.last == nil {
		q.last = last
	}
}

// Sent advances the sent watermark by bytes, releasing buffers that became
// fully sent. The tail buffer is retained while it still has unwritten
// capacity so serialization can continue into it.
func (q *UnsentPacketQueue) Sent(bytes int) {
	for bytes > 0 {
		b := q.first
		if b == nil {
			panic("packet: Sent past the end of the unsent queue")
		}
		unsent := b.BytesWritten - b.BytesSent
		if bytes < unsent || bytes == unsent && b.next == nil && b.BytesUnwritten() > 0 {
			b.BytesSent += bytes
			return
		}
		bytes -= unsent
		b.BytesSent = b.BytesWritten
		q.first = b.next
		if q.first == nil {
			q.last = nil
		}
		b.DelRef()
	}
}

// DiscardAll releases the whole chain.
func (q *UnsentPacketQueue) DiscardAll() {
	for q.first != nil {
		n := q.first.next
		q.first.DelRef()
		q.first = n
	}
	q.last = nil
}

// ReliablePacket describes one fragment of a logical packet that must be
// retransmittable until acknowledged: a byte range [Begin, End) of a buffer.
// Fragments of one logical packet that spans buffer boundaries are chained
// through Cont; logical packets are linked into a ReliablePacketList through
// prev/next.
type ReliablePacket struct {
	Buffer *PacketBuffer
	Begin  int
	End    int

	Cont       *ReliablePacket
	prev, next *ReliablePacket
}

// insertBefore links r into the list immediately before p.
func (r *ReliablePacket) insertBefore(p *ReliablePacket) {
	r.next = p
	r.prev = p.prev
	r.prev.next = r
	r.next.prev = r
}

// Remove unlinks the logical packet and releases every fragment's buffer
// reference. Called when the packet is acknowledged.
func (r *ReliablePacket) Remove() {
	r.next.prev = r.prev
	r.prev.next = r.next
	for c := r; c != nil; {
		n := c.Cont
		c.Buffer.DelRef()
		c.Buffer = nil
		c = n
	}
}

// ReliablePacketList is the doubly linked list of sent-but-unacknowledged
// reliable packets, in send order.
type ReliablePacketList struct {
	sentinel ReliablePacket
}

// NewReliablePacketList returns an empty list.
func NewReliablePacketList() *ReliablePacketList {
	l := &ReliablePacketList{}
	l.sentinel.prev = &l.sentinel
	l.sentinel.next = &l.sentinel
	return l
}

// Insert appends a logical packet to the list.
func (l *ReliablePacketList) Insert(r *ReliablePacket) {
	r.insertBefore(&l.sentinel)
}

// Empty reports whether any unacknowledged packets remain.
func (l *ReliablePacketList) Empty() bool { return l.sentinel.next == &l.sentinel }

// Compact rewrites the reliable ranges into the chain starting at into,
// stopping when a fragment referencing end (the unsent range) is reached, so
// the original buffers can be released. A fragment larger than the remaining
// space of the target buffer is split: the tail becomes a new Cont fragment
// still pointing at the old buffer, which the same loop then compacts into a
// fresh target buffer. Returns the new chain tail.
func (l *ReliablePacketList) Compact(into *PacketBuffer, end *PacketBuffer) *PacketBuffer {
	for r := l.sentinel.next; r != &l.sentinel; r = r.next {
		for c := r; c != nil; c = c.Cont {
			if c.Buffer == end {
				return into
			}
			if into.BytesWritten == DataSize {
				into.next = NewPacketBuffer()
				into = into.next
			}

			data := c.Buffer.Data[c.Begin:c.End]
			n := len(data)
			if n > into.BytesUnwritten() {
				// Split this fragment at the target buffer boundary.
				n = into.BytesUnwritten()
				tail := &ReliablePacket{
					Cont:   c.Cont,
					Buffer: c.Buffer,
					Begin:  c.Begin + n,
					End:    c.End,
				}
				tail.Buffer.AddRef()
				c.Cont = tail
			}

			copy(into.Data[into.BytesWritten:], data[:n])
			c.Buffer.DelRef()
			c.Buffer = into
			into.AddRef()
			c.Begin = into.BytesWritten
			into.BytesWritten += n
			c.End = into.BytesWritten
		}
	}
	return into
}

// DiscardAll acknowledges everything, releasing all fragment references.
func (l *ReliablePacketList) DiscardAll() {
	for !l.Empty() {
		l.sentinel.next.Remove()
	}
}
