// Package packet implements the buffer chains and reliable packet queues of
// the network layer: singly linked packet buffers with written/sent
// watermarks, a queue of bytes not yet handed to the socket, and a list of
// sent-but-unacknowledged reliable packets that can be compacted into fresh
// buffers.
package packet

import "github.com/quarkdb/flux/alloc"

// DataSize is the payload capacity of one PacketBuffer.
const DataSize = 4096

// PacketBuffer is one fixed-size segment of an outgoing byte chain. Both the
// unsent queue and reliable packets may reference the same buffer, so buffers
// are reference counted and their storage returns to the allocator when the
// last reference drops.
//
// Invariant: 0 <= BytesSent <= BytesWritten <= DataSize.
type PacketBuffer struct {
	Data         []byte
	BytesWritten int
	BytesSent    int

	next *PacketBuffer
	refs int
}

// NewPacketBuffer returns an empty buffer with one reference.
func NewPacketBuffer() *PacketBuffer {
	raw := alloc.Allocate(DataSize)
	return &PacketBuffer{Data: raw[:DataSize], refs: 1}
}

// AddRef takes an additional reference.
func (b *PacketBuffer) AddRef() { b.refs++ }

// DelRef drops a reference, releasing the storage on the last drop.
func (b *PacketBuffer) DelRef() {
	b.refs--
	if b.refs == 0 {
		alloc.Release(b.Data)
		b.Data = nil
	}
}

// Next returns the following buffer in the chain, if any.
func (b *PacketBuffer) Next() *PacketBuffer { return b.next }

// BytesUnwritten returns the remaining payload capacity.
func (b *PacketBuffer) BytesUnwritten() int { return DataSize - b.BytesWritten }

// SplitBuffer is a write window reserved ahead of time that may span a buffer
// boundary, used for length prefixes that are only known after the payload is
// serialized.
type SplitBuffer struct {
	First  []byte
	Second []byte
}

// Write copies data into the window at the given offset.
func (s *SplitBuffer) Write(data []byte, offset int) {
	if offset < len(s.First) {
		n := copy(s.First[offset:], data)
		data = data[n:]
		offset = 0
	} else {
		offset -= len(s.First)
	}
	if len(data) > 0 {
		copy(s.Second[offset:], data)
	}
}

// PacketWriter serializes bytes into a buffer chain, optionally recording the
// written range as a reliable packet (chained through cont across buffer
// boundaries).
type PacketWriter struct {
	buffer   *PacketBuffer
	reliable *ReliablePacket
	length   int
}

// Init points the writer at the chain's tail buffer. If reliable is non-nil,
// the bytes written until Finish are recorded as one logical reliable packet.
func (w *PacketWriter) Init(buf *PacketBuffer, reliable *ReliablePacket) {
	w.buffer = buf
	w.reliable = reliable
	w.length = -buf.BytesWritten
	if reliable != nil {
		reliable.Buffer = buf
		buf.AddRef()
		reliable.Begin = buf.BytesWritten
	}
}

// Finish closes the reliable range and returns the tail buffer.
func (w *PacketWriter) Finish() *PacketBuffer {
	if w.reliable != nil {
		w.reliable.Cont = nil
		w.reliable.End = w.buffer.BytesWritten
	}
	return w.buffer
}

// Length returns the number of bytes written since Init.
func (w *PacketWriter) Length() int { return w.length + w.buffer.BytesWritten }

// WriteBytes serializes data across as many buffers as needed.
func (w *PacketWriter) WriteBytes(data []byte) {
	for {
		n := min(len(data), w.buffer.BytesUnwritten())
		copy(w.buffer.Data[w.buffer.BytesWritten:], data[:n])
		w.buffer.BytesWritten += n
		data = data[n:]
		if len(data) == 0 {
			return
		}
		w.nextBuffer()
	}
}

func (w *PacketWriter) nextBuffer() {
	if w.buffer.BytesWritten != DataSize {
		panic("packet: nextBuffer on a partially written buffer")
	}
	w.length += DataSize
	w.buffer.next = NewPacketBuffer()
	w.buffer = w.buffer.next

	if w.reliable != nil {
		w.reliable.End = DataSize
		w.reliable.Cont = &ReliablePacket{}
		w.reliable = w.reliable.Cont
		w.reliable.Buffer = w.buffer
		w.buffer.AddRef()
		w.reliable.Begin = 0
	}
}

// WriteAhead reserves n bytes at the current position, returning a window
// that may be filled in later (possibly spanning a buffer boundary).
func (w *PacketWriter) WriteAhead(n int) SplitBuffer {
	var s SplitBuffer
	avail := w.buffer.BytesUnwritten()
	if n <= avail {
		s.First = w.buffer.Data[w.buffer.BytesWritten : w.buffer.BytesWritten+n]
		w.buffer.BytesWritten += n
		return s
	}
	s.First = w.buffer.Data[w.buffer.BytesWritten:DataSize]
	w.buffer.BytesWritten = DataSize
	w.nextBuffer()
	s.Second = w.buffer.Data[:n-len(s.First)]
	w.buffer.BytesWritten = n - len(s.First)
	return s
}
