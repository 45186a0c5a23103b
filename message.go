package core

// Chunk is a reference-counted byte buffer with explicit move semantics.
// The reference count lets a single allocation be shared cheaply between a
// Message's header and body without forcing a copy; in this Go port the
// "reference" is simply ownership of the backing slice, since the garbage
// collector retires the allocation once nothing holds it.
type Chunk struct {
	data []byte
}

// NewChunk allocates a Chunk of exactly n zeroed bytes.
func NewChunk(n int) Chunk {
	if n == 0 {
		return Chunk{}
	}
	return Chunk{data: make([]byte, n)}
}

// ChunkFromBytes takes ownership of b without copying. Callers must not
// retain b after passing it here.
func ChunkFromBytes(b []byte) Chunk {
	return Chunk{data: b}
}

// Len returns the number of bytes in the chunk.
func (c Chunk) Len() int { return len(c.data) }

// Bytes returns the chunk's backing slice. The slice is only valid while
// the owning Message has not been moved or terminated.
func (c Chunk) Bytes() []byte { return c.data }

// Message is a {header, body} pair, matching the wire split of a framed
// scalability-protocols message: a small header chunk plus a body chunk.
// Most pipes never populate Header; it exists for protocol shells that
// prepend routing information (e.g. a fan-out envelope) ahead of the
// payload.
type Message struct {
	Header Chunk
	Body   Chunk
}

// NewMessage builds a message with an empty header and a body of n bytes.
func NewMessage(n int) Message {
	return Message{Body: NewChunk(n)}
}

// Size returns the total wire length (header + body) of the message.
func (m Message) Size() int {
	return m.Header.Len() + m.Body.Len()
}

// Move transfers both chunks from src into a new Message and empties src,
// mirroring the source library's move-only message semantics: after Move,
// src holds no buffers and must not be used again except to be discarded or
// reinitialized.
func Move(src *Message) Message {
	out := *src
	*src = Message{}
	return out
}

// IsEmpty reports whether the message carries no data at all (the legal
// zero-length-frame case from spec §4.7/§8).
func (m Message) IsEmpty() bool {
	return m.Header.Len() == 0 && m.Body.Len() == 0
}
