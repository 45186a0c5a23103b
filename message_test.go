package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_SizeAndEmpty(t *testing.T) {
	m := NewMessage(5)
	assert.Equal(t, 5, m.Size())
	assert.False(t, m.IsEmpty())

	var zero Message
	assert.True(t, zero.IsEmpty())
}

func TestMessage_Move(t *testing.T) {
	src := NewMessage(3)
	copy(src.Body.Bytes(), []byte{1, 2, 3})

	dst := Move(&src)

	assert.Equal(t, []byte{1, 2, 3}, dst.Body.Bytes())
	assert.True(t, src.IsEmpty(), "Move transfers ownership, leaving src empty")
}

func TestChunk_FromBytes(t *testing.T) {
	b := []byte("hello")
	c := ChunkFromBytes(b)
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, b, c.Bytes())
}
