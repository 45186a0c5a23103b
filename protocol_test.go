package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf [headerSize]byte
	encodeHeader(buf[:], 0x0010)

	assert.Equal(t, byte(0), buf[0])
	assert.Equal(t, byte(0), buf[1])
	assert.Equal(t, byte('S'), buf[2])
	assert.Equal(t, byte('P'), buf[3])

	id, err := decodeHeader(buf[:])
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0010), id)
}

func TestDecodeHeader_RejectsBadMagic(t *testing.T) {
	buf := [headerSize]byte{1, 0, 'S', 'P', 0, 0, 0, 0}
	_, err := decodeHeader(buf[:])
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestDecodeHeader_RejectsNonZeroTrailer(t *testing.T) {
	buf := [headerSize]byte{0, 0, 'S', 'P', 0, 0x10, 0xff, 0xff}
	_, err := decodeHeader(buf[:])
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestDecodeHeader_RejectsShortBuffer(t *testing.T) {
	_, err := decodeHeader([]byte{0, 0, 'S'})
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestFrameLengthRoundTrip(t *testing.T) {
	var buf [lengthPrefixSize]byte
	encodeFrameLength(buf[:], 1<<40)
	assert.Equal(t, uint64(1<<40), decodeFrameLength(buf[:]))
}
