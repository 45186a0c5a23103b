package core

import "encoding/binary"

// headerSize is the length in bytes of the fixed protocol header every
// session exchanges before any framed message, per the wire format
// confirmed in original_source's stream.c: "\0\0SP\0\0\0\0" with the
// protocol id big-endian at bytes 4-5.
const headerSize = 8

// lengthPrefixSize is the width of the big-endian frame length prefix that
// precedes every message body on the wire.
const lengthPrefixSize = 8

// maxFrameSize bounds an incoming frame's declared length so a corrupt or
// hostile peer cannot force an unbounded allocation.
const maxFrameSize = 256 << 20

// encodeHeader writes the 8-byte handshake header identifying protocolID
// into buf, which must be at least headerSize bytes.
func encodeHeader(buf []byte, protocolID uint16) {
	buf[0], buf[1] = 0, 0
	buf[2], buf[3] = 'S', 'P'
	binary.BigEndian.PutUint16(buf[4:6], protocolID)
	buf[6], buf[7] = 0, 0
}

// decodeHeader validates buf as a handshake header and returns the peer's
// advertised protocol id. Returns ErrBadHeader if the fixed bytes (the
// leading magic or the trailing zero pad) don't match.
func decodeHeader(buf []byte) (protocolID uint16, err error) {
	if len(buf) < headerSize {
		return 0, ErrBadHeader
	}
	if buf[0] != 0 || buf[1] != 0 || buf[2] != 'S' || buf[3] != 'P' {
		return 0, ErrBadHeader
	}
	if buf[6] != 0 || buf[7] != 0 {
		return 0, ErrBadHeader
	}
	return binary.BigEndian.Uint16(buf[4:6]), nil
}

// encodeFrameLength writes a message body's length as an 8-byte big-endian
// prefix into buf, which must be at least lengthPrefixSize bytes.
func encodeFrameLength(buf []byte, n uint64) {
	binary.BigEndian.PutUint64(buf, n)
}

func decodeFrameLength(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}
