package wire

import (
	"encoding/binary"
	"fmt"
)

// maxVarintBytes is the longest legal encoding of a 32-bit varint.
const maxVarintBytes = 5

// MalformedError reports a protocol-fatal decode failure: the buffered
// bytes cannot form a valid frame no matter how many more arrive. It must
// never be confused with ErrUnderflow.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "wire: malformed frame: " + e.Reason
}

func malformedf(format string, args ...any) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// AppendVarint appends the 32-bit varint encoding of v to dst.
func AppendVarint(dst []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// VarintLen returns the encoded size of v in bytes.
func VarintLen(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// ReadVarint consumes a 32-bit varint from the buffer. An encoding longer
// than five bytes is malformed; running out of buffered bytes mid-varint is
// ErrUnderflow.
func ReadVarint(b *Buffer) (int32, error) {
	var u uint32
	for i := 0; i < maxVarintBytes; i++ {
		c, err := b.ReadByte()
		if err != nil {
			return 0, err
		}
		u |= uint32(c&0x7f) << (7 * i)
		if c&0x80 == 0 {
			return int32(u), nil
		}
	}
	return 0, malformedf("varint longer than %d bytes", maxVarintBytes)
}

// ReadString consumes a varint-prefixed UTF-8 string.
func ReadString(b *Buffer) (string, error) {
	n, err := ReadVarint(b)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", malformedf("negative string length %d", n)
	}
	p, err := b.ReadN(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// AppendString appends a varint-prefixed UTF-8 string to dst.
func AppendString(dst []byte, s string) []byte {
	dst = AppendVarint(dst, int32(len(s)))
	return append(dst, s...)
}

// ReadUint16 consumes a big-endian unsigned short.
func ReadUint16(b *Buffer) (uint16, error) {
	p, err := b.ReadN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

// AppendUint16 appends a big-endian unsigned short to dst.
func AppendUint16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}
