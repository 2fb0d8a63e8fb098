// Package wire implements the length-prefixed, optionally compressed frame
// format and the receive buffer it is decoded from.
package wire

import "errors"

// ErrUnderflow signals that the buffer does not yet hold enough bytes for
// the requested read. It is the ordinary partial-frame condition, not an
// error in the connection; the caller reverts to its checkpoint and waits
// for more data.
var ErrUnderflow = errors.New("wire: buffer underflow")

// Buffer is an append-only byte accumulator with a single save/revert
// checkpoint. Reads advance a logical position; Save records the position,
// Revert restores it, and Commit permanently discards the consumed prefix so
// a completed decode can no longer be rolled back.
type Buffer struct {
	data  []byte
	pos   int
	saved int
}

// NewBuffer returns a Buffer pre-loaded with data.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{}
	b.Append(data)
	return b
}

// Append extends the buffer tail. It never fails.
func (b *Buffer) Append(data []byte) {
	b.data = append(b.data, data...)
}

// Save records the current read position as the checkpoint, overwriting any
// prior checkpoint. Only one decode attempt is in flight at a time.
func (b *Buffer) Save() {
	b.saved = b.pos
}

// Revert restores the read position to the last checkpoint.
func (b *Buffer) Revert() {
	b.pos = b.saved
}

// Commit discards the consumed prefix. Bytes read before Commit can no
// longer be recovered by Revert.
func (b *Buffer) Commit() {
	b.data = b.data[b.pos:]
	b.pos = 0
	b.saved = 0
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.pos
}

// ReadByte consumes and returns one byte, or ErrUnderflow.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() < 1 {
		return 0, ErrUnderflow
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

// ReadN consumes and returns the next n bytes, or ErrUnderflow if fewer are
// buffered. The returned slice aliases the buffer and is only valid until
// the next Commit.
func (b *Buffer) ReadN(n int) ([]byte, error) {
	if n < 0 || b.Len() < n {
		return nil, ErrUnderflow
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	return p, nil
}
