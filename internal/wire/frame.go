package wire

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/chenesan/SpockBot/internal/proto"
)

// maxFrameLen caps the declared frame and uncompressed-payload lengths.
// A peer announcing anything larger is desynced or hostile.
const maxFrameLen = 1 << 21

// Frame is one wire unit: a packet ID plus opaque field bytes, tagged with
// the protocol state and direction it was coded under.
type Frame struct {
	State proto.State
	Dir   proto.Direction
	ID    int32
	Data  []byte
}

// Ident returns the frame's packet identity.
func (f *Frame) Ident() proto.Ident {
	return proto.Ident{State: f.State, Dir: f.Dir, ID: f.ID}
}

// Name returns the frame's human-readable packet name.
func (f *Frame) Name() string {
	return f.Ident().Name()
}

// EncodeFrame serializes f into its wire form:
//
//	[varint frameLen][varint packetID][fields]
//
// or, with compression enabled:
//
//	[varint frameLen][varint dataLen][body]
//
// where dataLen is 0 and body is the raw packetID+fields when the payload is
// below threshold, else the uncompressed payload size followed by the
// zlib-deflated body. A payload of exactly threshold bytes is compressed.
func EncodeFrame(f *Frame, compress bool, threshold int32) ([]byte, error) {
	payload := AppendVarint(nil, f.ID)
	payload = append(payload, f.Data...)

	body := payload
	if compress {
		if int32(len(payload)) >= threshold {
			var zb bytes.Buffer
			zw := zlib.NewWriter(&zb)
			if _, err := zw.Write(payload); err != nil {
				return nil, err
			}
			if err := zw.Close(); err != nil {
				return nil, err
			}
			body = AppendVarint(nil, int32(len(payload)))
			body = append(body, zb.Bytes()...)
		} else {
			body = append(AppendVarint(nil, 0), payload...)
		}
	}

	out := AppendVarint(nil, int32(len(body)))
	return append(out, body...), nil
}

// DecodeFrame attempts to parse one frame from the buffer. The caller must
// Save the buffer before calling and Revert on ErrUnderflow; on success the
// consumed bytes belong to the frame and the caller commits them.
//
// Errors are three-way: nil means a complete frame; ErrUnderflow means not
// enough buffered bytes yet (transient, retry after the next read); a
// *MalformedError means the bytes can never parse (protocol-fatal). A short
// read inside an already-complete frame body is malformed, never underflow.
func DecodeFrame(b *Buffer, state proto.State, dir proto.Direction, compressed bool) (*Frame, error) {
	frameLen, err := ReadVarint(b)
	if err != nil {
		return nil, err
	}
	if frameLen <= 0 || frameLen > maxFrameLen {
		return nil, malformedf("frame length %d out of range", frameLen)
	}

	body, err := b.ReadN(int(frameLen))
	if err != nil {
		return nil, err
	}

	// From here on the whole frame is buffered; any parse failure is fatal.
	pb := NewBuffer(body)
	if compressed {
		dataLen, err := ReadVarint(pb)
		if err != nil {
			return nil, malformedf("truncated compression header")
		}
		switch {
		case dataLen == 0:
			// Uncompressed payload below threshold; packetID+fields follow raw.
		case dataLen < 0 || dataLen > maxFrameLen:
			return nil, malformedf("uncompressed length %d out of range", dataLen)
		default:
			deflated, _ := pb.ReadN(pb.Len())
			zsrc := bytes.NewReader(deflated)
			zr, err := zlib.NewReader(zsrc)
			if err != nil {
				return nil, malformedf("bad zlib header: %v", err)
			}
			inflated := make([]byte, 0, dataLen)
			buf := bytes.NewBuffer(inflated)
			if _, err := io.Copy(buf, io.LimitReader(zr, int64(dataLen)+1)); err != nil {
				return nil, malformedf("corrupt compressed payload: %v", err)
			}
			if int32(buf.Len()) != dataLen {
				return nil, malformedf("uncompressed length mismatch: declared %d, got %d", dataLen, buf.Len())
			}
			if zsrc.Len() != 0 {
				return nil, malformedf("%d trailing bytes after compressed payload", zsrc.Len())
			}
			pb = NewBuffer(buf.Bytes())
		}
	}

	id, err := ReadVarint(pb)
	if err != nil {
		return nil, malformedf("truncated packet id")
	}
	rest, _ := pb.ReadN(pb.Len())
	data := make([]byte, len(rest))
	copy(data, rest)

	return &Frame{State: state, Dir: dir, ID: id, Data: data}, nil
}
