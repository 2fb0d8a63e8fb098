package spock

import (
	"errors"
	"fmt"

	"github.com/chenesan/SpockBot/internal/mccrypto"
	"github.com/chenesan/SpockBot/internal/netpoll"
	"github.com/chenesan/SpockBot/internal/proto"
	"github.com/chenesan/SpockBot/internal/wire"
)

// ErrAlreadyConnected is returned by Connect while a connection is live.
// Only one connect attempt may be in flight.
var ErrAlreadyConnected = errors.New("spock: already connected")

// Conn owns the connection state: protocol state, compression threshold,
// cipher, and the send/receive buffers. It is exclusively owned by the
// event-loop thread.
type Conn struct {
	sock   *netpoll.Socket
	bus    *Bus
	logger logPrinter

	host      string
	port      int
	connected bool

	state     proto.State
	threshold int32 // negative disables compression

	// cipher is non-nil iff encrypted; the two always toggle together.
	encrypted bool
	cipher    *mccrypto.CFB8

	sbuff []byte
	rbuff *wire.Buffer
}

// logPrinter is the slice of *log.Logger the connection needs.
type logPrinter interface {
	Printf(format string, v ...any)
}

func newConn(sock *netpoll.Socket, bus *Bus, logger logPrinter) *Conn {
	return &Conn{
		sock:      sock,
		bus:       bus,
		logger:    logger,
		state:     proto.Handshake,
		threshold: -1,
		rbuff:     wire.NewBuffer(nil),
	}
}

// Connected reports whether a connection is live.
func (c *Conn) Connected() bool { return c.connected }

// State returns the current protocol state.
func (c *Conn) State() proto.State { return c.state }

// CompressionEnabled reports whether the compressed frame layout is active.
func (c *Conn) CompressionEnabled() bool { return c.threshold >= 0 }

// CompressionThreshold returns the current threshold; negative means off.
func (c *Conn) CompressionThreshold() int32 { return c.threshold }

// Encrypted reports whether the stream cipher is active.
func (c *Conn) Encrypted() bool { return c.encrypted }

// Addr returns the host and port of the current or last connection.
func (c *Conn) Addr() (string, int) { return c.host, c.port }

// Connect performs the one-shot blocking connect. Calling it while
// connected is a precondition violation and is rejected. On failure the
// connection stays disconnected and the state machine does not advance.
func (c *Conn) Connect(host string, port int) error {
	if c.connected {
		return ErrAlreadyConnected
	}
	c.host = host
	c.port = port
	c.logger.Printf("connecting to %s:%d", host, port)
	if err := c.sock.Connect(host, port); err != nil {
		c.logger.Printf("connect failed: %v", err)
		return err
	}
	c.connected = true
	recordConnect()
	c.bus.Emit(Event{Kind: EventConnect, Host: host, Port: port})
	c.logger.Printf("connected to %s:%d", host, port)
	return nil
}

// SetState switches the protocol state and announces the new state on the
// bus under its name.
func (c *Conn) SetState(s proto.State) {
	c.state = s
	c.bus.Emit(Event{Kind: EventState, State: s})
}

// SetCompression sets the compression threshold. The compression state is
// derived: enabled iff the threshold is non-negative.
func (c *Conn) SetCompression(threshold int32) {
	c.threshold = threshold
}

// Push encodes f under the current compression and crypto settings, queues
// the frame bytes for sending, and emits the packet under both its
// identifiers. The frame is encoded whole: a crypto or compression toggle
// between two pushes never splits a frame.
func (c *Conn) Push(f *wire.Frame) error {
	compress := c.CompressionEnabled()
	data, err := wire.EncodeFrame(f, compress, c.threshold)
	if err != nil {
		return fmt.Errorf("spock: encode %s: %w", f.Name(), err)
	}
	if c.encrypted {
		data = c.cipher.Encrypt(data)
	}
	c.sbuff = append(c.sbuff, data...)
	c.sock.Sending = true
	recordFrameEncoded(f.State, compress && int32(wire.VarintLen(f.ID)+len(f.Data)) >= c.threshold)
	c.bus.EmitPacket(EventPacketOut, f)
	return nil
}

// ReadBytes decrypts (when crypto is on) and appends newly received bytes,
// then decodes as many complete frames as the buffer holds. A partial frame
// reverts the buffer and waits for the next read; each complete frame is
// committed and emitted before the next decode attempt, so a handler that
// changes the protocol state affects the frames behind it in the same read.
// A malformed frame is protocol-fatal and is returned, never swallowed.
func (c *Conn) ReadBytes(data []byte) error {
	if c.encrypted {
		data = c.cipher.Decrypt(data)
	}
	c.rbuff.Append(data)
	for {
		c.rbuff.Save()
		f, err := wire.DecodeFrame(c.rbuff, c.state, proto.ServerToClient, c.CompressionEnabled())
		if errors.Is(err, wire.ErrUnderflow) {
			c.rbuff.Revert()
			return nil
		}
		if err != nil {
			return fmt.Errorf("spock: decode in state %s: %w", c.state, err)
		}
		c.rbuff.Commit()
		recordFrameDecoded(f.State)
		c.bus.EmitPacket(EventPacketIn, f)
	}
}

// EnableCrypto installs the stream cipher built from the shared secret.
// The encrypted flag and the cipher toggle together.
func (c *Conn) EnableCrypto(secret []byte) error {
	cipher, err := mccrypto.NewCFB8(secret)
	if err != nil {
		return err
	}
	c.cipher = cipher
	c.encrypted = true
	return nil
}

// DisableCrypto removes the cipher. Frames already encoded stay encrypted;
// only subsequent frames are affected.
func (c *Conn) DisableCrypto() {
	c.cipher = nil
	c.encrypted = false
}

// Reset tears down the socket and reinitializes every connection field to
// its construction-time default: protocol state back to handshake,
// compression off, crypto off, buffers emptied. The engine is immediately
// reusable for a fresh Connect.
func (c *Conn) Reset() {
	c.connected = false
	if err := c.sock.Reset(); err != nil {
		c.logger.Printf("socket reset: %v", err)
	}
	c.state = proto.Handshake
	c.threshold = -1
	c.encrypted = false
	c.cipher = nil
	c.sbuff = nil
	c.rbuff = wire.NewBuffer(nil)
}

// Disconnect is an alias for Reset.
func (c *Conn) Disconnect() { c.Reset() }
