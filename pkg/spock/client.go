package spock

import (
	"context"
	"log"
	"time"

	"github.com/chenesan/SpockBot/internal/netpoll"
	"github.com/chenesan/SpockBot/internal/proto"
	"github.com/chenesan/SpockBot/internal/timer"
	"github.com/chenesan/SpockBot/internal/wire"
)

// verboseLogging controls hot-path logging; keep false for normal runs.
const verboseLogging = false

// Client is the event-loop driver. Each Tick polls the multiplexer and
// dispatches the readiness flags to the connection, in the order readable,
// writable, errored, so a read that reveals end-of-stream suppresses the
// write attempt behind it. Everything runs on the caller's goroutine.
type Client struct {
	cfg    Config
	logger *log.Logger

	bus    *Bus
	timers *timer.Registry
	sock   *netpoll.Socket
	conn   *Conn

	recvBuf []byte
}

// New creates a client engine from cfg. The returned client is not yet
// connected; register bus subscriptions and timers, then call Connect and
// Run.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sock, err := netpoll.New()
	if err != nil {
		return nil, err
	}
	bus := NewBus()
	c := &Client{
		cfg:     cfg,
		logger:  cfg.Logger,
		bus:     bus,
		timers:  timer.NewRegistry(),
		sock:    sock,
		conn:    newConn(sock, bus, cfg.Logger),
		recvBuf: make([]byte, cfg.BufSize),
	}
	c.registerHandlers()
	return c, nil
}

// Bus returns the client's event bus.
func (c *Client) Bus() *Bus { return c.bus }

// Conn returns the protocol connection.
func (c *Client) Conn() *Conn { return c.conn }

// Timers returns the timer registry driving the poll deadlines.
func (c *Client) Timers() *timer.Registry { return c.timers }

// Connect dials the configured host and port.
func (c *Client) Connect() error {
	return c.conn.Connect(c.cfg.Host, c.cfg.Port)
}

// StartLogin pushes the handshake requesting the login state followed by
// the login start frame. The handshake handler advances the protocol state
// as the packet is emitted, so the login frame is encoded under Login.
func (c *Client) StartLogin(username string) error {
	if err := c.conn.Push(HandshakePacket(c.cfg.Host, uint16(c.cfg.Port), proto.Login)); err != nil {
		return err
	}
	return c.conn.Push(LoginStartPacket(username))
}

// Tick runs one event-loop iteration: poll and dispatch while connected,
// sleep until the next timer deadline (capped at the idle interval) while
// not, then fire due timers.
func (c *Client) Tick() {
	if c.conn.Connected() {
		timeout, pending := c.timers.Timeout()
		flags := c.sock.Poll(timeout, pending)
		if verboseLogging {
			c.logger.Printf("poll: %s", flags)
		}
		if flags.Has(netpoll.Readable) {
			c.bus.Emit(Event{Kind: EventSocketRecv})
		}
		if flags.Has(netpoll.Writable) {
			c.bus.Emit(Event{Kind: EventSocketSend})
		}
		if flags.Has(netpoll.Errored) {
			c.bus.Emit(Event{Kind: EventSocketErr})
		}
	} else {
		timeout, pending := c.timers.Timeout()
		if !pending || timeout > c.cfg.IdleInterval {
			timeout = c.cfg.IdleInterval
		}
		time.Sleep(timeout)
	}
	c.timers.Tick()
}

// Run ticks the event loop until the bus is killed or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for !c.bus.Killed() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.Tick()
	}
	return nil
}

// Close tears the connection down and releases the socket.
func (c *Client) Close() {
	c.conn.Reset()
	c.sock.Close()
}

// registerHandlers wires the socket readiness events and the in-band
// control packets that drive the state machine.
func (c *Client) registerHandlers() {
	c.bus.On(EventSocketRecv, func(Event) { c.handleRecv() })
	c.bus.On(EventSocketSend, func(Event) { c.handleSend() })
	c.bus.On(EventSocketErr, func(ev Event) { c.fail("socket error", ev.Err) })
	c.bus.On(EventSocketHup, func(Event) { c.fail("socket hung up", nil) })

	c.bus.OnPacketName("HANDSHAKE>Handshake", c.handleHandshake)
	c.bus.OnPacketName("LOGIN<Login Success", c.handleLoginSuccess)
	c.bus.OnPacketName("LOGIN<Set Compression", c.handleSetCompression)
	c.bus.OnPacketName("PLAY<Set Compression", c.handleSetCompression)
	c.bus.OnPacketName("PLAY<Disconnect", c.handleServerDisconnect)
	c.bus.OnPacketName("PLAY<Keep Alive", c.handleKeepAlive)
}

// handleRecv drains one socket read into the decode path. A zero-byte read
// is the peer hanging up, not an empty read; it is handled exactly like a
// socket error.
func (c *Client) handleRecv() {
	if !c.conn.Connected() {
		return
	}
	n, err := c.sock.Recv(c.recvBuf)
	if err != nil {
		c.bus.Emit(Event{Kind: EventSocketErr, Err: err})
		return
	}
	if n == 0 {
		c.bus.Emit(Event{Kind: EventSocketHup})
		return
	}
	recordBytesReceived(n)
	if err := c.conn.ReadBytes(c.recvBuf[:n]); err != nil {
		// Protocol-fatal decode error: the same bytes can never parse, so
		// retrying is pointless. Reset with a distinct cause.
		c.logger.Printf("%v", err)
		c.fail("protocol error", err)
	}
}

// handleSend flushes as much of the pending outbound buffer as the OS
// accepts and re-arms write readiness for any remainder.
func (c *Client) handleSend() {
	if !c.conn.Connected() || len(c.conn.sbuff) == 0 {
		return
	}
	n, err := c.sock.Send(c.conn.sbuff)
	if err != nil {
		c.logger.Printf("send: %v", err)
		c.bus.Emit(Event{Kind: EventSocketErr, Err: err})
		return
	}
	recordBytesSent(n)
	c.conn.sbuff = c.conn.sbuff[n:]
	if len(c.conn.sbuff) > 0 {
		c.sock.Sending = true
	}
}

// fail resets the engine, emits the disconnect notification with its cause,
// and kills the loop when configured to quit on socket failure.
func (c *Client) fail(reason string, err error) {
	c.conn.Reset()
	if err != nil {
		c.logger.Printf("connection reset: %s: %v", reason, err)
	} else {
		c.logger.Printf("connection reset: %s", reason)
	}
	recordDisconnect(reason)
	c.bus.Emit(Event{Kind: EventDisconnect, Reason: reason, Err: err})
	if c.cfg.SockQuit && !c.bus.Killed() {
		c.bus.Kill(reason)
	}
}

// handleHandshake reacts to the handshake the client itself pushed and
// advances to whatever next state it requested.
func (c *Client) handleHandshake(f *wire.Frame) {
	next, err := parseHandshakeNext(f.Data)
	if err != nil {
		c.logger.Printf("handshake: %v", err)
		return
	}
	c.applyTransition(proto.Input{Kind: proto.MsgHandshake, NextState: next})
}

// handleLoginSuccess advances to the play state.
func (c *Client) handleLoginSuccess(*wire.Frame) {
	c.applyTransition(proto.Input{Kind: proto.MsgLoginSuccess})
}

// handleSetCompression applies the announced threshold without changing the
// protocol state.
func (c *Client) handleSetCompression(f *wire.Frame) {
	threshold, err := parseThreshold(f.Data)
	if err != nil {
		c.logger.Printf("set compression: %v", err)
		return
	}
	c.applyTransition(proto.Input{Kind: proto.MsgSetCompression, Threshold: threshold})
}

// handleServerDisconnect reports the server-announced disconnect. The
// message itself is informative; teardown follows when the peer closes the
// socket and the hang-up path runs.
func (c *Client) handleServerDisconnect(f *wire.Frame) {
	reason, err := parseDisconnectReason(f.Data)
	if err != nil {
		reason = "disconnected by server"
	}
	c.logger.Printf("disconnected by server: %s", reason)
	c.bus.Emit(Event{Kind: EventDisconnect, Reason: reason})
}

// handleKeepAlive echoes the keep-alive id so the server keeps the
// connection open.
func (c *Client) handleKeepAlive(f *wire.Frame) {
	id, err := parseKeepAliveID(f.Data)
	if err != nil {
		c.logger.Printf("keep alive: %v", err)
		return
	}
	if err := c.conn.Push(KeepAlivePacket(id)); err != nil {
		c.logger.Printf("keep alive: %v", err)
	}
}

// applyTransition runs the pure transition function and applies its side
// effects to the connection.
func (c *Client) applyTransition(in proto.Input) {
	res, err := proto.Transition(c.conn.State(), in)
	if err != nil {
		c.logger.Printf("transition: %v", err)
		return
	}
	if res.SetThreshold {
		c.conn.SetCompression(res.Threshold)
	}
	if res.Next != c.conn.State() {
		c.conn.SetState(res.Next)
	}
}
