// Package integration tests the client engine end to end against a stub
// peer that implements the same wire rules on the server side.
package integration

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/chenesan/SpockBot/internal/proto"
	"github.com/chenesan/SpockBot/internal/wire"
)

// PeerFrame is a frame the stub peer decoded, with the wire-level
// compression observation the client cannot see from inside.
type PeerFrame struct {
	Frame           *wire.Frame
	WasCompressed   bool
	ThresholdAtRecv int32
}

// StubPeer is a minimal gnet server speaking the login side of the wire
// protocol: it answers a login start with a compression announcement
// followed by login success, then records every play-state frame it
// decodes.
type StubPeer struct {
	gnet.BuiltinEventEngine

	addr      string
	threshold int32
	logger    *log.Logger
	engine    gnet.Engine

	// Frames receives every client frame the peer decodes.
	Frames chan PeerFrame
	// LoginStarted receives the username from the login start frame.
	LoginStarted chan string

	started chan struct{}
}

// connState is the per-connection decode state, stored on the gnet.Conn.
type connState struct {
	state     proto.State
	threshold int32
	rbuff     *wire.Buffer
}

// NewStubPeer creates a stub peer that will announce the given compression
// threshold after login start; a negative threshold skips the announcement.
func NewStubPeer(addr string, threshold int32, logger *log.Logger) *StubPeer {
	return &StubPeer{
		addr:         addr,
		threshold:    threshold,
		logger:       logger,
		Frames:       make(chan PeerFrame, 64),
		LoginStarted: make(chan string, 1),
		started:      make(chan struct{}),
	}
}

// Start runs the gnet engine until Stop.
func (p *StubPeer) Start() error {
	return gnet.Run(p, "tcp://"+p.addr, gnet.WithMulticore(false))
}

// Stop shuts the engine down.
func (p *StubPeer) Stop(ctx context.Context) error {
	return p.engine.Stop(ctx)
}

// WaitReady blocks until the engine accepts connections.
func (p *StubPeer) WaitReady(timeout time.Duration) error {
	select {
	case <-p.started:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("stub peer %s not ready", p.addr)
	}
}

// OnBoot is called when the engine is ready to accept connections.
func (p *StubPeer) OnBoot(eng gnet.Engine) gnet.Action {
	p.engine = eng
	close(p.started)
	return gnet.None
}

// OnOpen attaches fresh decode state to the connection.
func (p *StubPeer) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	c.SetContext(&connState{state: proto.Handshake, threshold: -1, rbuff: wire.NewBuffer(nil)})
	return nil, gnet.None
}

// OnTraffic drains the connection and decodes frames under the same
// checkpoint discipline the client uses.
func (p *StubPeer) OnTraffic(c gnet.Conn) gnet.Action {
	cs := c.Context().(*connState)

	buf, err := c.Next(-1)
	if err != nil {
		p.logger.Printf("peer read: %v", err)
		return gnet.Close
	}
	cs.rbuff.Append(buf)

	for {
		compressed := cs.threshold >= 0
		wasCompressed, headerReady := peekCompressed(cs.rbuff, compressed)
		if !headerReady {
			return gnet.None
		}

		cs.rbuff.Save()
		f, err := wire.DecodeFrame(cs.rbuff, cs.state, proto.ClientToServer, compressed)
		if err == wire.ErrUnderflow {
			cs.rbuff.Revert()
			return gnet.None
		}
		if err != nil {
			p.logger.Printf("peer decode: %v", err)
			return gnet.Close
		}
		cs.rbuff.Commit()

		if action := p.handleFrame(c, cs, f, wasCompressed); action != gnet.None {
			return action
		}
	}
}

// peekCompressed inspects the compression header without consuming. The
// second return is false when the header is not fully buffered yet.
func peekCompressed(b *wire.Buffer, compressed bool) (bool, bool) {
	if !compressed {
		return false, true
	}
	b.Save()
	defer b.Revert()
	if _, err := wire.ReadVarint(b); err != nil {
		return false, err != wire.ErrUnderflow
	}
	dataLen, err := wire.ReadVarint(b)
	if err != nil {
		return false, err != wire.ErrUnderflow
	}
	return dataLen > 0, true
}

func (p *StubPeer) handleFrame(c gnet.Conn, cs *connState, f *wire.Frame, wasCompressed bool) gnet.Action {
	switch {
	case cs.state == proto.Handshake && f.ID == proto.IDHandshake:
		next, err := handshakeNextState(f.Data)
		if err != nil {
			p.logger.Printf("peer handshake: %v", err)
			return gnet.Close
		}
		cs.state = next

	case cs.state == proto.Login && f.ID == proto.IDLoginStart:
		username, err := wire.ReadString(wire.NewBuffer(f.Data))
		if err != nil {
			p.logger.Printf("peer login start: %v", err)
			return gnet.Close
		}
		p.LoginStarted <- username

		if p.threshold >= 0 {
			// Announce compression uncompressed, then switch layouts.
			if err := p.send(c, cs, &wire.Frame{
				ID:   proto.IDLoginSetCompression,
				Data: wire.AppendVarint(nil, p.threshold),
			}); err != nil {
				return gnet.Close
			}
			cs.threshold = p.threshold
		}
		if err := p.send(c, cs, &wire.Frame{
			ID:   proto.IDLoginSuccess,
			Data: loginSuccessData(username),
		}); err != nil {
			return gnet.Close
		}
		cs.state = proto.Play

	default:
		p.Frames <- PeerFrame{Frame: f, WasCompressed: wasCompressed, ThresholdAtRecv: cs.threshold}
	}
	return gnet.None
}

func (p *StubPeer) send(c gnet.Conn, cs *connState, f *wire.Frame) error {
	data, err := wire.EncodeFrame(f, cs.threshold >= 0, cs.threshold)
	if err != nil {
		p.logger.Printf("peer encode: %v", err)
		return err
	}
	if _, err := c.Write(data); err != nil {
		p.logger.Printf("peer write: %v", err)
		return err
	}
	return nil
}

func handshakeNextState(data []byte) (proto.State, error) {
	b := wire.NewBuffer(data)
	if _, err := wire.ReadVarint(b); err != nil {
		return 0, err
	}
	if _, err := wire.ReadString(b); err != nil {
		return 0, err
	}
	if _, err := wire.ReadUint16(b); err != nil {
		return 0, err
	}
	next, err := wire.ReadVarint(b)
	if err != nil {
		return 0, err
	}
	return proto.State(next), nil
}

func loginSuccessData(username string) []byte {
	data := wire.AppendString(nil, "00000000-0000-0000-0000-000000000000")
	return wire.AppendString(data, username)
}
