package spock

import (
	"github.com/chenesan/SpockBot/internal/proto"
	"github.com/chenesan/SpockBot/internal/wire"
)

// EventKind enumerates the notifications the engine emits.
type EventKind int

// Event kinds. Socket kinds mirror the raw multiplexer readiness flags.
const (
	EventConnect EventKind = iota
	EventDisconnect
	EventState
	EventSocketRecv
	EventSocketSend
	EventSocketErr
	EventSocketHup
	EventPacketIn
	EventPacketOut
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventState:
		return "state"
	case EventSocketRecv:
		return "SOCKET_RECV"
	case EventSocketSend:
		return "SOCKET_SEND"
	case EventSocketErr:
		return "SOCKET_ERR"
	case EventSocketHup:
		return "SOCKET_HUP"
	case EventPacketIn:
		return "packet_in"
	case EventPacketOut:
		return "packet_out"
	}
	return "unknown"
}

// Event is a typed notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// Host and Port accompany EventConnect.
	Host string
	Port int

	// Reason carries the human-readable cause of an EventDisconnect.
	Reason string
	// Err carries the underlying error of EventSocketErr or EventDisconnect,
	// when one exists.
	Err error

	// State accompanies EventState.
	State proto.State

	// Packet accompanies EventPacketIn and EventPacketOut.
	Packet *wire.Frame
}

// Handler observes events of a subscribed kind.
type Handler func(Event)

// PacketHandler observes packets subscribed by ident or by name.
type PacketHandler func(*wire.Frame)

// Bus dispatches events synchronously, in registration order, on the event
// loop thread. A handler observes an event before the engine proceeds to
// the next decode-loop iteration.
type Bus struct {
	handlers map[EventKind][]Handler
	idents   map[proto.Ident][]PacketHandler
	names    map[string][]PacketHandler

	killed     bool
	killReason string
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventKind][]Handler),
		idents:   make(map[proto.Ident][]PacketHandler),
		names:    make(map[string][]PacketHandler),
	}
}

// On subscribes h to events of the given kind.
func (b *Bus) On(kind EventKind, h Handler) {
	b.handlers[kind] = append(b.handlers[kind], h)
}

// OnPacket subscribes h to packets matching the numeric ident.
func (b *Bus) OnPacket(ident proto.Ident, h PacketHandler) {
	b.idents[ident] = append(b.idents[ident], h)
}

// OnPacketName subscribes h to packets matching the human-readable name,
// e.g. "LOGIN<Login Success".
func (b *Bus) OnPacketName(name string, h PacketHandler) {
	b.names[name] = append(b.names[name], h)
}

// Emit delivers ev to every handler subscribed to its kind.
func (b *Bus) Emit(ev Event) {
	for _, h := range b.handlers[ev.Kind] {
		h(ev)
	}
}

// EmitPacket delivers f under both its identifiers: first the numeric ident
// subscribers, then the name subscribers, then the generic kind handlers
// (EventPacketIn or EventPacketOut).
func (b *Bus) EmitPacket(kind EventKind, f *wire.Frame) {
	for _, h := range b.idents[f.Ident()] {
		h(f)
	}
	for _, h := range b.names[f.Name()] {
		h(f)
	}
	b.Emit(Event{Kind: kind, Packet: f})
}

// Kill stops the event loop at the end of the current tick. Subsequent
// calls keep the first reason.
func (b *Bus) Kill(reason string) {
	if b.killed {
		return
	}
	b.killed = true
	b.killReason = reason
}

// Killed reports whether Kill was called.
func (b *Bus) Killed() bool { return b.killed }

// KillReason returns the reason of the first Kill call.
func (b *Bus) KillReason() string { return b.killReason }
