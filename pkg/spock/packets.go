package spock

import (
	"fmt"

	"github.com/chenesan/SpockBot/internal/proto"
	"github.com/chenesan/SpockBot/internal/wire"
)

// ProtocolVersion is the protocol generation the engine speaks (1.8).
const ProtocolVersion int32 = 47

// HandshakePacket builds the initial handshake frame requesting next as the
// following protocol state (Status or Login).
func HandshakePacket(serverHost string, serverPort uint16, next proto.State) *wire.Frame {
	data := wire.AppendVarint(nil, ProtocolVersion)
	data = wire.AppendString(data, serverHost)
	data = wire.AppendUint16(data, serverPort)
	data = wire.AppendVarint(data, int32(next))
	return &wire.Frame{
		State: proto.Handshake,
		Dir:   proto.ClientToServer,
		ID:    proto.IDHandshake,
		Data:  data,
	}
}

// LoginStartPacket builds the login start frame carrying the username.
func LoginStartPacket(username string) *wire.Frame {
	return &wire.Frame{
		State: proto.Login,
		Dir:   proto.ClientToServer,
		ID:    proto.IDLoginStart,
		Data:  wire.AppendString(nil, username),
	}
}

// KeepAlivePacket builds the serverbound keep-alive echo.
func KeepAlivePacket(id int32) *wire.Frame {
	return &wire.Frame{
		State: proto.Play,
		Dir:   proto.ClientToServer,
		ID:    proto.IDPlayKeepAliveServerbound,
		Data:  wire.AppendVarint(nil, id),
	}
}

// parseHandshakeNext extracts the requested next state from a handshake
// payload: [varint protocolVersion][string host][u16 port][varint next].
func parseHandshakeNext(data []byte) (proto.State, error) {
	b := wire.NewBuffer(data)
	if _, err := wire.ReadVarint(b); err != nil {
		return 0, fmt.Errorf("handshake protocol version: %w", err)
	}
	if _, err := wire.ReadString(b); err != nil {
		return 0, fmt.Errorf("handshake host: %w", err)
	}
	if _, err := wire.ReadUint16(b); err != nil {
		return 0, fmt.Errorf("handshake port: %w", err)
	}
	next, err := wire.ReadVarint(b)
	if err != nil {
		return 0, fmt.Errorf("handshake next state: %w", err)
	}
	return proto.State(next), nil
}

// parseThreshold extracts the compression threshold from a set-compression
// payload.
func parseThreshold(data []byte) (int32, error) {
	return wire.ReadVarint(wire.NewBuffer(data))
}

// parseKeepAliveID extracts the keep-alive id to echo back.
func parseKeepAliveID(data []byte) (int32, error) {
	return wire.ReadVarint(wire.NewBuffer(data))
}

// parseDisconnectReason extracts the reason text of a disconnect payload.
func parseDisconnectReason(data []byte) (string, error) {
	return wire.ReadString(wire.NewBuffer(data))
}
