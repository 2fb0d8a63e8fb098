// Package proto defines the protocol states, packet identities and the pure
// state-transition function for the client connection.
package proto

import "fmt"

// State represents the protocol state of a connection.
type State int32

// Protocol states, in handshake order. The wire values match the next-state
// field of the Handshake packet.
const (
	Handshake State = 0
	Status    State = 1
	Login     State = 2
	Play      State = 3
)

// String returns the canonical upper-case state name.
func (s State) String() string {
	switch s {
	case Handshake:
		return "HANDSHAKE"
	case Status:
		return "STATUS"
	case Login:
		return "LOGIN"
	case Play:
		return "PLAY"
	}
	return fmt.Sprintf("STATE(%d)", int32(s))
}

// Valid reports whether s is one of the four defined protocol states.
func (s State) Valid() bool {
	return s >= Handshake && s <= Play
}

// Direction indicates which peer produced a packet.
type Direction int

const (
	// ServerToClient marks packets decoded from the server.
	ServerToClient Direction = iota
	// ClientToServer marks packets pushed by the client.
	ClientToServer
)

// String returns "<" for server-to-client and ">" for client-to-server,
// matching the arrow notation used in packet names.
func (d Direction) String() string {
	if d == ServerToClient {
		return "<"
	}
	return ">"
}

// Ident identifies a packet shape: protocol state, direction and packet ID.
type Ident struct {
	State State
	Dir   Direction
	ID    int32
}

// Packet IDs for the control packets the engine itself reacts to.
// IDs follow protocol 47 (1.8), the version the engine was built against.
const (
	// HANDSHAKE, client to server
	IDHandshake int32 = 0x00

	// STATUS, both directions
	IDStatusRequest  int32 = 0x00
	IDStatusResponse int32 = 0x00
	IDStatusPing     int32 = 0x01
	IDStatusPong     int32 = 0x01

	// LOGIN, server to client
	IDLoginDisconnect     int32 = 0x00
	IDEncryptionRequest   int32 = 0x01
	IDLoginSuccess        int32 = 0x02
	IDLoginSetCompression int32 = 0x03

	// LOGIN, client to server
	IDLoginStart         int32 = 0x00
	IDEncryptionResponse int32 = 0x01

	// PLAY, server to client
	IDPlayKeepAlive      int32 = 0x00
	IDPlayDisconnect     int32 = 0x40
	IDPlaySetCompression int32 = 0x46

	// PLAY, client to server
	IDPlayKeepAliveServerbound int32 = 0x00
)

// packetNames maps the control idents to their human-readable names. The
// name format is STATE<Name for server-to-client and STATE>Name for
// client-to-server, following the original event naming scheme.
var packetNames = map[Ident]string{
	{Handshake, ClientToServer, IDHandshake}: "HANDSHAKE>Handshake",

	{Status, ClientToServer, IDStatusRequest}:  "STATUS>Status Request",
	{Status, ClientToServer, IDStatusPing}:     "STATUS>Status Ping",
	{Status, ServerToClient, IDStatusResponse}: "STATUS<Status Response",
	{Status, ServerToClient, IDStatusPong}:     "STATUS<Status Pong",

	{Login, ServerToClient, IDLoginDisconnect}:     "LOGIN<Disconnect",
	{Login, ServerToClient, IDEncryptionRequest}:   "LOGIN<Encryption Request",
	{Login, ServerToClient, IDLoginSuccess}:        "LOGIN<Login Success",
	{Login, ServerToClient, IDLoginSetCompression}: "LOGIN<Set Compression",
	{Login, ClientToServer, IDLoginStart}:          "LOGIN>Login Start",
	{Login, ClientToServer, IDEncryptionResponse}:  "LOGIN>Encryption Response",

	{Play, ServerToClient, IDPlayKeepAlive}:            "PLAY<Keep Alive",
	{Play, ServerToClient, IDPlayDisconnect}:           "PLAY<Disconnect",
	{Play, ServerToClient, IDPlaySetCompression}:       "PLAY<Set Compression",
	{Play, ClientToServer, IDPlayKeepAliveServerbound}: "PLAY>Keep Alive",
}

// Name returns the human-readable name of the ident, or a generated
// STATE<0xNN form for packets the engine does not know by name.
func (i Ident) Name() string {
	if name, ok := packetNames[i]; ok {
		return name
	}
	return fmt.Sprintf("%s%s0x%02X", i.State, i.Dir, i.ID)
}
