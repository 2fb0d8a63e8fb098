package spock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenesan/SpockBot/internal/mccrypto"
	"github.com/chenesan/SpockBot/internal/netpoll"
	"github.com/chenesan/SpockBot/internal/proto"
	"github.com/chenesan/SpockBot/internal/wire"
)

func newTestConn(t *testing.T) (*Conn, *Bus) {
	t.Helper()
	sock, err := netpoll.New()
	require.NoError(t, err)
	t.Cleanup(sock.Close)
	bus := NewBus()
	return newConn(sock, bus, newSilentLogger()), bus
}

func TestConnDefaults(t *testing.T) {
	c, _ := newTestConn(t)

	assert.False(t, c.Connected())
	assert.Equal(t, proto.Handshake, c.State())
	assert.False(t, c.CompressionEnabled())
	assert.Equal(t, int32(-1), c.CompressionThreshold())
	assert.False(t, c.Encrypted())
}

func TestConnCompressionStateDerived(t *testing.T) {
	c, _ := newTestConn(t)

	c.SetCompression(0)
	assert.True(t, c.CompressionEnabled(), "threshold 0 enables compression")

	c.SetCompression(-1)
	assert.False(t, c.CompressionEnabled())
}

func TestConnPushQueuesAndNotifies(t *testing.T) {
	c, bus := newTestConn(t)

	var names []string
	bus.OnPacketName("HANDSHAKE>Handshake", func(f *wire.Frame) { names = append(names, f.Name()) })
	var kinds []EventKind
	bus.On(EventPacketOut, func(ev Event) { kinds = append(kinds, ev.Kind) })

	require.NoError(t, c.Push(HandshakePacket("localhost", 25565, proto.Login)))

	assert.NotEmpty(t, c.sbuff, "frame bytes queued for sending")
	assert.True(t, c.sock.Sending, "multiplexer must request write readiness")
	assert.Equal(t, []string{"HANDSHAKE>Handshake"}, names)
	assert.Equal(t, []EventKind{EventPacketOut}, kinds)
}

func TestConnReadEmitsFrames(t *testing.T) {
	c, bus := newTestConn(t)
	c.SetState(proto.Login)

	var got []*wire.Frame
	bus.On(EventPacketIn, func(ev Event) { got = append(got, ev.Packet) })

	enc, err := wire.EncodeFrame(&wire.Frame{ID: proto.IDLoginSuccess, Data: []byte("ok")}, false, -1)
	require.NoError(t, err)

	// Feed in two halves: the first is a partial frame and must emit nothing.
	require.NoError(t, c.ReadBytes(enc[:2]))
	assert.Empty(t, got)

	require.NoError(t, c.ReadBytes(enc[2:]))
	require.Len(t, got, 1)
	assert.Equal(t, proto.IDLoginSuccess, got[0].ID)
	assert.Equal(t, proto.Login, got[0].State, "frame tagged with current protocol state")
	assert.Equal(t, []byte("ok"), got[0].Data)
}

func TestConnReadMalformedIsFatal(t *testing.T) {
	c, _ := newTestConn(t)

	err := c.ReadBytes([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	require.Error(t, err)
	var malformed *wire.MalformedError
	assert.ErrorAs(t, err, &malformed)
}

func TestConnCryptoRoundTrip(t *testing.T) {
	c, bus := newTestConn(t)
	secret := []byte("0123456789abcdef")

	require.NoError(t, c.EnableCrypto(secret))
	assert.True(t, c.Encrypted())

	require.NoError(t, c.Push(LoginStartPacket("spock")))
	ciphertext := append([]byte(nil), c.sbuff...)

	// The queued bytes are ciphertext: a peer cipher recovers the frame.
	peer, err := mccrypto.NewCFB8(secret)
	require.NoError(t, err)
	plain := peer.Decrypt(ciphertext)

	f, err := wire.DecodeFrame(wire.NewBuffer(plain), proto.Login, proto.ClientToServer, false)
	require.NoError(t, err)
	assert.Equal(t, proto.IDLoginStart, f.ID)

	// Inbound direction: encrypted server frame decodes after EnableCrypto.
	enc, err := wire.EncodeFrame(&wire.Frame{ID: proto.IDLoginSuccess}, false, -1)
	require.NoError(t, err)
	var got []*wire.Frame
	bus.On(EventPacketIn, func(ev Event) { got = append(got, ev.Packet) })
	require.NoError(t, c.ReadBytes(peer.Encrypt(enc)))
	require.Len(t, got, 1)
	assert.Equal(t, proto.IDLoginSuccess, got[0].ID)
}

func TestConnCryptoTogglesAtomically(t *testing.T) {
	c, _ := newTestConn(t)

	require.NoError(t, c.EnableCrypto([]byte("0123456789abcdef")))
	assert.True(t, c.Encrypted())
	assert.NotNil(t, c.cipher)

	c.DisableCrypto()
	assert.False(t, c.Encrypted())
	assert.Nil(t, c.cipher)

	// Frames pushed after disabling are plaintext.
	require.NoError(t, c.Push(LoginStartPacket("spock")))
	f, err := wire.DecodeFrame(wire.NewBuffer(c.sbuff), proto.Login, proto.ClientToServer, false)
	require.NoError(t, err)
	assert.Equal(t, proto.IDLoginStart, f.ID)
}

func TestConnResetRestoresDefaults(t *testing.T) {
	c, _ := newTestConn(t)

	c.SetState(proto.Play)
	c.SetCompression(64)
	require.NoError(t, c.EnableCrypto([]byte("0123456789abcdef")))
	require.NoError(t, c.Push(KeepAlivePacket(1)))
	c.connected = true

	c.Reset()

	assert.False(t, c.Connected())
	assert.Equal(t, proto.Handshake, c.State())
	assert.False(t, c.CompressionEnabled())
	assert.False(t, c.Encrypted())
	assert.Nil(t, c.cipher)
	assert.Empty(t, c.sbuff)
	assert.Equal(t, 0, c.rbuff.Len())
}

func TestConnConnectWhileConnectedRejected(t *testing.T) {
	c, _ := newTestConn(t)
	c.connected = true

	err := c.Connect("localhost", 25565)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}
