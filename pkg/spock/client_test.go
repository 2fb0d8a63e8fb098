package spock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenesan/SpockBot/internal/proto"
	"github.com/chenesan/SpockBot/internal/wire"
)

func newTestClient(t *testing.T, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.IdleInterval = 10 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestIdleTickSleepsFallbackInterval(t *testing.T) {
	c := newTestClient(t, func(cfg *Config) { cfg.IdleInterval = 50 * time.Millisecond })

	start := time.Now()
	c.Tick()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.False(t, c.Conn().Connected())
}

func TestIdleTickBoundedByTimerDeadline(t *testing.T) {
	c := newTestClient(t, func(cfg *Config) { cfg.IdleInterval = time.Second })

	fired := false
	c.Timers().Register(20*time.Millisecond, 1, func() { fired = true })

	start := time.Now()
	c.Tick()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 500*time.Millisecond, "timer deadline bounds the idle sleep")
	assert.True(t, fired, "due timer fires at the end of the tick")
}

func TestStartLoginAdvancesState(t *testing.T) {
	c := newTestClient(t, nil)

	var states []proto.State
	c.Bus().On(EventState, func(ev Event) { states = append(states, ev.State) })

	require.NoError(t, c.StartLogin("spock"))

	assert.Equal(t, proto.Login, c.Conn().State())
	assert.Equal(t, []proto.State{proto.Login}, states)
	assert.NotEmpty(t, c.Conn().sbuff, "handshake and login start queued")
}

// The full login exchange driven purely through decoded control packets:
// handshake to Login, compression announcement, then login success to Play.
func TestControlPacketsDriveStateMachine(t *testing.T) {
	c := newTestClient(t, nil)
	conn := c.Conn()

	require.NoError(t, c.StartLogin("spock"))
	require.Equal(t, proto.Login, conn.State())

	// Server announces compression with threshold 64 (still uncompressed
	// layout for this frame).
	enc, err := wire.EncodeFrame(&wire.Frame{
		ID:   proto.IDLoginSetCompression,
		Data: wire.AppendVarint(nil, 64),
	}, false, -1)
	require.NoError(t, err)
	require.NoError(t, conn.ReadBytes(enc))

	assert.True(t, conn.CompressionEnabled())
	assert.Equal(t, int32(64), conn.CompressionThreshold())
	assert.Equal(t, proto.Login, conn.State(), "compression must not change protocol state")

	// Login success arrives in the compressed layout and forces Play.
	enc, err = wire.EncodeFrame(&wire.Frame{ID: proto.IDLoginSuccess}, true, 64)
	require.NoError(t, err)
	require.NoError(t, conn.ReadBytes(enc))

	assert.Equal(t, proto.Play, conn.State())
}

func TestKeepAliveEchoed(t *testing.T) {
	c := newTestClient(t, nil)
	conn := c.Conn()
	conn.SetState(proto.Play)

	enc, err := wire.EncodeFrame(&wire.Frame{
		ID:   proto.IDPlayKeepAlive,
		Data: wire.AppendVarint(nil, 0x1234),
	}, false, -1)
	require.NoError(t, err)
	require.NoError(t, conn.ReadBytes(enc))

	// The echo is queued outbound with the same id.
	f, err := wire.DecodeFrame(wire.NewBuffer(conn.sbuff), proto.Play, proto.ClientToServer, false)
	require.NoError(t, err)
	assert.Equal(t, proto.IDPlayKeepAliveServerbound, f.ID)
	id, err := wire.ReadVarint(wire.NewBuffer(f.Data))
	require.NoError(t, err)
	assert.Equal(t, int32(0x1234), id)
}

func TestServerDisconnectIsInformative(t *testing.T) {
	c := newTestClient(t, nil)
	conn := c.Conn()
	conn.SetState(proto.Play)

	var reasons []string
	c.Bus().On(EventDisconnect, func(ev Event) { reasons = append(reasons, ev.Reason) })

	enc, err := wire.EncodeFrame(&wire.Frame{
		ID:   proto.IDPlayDisconnect,
		Data: wire.AppendString(nil, "server closing"),
	}, false, -1)
	require.NoError(t, err)
	require.NoError(t, conn.ReadBytes(enc))

	assert.Equal(t, []string{"server closing"}, reasons)
	assert.Equal(t, proto.Play, conn.State(), "disconnect packet does not change state by itself")
}

// Hang-up and OS error must produce the identical reset and notification
// sequence.
func TestHangupAndErrorEquivalence(t *testing.T) {
	observe := func(kind EventKind) (resets []string, killed bool) {
		c := newTestClient(t, nil)
		c.Conn().connected = true
		c.Conn().SetState(proto.Play)

		c.Bus().On(EventDisconnect, func(ev Event) { resets = append(resets, ev.Reason) })
		c.Bus().Emit(Event{Kind: kind})

		assert.False(t, c.Conn().Connected())
		assert.Equal(t, proto.Handshake, c.Conn().State(), "engine reset to a clean handshake state")
		return resets, c.Bus().Killed()
	}

	hupReasons, hupKilled := observe(EventSocketHup)
	errReasons, errKilled := observe(EventSocketErr)

	assert.Len(t, hupReasons, 1)
	assert.Len(t, errReasons, 1)
	assert.Equal(t, hupKilled, errKilled)
	assert.True(t, hupKilled, "SockQuit kills the loop on socket failure")
}

func TestSockQuitDisabledKeepsLoopAlive(t *testing.T) {
	c := newTestClient(t, func(cfg *Config) { cfg.SockQuit = false })
	c.Conn().connected = true

	c.Bus().Emit(Event{Kind: EventSocketHup})

	assert.False(t, c.Conn().Connected())
	assert.False(t, c.Bus().Killed(), "engine stays reusable for a fresh connect")
}
