package hsms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDelegate struct {
	mu        sync.Mutex
	connected int
	closed    int
	received  []Packet
}

func (d *recordingDelegate) OnConnectionEstablished() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected++
}

func (d *recordingDelegate) OnConnectionBeforeClosed() {}

func (d *recordingDelegate) OnConnectionClosed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
}

func (d *recordingDelegate) OnPacketReceived(p Packet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, p)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestConnection_ActivePassiveLoopback_DeliversPacket(t *testing.T) {
	cfg := DefaultConfig()

	passiveDelegate := &recordingDelegate{}
	passive := NewPassiveConnection("127.0.0.1:19800", cfg, passiveDelegate, nil)
	passive.Enable()
	defer passive.Disable()

	activeDelegate := &recordingDelegate{}
	active := NewActiveConnection("127.0.0.1:19800", cfg, activeDelegate, nil)
	active.Enable()
	defer active.Disable()

	waitFor(t, 2*time.Second, func() bool { return active.IsConnected() && passive.IsConnected() })

	p := Packet{Header: Header{SessionID: 1, Stream: 1, Function: 1, System: 7}, Payload: []byte{0xAA}}
	require.NoError(t, active.SendPacket(p))

	waitFor(t, 2*time.Second, func() bool {
		passiveDelegate.mu.Lock()
		defer passiveDelegate.mu.Unlock()
		return len(passiveDelegate.received) == 1
	})

	passiveDelegate.mu.Lock()
	defer passiveDelegate.mu.Unlock()
	assert.Equal(t, p.Payload, passiveDelegate.received[0].Payload)
	assert.Equal(t, p.Header.System, passiveDelegate.received[0].Header.System)
}

func TestSession_SelectHandshake_OverLoopback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.T5 = 1 * time.Second

	passiveSession := NewSession(1, RolePassive, nil, cfg, nil)
	passiveConn := NewPassiveConnection("127.0.0.1:19801", cfg, passiveSession, nil)
	passiveSession.SetConnection(passiveConn)

	activeSession := NewSession(1, RoleActive, nil, cfg, nil)
	activeConn := NewActiveConnection("127.0.0.1:19801", cfg, activeSession, nil)
	activeSession.SetConnection(activeConn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	passiveConn.Enable()
	defer passiveConn.Disable()
	passiveSession.Start(ctx)
	defer passiveSession.Stop()

	activeConn.Enable()
	defer activeConn.Disable()
	activeSession.Start(ctx)
	defer activeSession.Stop()

	waitFor(t, 3*time.Second, func() bool {
		return activeSession.IsSelected() && passiveSession.IsSelected()
	})
}

func TestSession_DataMessage_DispatchesToHandler(t *testing.T) {
	cfg := DefaultConfig()

	passiveSession := NewSession(1, RolePassive, nil, cfg, nil)
	passiveConn := NewPassiveConnection("127.0.0.1:19802", cfg, passiveSession, nil)
	passiveSession.SetConnection(passiveConn)

	passiveSession.Handle(1, 1, func(s *Session, p Packet) (*Packet, error) {
		return &Packet{Header: Header{Stream: 1, Function: 2}, Payload: []byte{0x01}}, nil
	})

	activeSession := NewSession(1, RoleActive, nil, cfg, nil)
	activeConn := NewActiveConnection("127.0.0.1:19802", cfg, activeSession, nil)
	activeSession.SetConnection(activeConn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	passiveConn.Enable()
	defer passiveConn.Disable()
	passiveSession.Start(ctx)
	defer passiveSession.Stop()

	activeConn.Enable()
	defer activeConn.Disable()
	activeSession.Start(ctx)
	defer activeSession.Stop()

	waitFor(t, 3*time.Second, func() bool { return activeSession.IsSelected() })

	rsp, err := activeSession.SendAndWaitForResponse(1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(2), rsp.Header.Function)
	assert.Equal(t, []byte{0x01}, rsp.Payload)
}
