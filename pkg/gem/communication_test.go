package gem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolimst/gosecs/pkg/hsms"
)

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

func newLoopbackPair(t *testing.T, addr string) (*hsms.Session, *hsms.Session, context.CancelFunc) {
	t.Helper()
	cfg := hsms.DefaultConfig()

	passive := hsms.NewSession(1, hsms.RolePassive, nil, cfg, nil)
	passiveConn := hsms.NewPassiveConnection(addr, cfg, passive, nil)
	passive.SetConnection(passiveConn)

	active := hsms.NewSession(1, hsms.RoleActive, nil, cfg, nil)
	activeConn := hsms.NewActiveConnection(addr, cfg, active, nil)
	active.SetConnection(activeConn)

	ctx, cancel := context.WithCancel(context.Background())
	passiveConn.Enable()
	passive.Start(ctx)
	activeConn.Enable()
	active.Start(ctx)

	return active, passive, func() {
		active.Stop()
		activeConn.Disable()
		passive.Stop()
		passiveConn.Disable()
		cancel()
	}
}

func TestCommunication_BothSidesReachCommunicating(t *testing.T) {
	active, passive, stop := newLoopbackPair(t, "127.0.0.1:19900")
	defer stop()

	cfg := hsms.DefaultConfig()
	activeComm := NewCommunication(active, Identity{ModelName: "HOST", SoftwareRev: "1.0"}, cfg, nil)
	passiveComm := NewCommunication(passive, Identity{ModelName: "EQP", SoftwareRev: "1.0"}, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, passiveComm.Enable(ctx))
	require.NoError(t, activeComm.Enable(ctx))

	waitFor(t, 3*time.Second, func() bool {
		return activeComm.State() == StateCommunicating && passiveComm.State() == StateCommunicating
	})
}

func TestCommunication_Disable_ReturnsToDisabled(t *testing.T) {
	active, passive, stop := newLoopbackPair(t, "127.0.0.1:19901")
	defer stop()

	cfg := hsms.DefaultConfig()
	activeComm := NewCommunication(active, Identity{ModelName: "HOST"}, cfg, nil)
	passiveComm := NewCommunication(passive, Identity{ModelName: "EQP"}, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, passiveComm.Enable(ctx))
	require.NoError(t, activeComm.Enable(ctx))

	waitFor(t, 3*time.Second, func() bool { return activeComm.State() == StateCommunicating })

	require.NoError(t, activeComm.Disable())
	assert.Equal(t, StateDisabled, activeComm.State())
}
