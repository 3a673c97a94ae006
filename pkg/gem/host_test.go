package gem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolimst/gosecs/pkg/hsms"
)

func TestHost_GoOnline_AfterRemoteOffline_IsAcknowledged(t *testing.T) {
	active, passive, stop := newLoopbackPair(t, "127.0.0.1:19920")
	defer stop()

	cfg := hsms.DefaultConfig()
	cfg.T3 = 1 * time.Second
	comm := NewCommunication(passive, Identity{ModelName: "EQP"}, cfg, nil)
	equipment := NewEquipment(passive, comm, cfg, nil)
	require.NoError(t, equipment.Start())
	require.NoError(t, equipment.SwitchOnline())
	waitFor(t, 3*time.Second, func() bool { return equipment.State() == StateOnlineLocal })

	host := NewHost(active, nil, nil)

	offlineAck, err := host.GoOffline()
	require.NoError(t, err)
	assert.Equal(t, byte(0), offlineAck)
	waitFor(t, 2*time.Second, func() bool { return equipment.State() == StateHostOffline })

	onlineAck, err := host.GoOnline()
	require.NoError(t, err)
	assert.Equal(t, byte(0), onlineAck)
}

func TestHost_EnableAlarm_RoundTrips(t *testing.T) {
	active, passive, stop := newLoopbackPair(t, "127.0.0.1:19921")
	defer stop()

	cfg := hsms.DefaultConfig()
	comm := NewCommunication(passive, Identity{ModelName: "EQP"}, cfg, nil)
	equipment := NewEquipment(passive, comm, cfg, nil)
	require.NoError(t, equipment.Start())
	equipment.RegisterAlarm(Alarm{ALID: 500, Name: "OVERTEMP", Text: "chamber overtemperature"})

	host := NewHost(active, nil, nil)

	require.NoError(t, host.EnableAlarm(500))

	enabled, err := host.ListEnabledAlarms()
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, 500, enabled[0].ALID)
}
