package gem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolimst/gosecs/pkg/hsms"
	"github.com/wolimst/gosecs/pkg/secsvar"
)

func TestEquipment_Start_ReachesEquipmentOffline(t *testing.T) {
	active, passive, stop := newLoopbackPair(t, "127.0.0.1:19910")
	defer stop()

	cfg := hsms.DefaultConfig()
	comm := NewCommunication(passive, Identity{ModelName: "EQP"}, cfg, nil)
	equipment := NewEquipment(passive, comm, cfg, nil)

	_ = active // host side only needs to answer control traffic, handled by Session

	require.NoError(t, equipment.Start())
	assert.Equal(t, StateEquipmentOffline, equipment.State())
}

func TestEquipment_SwitchOnline_ReachesOnlineLocal(t *testing.T) {
	active, passive, stop := newLoopbackPair(t, "127.0.0.1:19911")
	defer stop()

	cfg := hsms.DefaultConfig()
	cfg.T3 = 1 * time.Second
	comm := NewCommunication(passive, Identity{ModelName: "EQP"}, cfg, nil)
	equipment := NewEquipment(passive, comm, cfg, nil)

	require.NoError(t, equipment.Start())
	require.NoError(t, equipment.SwitchOnline())

	waitFor(t, 3*time.Second, func() bool { return equipment.State() == StateOnlineLocal })
	_ = active
}

func TestEquipment_RegisterStatusVariable_ServesS1F3(t *testing.T) {
	active, passive, stop := newLoopbackPair(t, "127.0.0.1:19912")
	defer stop()

	cfg := hsms.DefaultConfig()
	comm := NewCommunication(passive, Identity{ModelName: "EQP"}, cfg, nil)
	equipment := NewEquipment(passive, comm, cfg, nil)

	const customSVID = 2000
	equipment.RegisterStatusVariable(StatusVariable{
		SVID: customSVID,
		Name: "UnitCount",
		Get: func() secsvar.Variable {
			v, _ := secsvar.NewUint(4, 99)
			return v
		},
	})

	svidVar, err := secsvar.NewUint(4, uint64(customSVID))
	require.NoError(t, err)
	payload, err := arrayOf(secsvar.NewDynamic(-1, secsvar.FormatU4), []secsvar.Variable{svidVar}).Encode()
	require.NoError(t, err)

	rsp, err := active.SendAndWaitForResponse(1, 3, payload)
	require.NoError(t, err)
	assert.Equal(t, byte(4), rsp.Header.Function)

	arr := secsvar.NewArray(secsvar.NewDynamic(-1), -1)
	_, err = arr.Decode(rsp.Payload)
	require.NoError(t, err)
	require.Equal(t, 1, arr.Size())

	item, err := arr.Get(0)
	require.NoError(t, err)
	inner := unwrapDynamic(item)
	uintVal, ok := inner.(*secsvar.Uint)
	require.True(t, ok)
	assert.Equal(t, []uint64{99}, uintVal.Values())
}
