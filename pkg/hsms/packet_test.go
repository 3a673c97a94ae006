package hsms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacket_EncodeDecodeRoundtrip(t *testing.T) {
	p := Packet{
		Header: Header{
			SessionID: 1,
			WBit:      true,
			Stream:    6,
			Function:  11,
			PType:     0,
			SType:     STypeDataMessage,
			System:    42,
		},
		Payload: []byte{0x01, 0x02, 0x03},
	}

	encoded := p.Encode()
	assert.Len(t, encoded, 14+3)

	decoded, err := DecodePacket(encoded)
	require.NoError(t, err)
	assert.Equal(t, p.Header, decoded.Header)
	assert.Equal(t, p.Payload, decoded.Payload)
}

func TestPacket_Encode_WBitSetsHighStreamBit(t *testing.T) {
	p := Packet{Header: Header{Stream: 1, WBit: true}}
	encoded := p.Encode()
	assert.Equal(t, byte(0b1000_0001), encoded[6])
}

func TestDecodePacket_RejectsShortFrame(t *testing.T) {
	_, err := DecodePacket([]byte{0, 0, 0, 1})
	assert.Error(t, err)
}

func TestDecodePacket_RejectsLengthMismatch(t *testing.T) {
	p := Packet{Header: Header{SessionID: 1}}
	encoded := p.Encode()
	encoded[3]++ // corrupt the declared length
	_, err := DecodePacket(encoded)
	assert.Error(t, err)
}

func TestScanFrame_WaitsForCompleteFrame(t *testing.T) {
	p := Packet{Header: Header{SessionID: 1}}
	full := p.Encode()

	_, ok := ScanFrame(full[:len(full)-1])
	assert.False(t, ok)

	n, ok := ScanFrame(full)
	assert.True(t, ok)
	assert.Equal(t, len(full), n)
}

func TestControlConstructors_SetExpectedSType(t *testing.T) {
	req := NewSelectReq(1, 100)
	assert.Equal(t, STypeSelectReq, req.Header.SType)
	assert.Equal(t, uint16(1), req.Header.SessionID)

	rsp := NewSelectRsp(req, 0)
	assert.Equal(t, STypeSelectRsp, rsp.Header.SType)
	assert.Equal(t, req.Header.System, rsp.Header.System)
	assert.Equal(t, byte(0), rsp.Header.Function)

	linktest := NewLinktestReq(7)
	assert.Equal(t, STypeLinktestReq, linktest.Header.SType)

	reject := NewRejectReq(1, 0, STypeSelectReq, 5, RejectReasonNotSelected)
	assert.Equal(t, STypeRejectReq, reject.Header.SType)
	assert.Equal(t, RejectReasonNotSelected, reject.Header.Function)
}
