// Package hsms implements the HSMS transport layer (SEMI E37): the
// length-prefixed packet framer (C3), active/passive TCP connections (C4),
// and the session state machine that manages Select/Deselect/Linktest/
// Separate/Reject control messages and T3/T5/T6 timing with request/
// response correlation (C5).
package hsms

import (
	"encoding/binary"

	"github.com/wolimst/gosecs/internal/secserr"
)

// SType identifies the kind of an HSMS message.
type SType byte

const (
	STypeDataMessage SType = 0
	STypeSelectReq   SType = 1
	STypeSelectRsp   SType = 2
	STypeDeselectReq SType = 3
	STypeDeselectRsp SType = 4
	STypeLinktestReq SType = 5
	STypeLinktestRsp SType = 6
	STypeRejectReq   SType = 7
	STypeSeparateReq SType = 9
)

func (t SType) String() string {
	switch t {
	case STypeDataMessage:
		return "data"
	case STypeSelectReq:
		return "select.req"
	case STypeSelectRsp:
		return "select.rsp"
	case STypeDeselectReq:
		return "deselect.req"
	case STypeDeselectRsp:
		return "deselect.rsp"
	case STypeLinktestReq:
		return "linktest.req"
	case STypeLinktestRsp:
		return "linktest.rsp"
	case STypeRejectReq:
		return "reject.req"
	case STypeSeparateReq:
		return "separate.req"
	default:
		return "unknown"
	}
}

// ControlSessionID is the session id used on every non-data (control)
// HSMS message.
const ControlSessionID uint16 = 0xFFFF

// Reject reason codes.
const (
	RejectReasonSTypeNotSupported byte = 1
	RejectReasonPTypeNotSupported byte = 2
	RejectReasonTransactionNotOpen byte = 3
	RejectReasonNotSelected        byte = 4
)

// Header is the 10-byte HSMS message header.
type Header struct {
	SessionID uint16
	WBit      bool
	Stream    byte // low 7 bits when SType==data; otherwise SType-specific
	Function  byte
	PType     byte
	SType     SType
	System    uint32
}

// Packet is a complete HSMS message: header plus payload bytes (empty for
// every non-data SType).
type Packet struct {
	Header  Header
	Payload []byte
}

// Encode returns the wire bytes of p: a 4-byte big-endian length prefix
// (counting header+payload, excluding itself), the 10-byte header, then
// the payload.
func (p Packet) Encode() []byte {
	out := make([]byte, 14+len(p.Payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(10+len(p.Payload)))
	binary.BigEndian.PutUint16(out[4:6], p.Header.SessionID)

	streamByte := p.Header.Stream & 0b0111_1111
	if p.Header.WBit {
		streamByte |= 0b1000_0000
	}
	out[6] = streamByte
	out[7] = p.Header.Function
	out[8] = p.Header.PType
	out[9] = byte(p.Header.SType)
	binary.BigEndian.PutUint32(out[10:14], p.Header.System)
	copy(out[14:], p.Payload)
	return out
}

// DecodePacket decodes a single complete frame (length prefix + header +
// payload) from the front of data. It does not consume partial frames;
// callers should use ScanFrame to detect frame boundaries in a streaming
// buffer first.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < 14 {
		return Packet{}, secserr.New(secserr.KindFormatMismatch, "hsms: frame shorter than 14 bytes")
	}
	length := binary.BigEndian.Uint32(data[0:4])
	if int(length) != len(data)-4 {
		return Packet{}, secserr.New(secserr.KindFormatMismatch, "hsms: declared length %d does not match body %d", length, len(data)-4)
	}

	header := Header{
		SessionID: binary.BigEndian.Uint16(data[4:6]),
		WBit:      data[6]&0b1000_0000 != 0,
		Stream:    data[6] & 0b0111_1111,
		Function:  data[7],
		PType:     data[8],
		SType:     SType(data[9]),
		System:    binary.BigEndian.Uint32(data[10:14]),
	}
	payload := append([]byte(nil), data[14:]...)
	return Packet{Header: header, Payload: payload}, nil
}

// ScanFrame peeks the length prefix at the front of buf and reports whether
// a complete frame is available, and if so its total byte length
// (including the 4-byte length prefix).
func ScanFrame(buf []byte) (frameLen int, ok bool) {
	if len(buf) < 4 {
		return 0, false
	}
	length := binary.BigEndian.Uint32(buf[0:4])
	total := 4 + int(length)
	if len(buf) < total {
		return 0, false
	}
	return total, true
}
