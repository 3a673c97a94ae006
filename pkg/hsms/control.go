package hsms

// Control message constructors for the SType control messages: Select,
// Deselect, Linktest, Reject, and Separate.

// NewSelectReq builds a Select.req control message for sessionID.
func NewSelectReq(sessionID uint16, system uint32) Packet {
	return Packet{Header: Header{SessionID: sessionID, SType: STypeSelectReq, System: system}}
}

// NewSelectRsp builds a Select.rsp reply to req. selectStatus is placed in
// the Function byte: 0 communication established, 1 already active, 2 not
// ready, 3 exhausted, 4-255 reserved.
func NewSelectRsp(req Packet, selectStatus byte) Packet {
	return Packet{Header: Header{
		SessionID: req.Header.SessionID,
		Function:  selectStatus,
		SType:     STypeSelectRsp,
		System:    req.Header.System,
	}}
}

// NewDeselectReq builds a Deselect.req control message.
func NewDeselectReq(sessionID uint16, system uint32) Packet {
	return Packet{Header: Header{SessionID: sessionID, SType: STypeDeselectReq, System: system}}
}

// NewDeselectRsp builds a Deselect.rsp reply to req. deselectStatus: 0
// ended, 1 not yet established, 2 busy, 3-255 reserved.
func NewDeselectRsp(req Packet, deselectStatus byte) Packet {
	return Packet{Header: Header{
		SessionID: req.Header.SessionID,
		Function:  deselectStatus,
		SType:     STypeDeselectRsp,
		System:    req.Header.System,
	}}
}

// NewLinktestReq builds a Linktest.req control message.
func NewLinktestReq(system uint32) Packet {
	return Packet{Header: Header{SessionID: ControlSessionID, SType: STypeLinktestReq, System: system}}
}

// NewLinktestRsp builds a Linktest.rsp reply to req.
func NewLinktestRsp(req Packet) Packet {
	return Packet{Header: Header{SessionID: ControlSessionID, SType: STypeLinktestRsp, System: req.Header.System}}
}

// NewSeparateReq builds a Separate.req control message.
func NewSeparateReq(sessionID uint16, system uint32) Packet {
	return Packet{Header: Header{SessionID: sessionID, SType: STypeSeparateReq, System: system}}
}

// NewRejectReq builds a Reject.req for the given offending message's
// sessionID/pType/sType/system. Reason 2 (PType not supported) places pType in
// the Stream byte, every other reason places sType there.
func NewRejectReq(sessionID uint16, pType byte, sType SType, system uint32, reasonCode byte) Packet {
	streamByte := byte(sType)
	if reasonCode == RejectReasonPTypeNotSupported {
		streamByte = pType
	}
	return Packet{Header: Header{
		SessionID: sessionID,
		Stream:    streamByte,
		Function:  reasonCode,
		SType:     STypeRejectReq,
		System:    system,
	}}
}
