package hsms

import (
	"context"
	"sync"
	"time"

	"github.com/wolimst/gosecs/internal/gemlog"
	"github.com/wolimst/gosecs/internal/secserr"
	"github.com/wolimst/gosecs/pkg/dataitem"
)

// Role distinguishes which side of the Select handshake a Session plays.
type Role int

const (
	RoleActive Role = iota
	RolePassive
)

// Handler processes a decoded SType-0 data message and optionally returns a
// reply message (sent automatically with the inbound system id). A nil
// return means no reply is sent.
type Handler func(s *Session, p Packet) (reply *Packet, err error)

// pendingEntry is the single-slot delivery queue an outbound request
// registers under its system id to correlate the eventual reply.
type pendingEntry struct {
	ch chan Packet
}

// Session implements the HSMS session layer (C5): the
// connected/selected state pair, system-id correlation, Select/Deselect/
// Linktest/Separate/Reject logic, and SType-0 dispatch to registered
// stream/function handlers.
type Session struct {
	id     uint16
	role   Role
	config Config
	conn   *Connection
	log    gemlog.Logger

	mu       sync.Mutex
	selected bool
	system   uint32
	pending  map[uint32]*pendingEntry
	handlers map[SFKey]Handler

	ctx    context.Context
	cancel context.CancelFunc

	onSelected   func()
	onDeselected func()

	registry *dataitem.Registry
}

// SFKey identifies a stream/function pair for handler registration. It
// mirrors dataitem.SFKey so callers need not import dataitem just to wire
// a Handler.
type SFKey struct {
	Stream   byte
	Function byte
}

// NewSession builds a Session bound to sessionID, driving conn, with the
// given timing configuration.
func NewSession(sessionID uint16, role Role, conn *Connection, cfg Config, log gemlog.Logger) *Session {
	if log == nil {
		log = gemlog.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       sessionID,
		role:     role,
		config:   cfg,
		conn:     conn,
		log:      log,
		pending:  make(map[uint32]*pendingEntry),
		handlers: make(map[SFKey]Handler),
		ctx:      ctx,
		cancel:   cancel,
		registry: dataitem.NewDefaultRegistry(),
	}
}

// OnSelected/OnDeselected register callbacks fired when the selected state
// flips, used by the GEM communication FSM (C7) to react to link state.
func (s *Session) OnSelected(f func())   { s.onSelected = f }
func (s *Session) OnDeselected(f func()) { s.onDeselected = f }

// SetConnection binds the Connection this Session sends through. It exists
// because a Connection's Delegate (this Session) must be constructed before
// the Connection itself, closing the reference cycle after the fact.
func (s *Session) SetConnection(conn *Connection) { s.conn = conn }

// Handle registers h to process inbound SType-0 messages for (stream,function).
func (s *Session) Handle(stream, function byte, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[SFKey{stream, function}] = h
}

// IsSelected reports whether the session is currently connected and selected.
func (s *Session) IsSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) nextSystem() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = (s.system + 1) & 0x7FFFFFFF
	return s.system
}

// Start launches the Linktest timer (active role only) and the session's
// internal context, used to cancel pending waits on shutdown.
func (s *Session) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	if s.role == RoleActive {
		go s.linktestLoop(s.ctx)
	}
}

// Stop cancels any in-flight waits and marks the session not selected.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	s.selected = false
	s.mu.Unlock()
}

func (s *Session) linktestLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.LinktestPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.IsSelected() {
				continue
			}
			if _, err := s.sendControlAndWait(NewLinktestReq(s.nextSystem()), STypeLinktestRsp); err != nil {
				s.log.Warnf("hsms: linktest on session %d: %v", s.id, err)
			}
		}
	}
}

// EstablishSelected actively sends Select.req and waits up to T6 for
// Select.rsp, used by the active role after connection_established.
func (s *Session) EstablishSelected() error {
	rsp, err := s.sendControlAndWait(NewSelectReq(ControlSessionID, s.nextSystem()), STypeSelectRsp)
	if err != nil {
		return err
	}
	if rsp.Header.Function != 0 {
		return secserr.New(secserr.KindRejectedByPeer, "hsms: select refused, status %d", rsp.Header.Function)
	}
	s.setSelected(true)
	return nil
}

// Separate sends Separate.req; the caller is responsible for then closing
// the underlying Connection.
func (s *Session) Separate() error {
	return s.conn.SendPacket(NewSeparateReq(ControlSessionID, s.nextSystem()))
}

func (s *Session) setSelected(v bool) {
	s.mu.Lock()
	changed := s.selected != v
	s.selected = v
	s.mu.Unlock()
	if !changed {
		return
	}
	if v && s.onSelected != nil {
		s.onSelected()
	}
	if !v && s.onDeselected != nil {
		s.onDeselected()
	}
}

// OnConnectionEstablished implements part of the Connection Delegate; for
// the active role it starts the Select handshake in the background.
func (s *Session) OnConnectionEstablished() {
	if s.role == RoleActive {
		go func() {
			if err := s.EstablishSelected(); err != nil {
				s.log.Warnf("hsms: select handshake on session %d failed: %v", s.id, err)
			}
		}()
	}
}

// OnConnectionBeforeClosed implements part of the Connection Delegate.
func (s *Session) OnConnectionBeforeClosed() {}

// OnConnectionClosed implements part of the Connection Delegate.
func (s *Session) OnConnectionClosed() {
	s.setSelected(false)
	s.mu.Lock()
	for sys, entry := range s.pending {
		close(entry.ch)
		delete(s.pending, sys)
	}
	s.mu.Unlock()
}

// OnPacketReceived implements the Connection Delegate: it classifies p by
// SType and either resolves a pending waiter, answers a control message, or
// dispatches SType-0 data to a registered Handler.
func (s *Session) OnPacketReceived(p Packet) {
	if p.Header.SType != STypeDataMessage {
		if s.deliverPending(p) {
			return
		}
		s.handleControl(p)
		return
	}

	if !s.IsSelected() {
		_ = s.conn.SendPacket(NewRejectReq(ControlSessionID, p.Header.PType, STypeDataMessage, p.Header.System, RejectReasonNotSelected))
		return
	}

	if s.deliverPending(p) {
		return
	}
	go s.dispatchData(p)
}

func (s *Session) deliverPending(p Packet) bool {
	s.mu.Lock()
	entry, ok := s.pending[p.Header.System]
	if ok {
		delete(s.pending, p.Header.System)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	entry.ch <- p
	return true
}

func (s *Session) handleControl(p Packet) {
	switch p.Header.SType {
	case STypeSelectReq:
		status := byte(0)
		if s.IsSelected() {
			status = 1
		}
		if err := s.conn.SendPacket(NewSelectRsp(p, status)); err == nil && status == 0 {
			s.setSelected(true)
		}
	case STypeDeselectReq:
		_ = s.conn.SendPacket(NewDeselectRsp(p, 0))
		s.setSelected(false)
	case STypeLinktestReq:
		_ = s.conn.SendPacket(NewLinktestRsp(p))
	case STypeSeparateReq:
		s.setSelected(false)
		if s.conn != nil {
			s.conn.Disable()
		}
	case STypeRejectReq:
		s.log.Debugf("hsms: session %d received reject, reason %d", s.id, p.Header.Function)
	default:
		s.log.Warnf("hsms: session %d received unhandled control stype %s", s.id, p.Header.SType)
	}
}

func (s *Session) dispatchData(p Packet) {
	key := SFKey{p.Header.Stream, p.Header.Function}
	s.mu.Lock()
	h, ok := s.handlers[key]
	s.mu.Unlock()

	wBit := p.Header.WBit
	if !ok {
		name := "unknown"
		if spec, known := s.registry.Lookup(int(p.Header.Stream), int(p.Header.Function)); known {
			name = spec.Name
		}
		s.log.Debugf("hsms: no handler for S%dF%d (%s) on session %d", p.Header.Stream, p.Header.Function, name, s.id)
		if wBit {
			s.replyUnrecognized(p)
		}
		return
	}

	reply, err := func() (rp *Packet, rerr error) {
		defer func() {
			if r := recover(); r != nil {
				rerr = secserr.New(secserr.KindInvalidSType, "hsms: handler for S%dF%d panicked: %v", p.Header.Stream, p.Header.Function, r)
			}
		}()
		return h(s, p)
	}()

	if err != nil {
		s.log.Errorf("hsms: handler for S%dF%d on session %d failed: %v", p.Header.Stream, p.Header.Function, s.id, err)
		if wBit {
			s.replyAbort(p)
		}
		return
	}
	if reply != nil && wBit {
		reply.Header.SessionID = p.Header.SessionID
		reply.Header.System = p.Header.System
		_ = s.conn.SendPacket(*reply)
	}
}

func (s *Session) replyUnrecognized(p Packet) {
	reply := Packet{Header: Header{
		SessionID: p.Header.SessionID,
		Stream:    9,
		Function:  5,
		System:    p.Header.System,
	}}
	_ = s.conn.SendPacket(reply)
}

func (s *Session) replyAbort(p Packet) {
	reply := Packet{Header: Header{
		SessionID: p.Header.SessionID,
		Stream:    p.Header.Stream,
		Function:  0,
		System:    p.Header.System,
	}}
	_ = s.conn.SendPacket(reply)
}

// SendStreamFunction sends a data packet with w=wantsReply, fire-and-forget.
func (s *Session) SendStreamFunction(stream, function byte, wantsReply bool, payload []byte) error {
	p := Packet{
		Header: Header{
			SessionID: s.id,
			WBit:      wantsReply,
			Stream:    stream,
			Function:  function,
			System:    s.nextSystem(),
		},
		Payload: payload,
	}
	return s.conn.SendPacket(p)
}

// SendAndWaitForResponse sends a data packet with w=1 and blocks until the
// correlated reply arrives or T3 elapses.
func (s *Session) SendAndWaitForResponse(stream, function byte, payload []byte) (Packet, error) {
	system := s.nextSystem()
	p := Packet{Header: Header{
		SessionID: s.id,
		WBit:      true,
		Stream:    stream,
		Function:  function,
		System:    system,
	}, Payload: payload}
	return s.sendAndWait(p, s.config.T3)
}

// SendResponse replies to an inbound request identified by system, with w=0.
func (s *Session) SendResponse(stream, function byte, system uint32, payload []byte) error {
	p := Packet{Header: Header{
		SessionID: s.id,
		Stream:    stream,
		Function:  function,
		System:    system,
	}, Payload: payload}
	return s.conn.SendPacket(p)
}

func (s *Session) sendControlAndWait(p Packet, expect SType) (Packet, error) {
	return s.sendAndWait(p, s.config.T6)
}

func (s *Session) sendAndWait(p Packet, timeout time.Duration) (Packet, error) {
	entry := &pendingEntry{ch: make(chan Packet, 1)}
	s.mu.Lock()
	s.pending[p.Header.System] = entry
	s.mu.Unlock()

	if err := s.conn.SendPacket(p); err != nil {
		s.mu.Lock()
		delete(s.pending, p.Header.System)
		s.mu.Unlock()
		return Packet{}, err
	}

	select {
	case rsp, ok := <-entry.ch:
		if !ok {
			return Packet{}, secserr.New(secserr.KindConnectionClosed, "hsms: connection closed while awaiting system %d", p.Header.System)
		}
		return rsp, nil
	case <-time.After(timeout):
		s.mu.Lock()
		delete(s.pending, p.Header.System)
		s.mu.Unlock()
		return Packet{}, secserr.New(secserr.KindTimeout, "hsms: timed out awaiting system %d", p.Header.System)
	case <-s.ctx.Done():
		return Packet{}, secserr.New(secserr.KindConnectionClosed, "hsms: session stopped while awaiting system %d", p.Header.System)
	}
}
