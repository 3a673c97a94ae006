// Package gem implements the GEM (SEMI E30) layer atop HSMS: the
// communication-state machine shared by both roles (C7), the equipment-side
// control-state machine and data dictionaries (C8), and the host-side
// command/subscription API (C9).
package gem

import (
	"context"
	"sync"
	"time"

	"github.com/wolimst/gosecs/internal/gemlog"
	"github.com/wolimst/gosecs/internal/secserr"
	"github.com/wolimst/gosecs/pkg/fsm"
	"github.com/wolimst/gosecs/pkg/hsms"
	"github.com/wolimst/gosecs/pkg/secsvar"
)

// Communication states.
const (
	StateDisabled                    fsm.State = "disabled"
	StateEnabled                     fsm.State = "enabled"
	StateNotCommunicating            fsm.State = "not_communicating"
	StateEquipmentInitiatedConnect   fsm.State = "equipment_initiated_connect"
	StateWaitCRA                     fsm.State = "wait_cra"
	StateWaitDelay                   fsm.State = "wait_delay"
	StateCommunicating               fsm.State = "communicating"
)

// Communication events.
const (
	EventEnable             fsm.Event = "enable"
	EventDisable            fsm.Event = "disable"
	EventConnected          fsm.Event = "connected"
	EventCommunicationFail  fsm.Event = "communicationfail"
	EventT3Timeout          fsm.Event = "t3timeout"
	EventDelayTimeout       fsm.Event = "delaytimeout"
	EventS1F13Received      fsm.Event = "s1f13received"
	EventS1F14Received      fsm.Event = "s1f14received"
)

// Identity is the (model, software revision) pair exchanged by S1F13/S1F14.
type Identity struct {
	ModelName   string
	SoftwareRev string
}

// Communication drives the GEM communication-state machine for one HSMS
// session, issuing S1F13 on entry to WAIT_CRA and reacting to S1F14.
type Communication struct {
	session  *hsms.Session
	identity Identity
	config   hsms.Config
	log      gemlog.Logger

	machine *fsm.Machine

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	onCommunicating func()
	onNotCommunicating func()
}

// NewCommunication builds a Communication bound to session, registering its
// S1F13/S1F14 handlers.
func NewCommunication(session *hsms.Session, identity Identity, cfg hsms.Config, log gemlog.Logger) *Communication {
	if log == nil {
		log = gemlog.Nop{}
	}
	c := &Communication{session: session, identity: identity, config: cfg, log: log}

	c.machine = fsm.New(StateDisabled,
		[]fsm.EventDesc{
			{Name: EventEnable, Src: []fsm.State{StateDisabled}, Dst: StateEnabled},
			{Name: EventDisable, Src: []fsm.State{StateEnabled, StateNotCommunicating, StateEquipmentInitiatedConnect, StateWaitCRA, StateWaitDelay, StateCommunicating}, Dst: StateDisabled},
			{Name: EventConnected, Src: []fsm.State{StateNotCommunicating}, Dst: StateEquipmentInitiatedConnect},
			{Name: EventS1F13Received, Src: []fsm.State{StateWaitCRA, StateWaitDelay, StateCommunicating}, Dst: StateCommunicating},
			{Name: EventS1F14Received, Src: []fsm.State{StateWaitCRA}, Dst: StateCommunicating},
			{Name: EventT3Timeout, Src: []fsm.State{StateWaitCRA}, Dst: StateWaitDelay},
			{Name: EventDelayTimeout, Src: []fsm.State{StateWaitDelay}, Dst: StateWaitCRA},
			{Name: EventCommunicationFail, Src: []fsm.State{StateCommunicating, StateWaitCRA, StateWaitDelay, StateEquipmentInitiatedConnect}, Dst: StateNotCommunicating},
		},
		[]fsm.AutoEdge{
			{Src: StateEnabled, Dst: StateNotCommunicating},
			{Src: StateEquipmentInitiatedConnect, Dst: StateWaitCRA},
		},
		fsm.Callbacks{
			OnEnter: map[fsm.State]func(){
				StateWaitCRA: c.enterWaitCRA,
				StateWaitDelay: c.enterWaitDelay,
				StateCommunicating: c.enterCommunicating,
				StateNotCommunicating: c.enterNotCommunicating,
			},
		},
	)

	session.Handle(1, 13, c.handleS1F13)
	session.Handle(1, 14, c.handleS1F14)
	session.OnSelected(func() { _ = c.machine.Fire(EventConnected) })
	session.OnDeselected(func() { _ = c.machine.Fire(EventCommunicationFail) })

	return c
}

// OnCommunicating/OnNotCommunicating register callbacks fired when the
// machine enters COMMUNICATING / NOT_COMMUNICATING, used by GEM
// equipment/host layers.
func (c *Communication) OnCommunicating(f func())    { c.onCommunicating = f }
func (c *Communication) OnNotCommunicating(f func()) { c.onNotCommunicating = f }

// State returns the communication machine's current state.
func (c *Communication) State() fsm.State { return c.machine.Current() }

// Enable fires the enable event, which auto-forwards to NOT_COMMUNICATING.
func (c *Communication) Enable(ctx context.Context) error {
	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()
	return c.machine.Fire(EventEnable)
}

// Disable fires the disable event and cancels any armed timers.
func (c *Communication) Disable() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	return c.machine.Fire(EventDisable)
}

func (c *Communication) enterNotCommunicating() {
	if c.onNotCommunicating != nil {
		c.onNotCommunicating()
	}
}

func (c *Communication) enterWaitCRA() {
	go func() {
		if err := c.sendS1F13(); err != nil {
			c.log.Debugf("gem: s1f13 send failed: %v", err)
		}
	}()
	c.armTimeout(c.config.T3, EventT3Timeout)
}

func (c *Communication) enterWaitDelay() {
	c.armTimeout(c.config.EstablishCommTimeout, EventDelayTimeout)
}

func (c *Communication) enterCommunicating() {
	if c.onCommunicating != nil {
		c.onCommunicating()
	}
}

func (c *Communication) armTimeout(d time.Duration, ev fsm.Event) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(d):
			_ = c.machine.Fire(ev)
		}
	}()
}

func (c *Communication) identityList() secsvar.Variable {
	mdln := mustASCII(c.identity.ModelName)
	rev := mustASCII(c.identity.SoftwareRev)
	v, err := secsvar.NewListStructure([]string{"MDLN", "SOFTREV"}, []secsvar.Variable{mdln, rev})
	if err != nil {
		panic(err)
	}
	return v
}

func mustASCII(s string) secsvar.Variable {
	v, err := secsvar.NewASCII(-1, s)
	if err != nil {
		panic(err)
	}
	return v
}

func (c *Communication) sendS1F13() error {
	payload, err := c.identityList().Encode()
	if err != nil {
		return err
	}
	rsp, err := c.session.SendAndWaitForResponse(1, 13, payload)
	if err != nil {
		return err
	}
	return c.handleS1F14Payload(rsp)
}

func (c *Communication) handleS1F14Payload(p hsms.Packet) error {
	commack, _, err := decodeCommack(p.Payload)
	if err != nil {
		return err
	}
	if commack == 0 {
		return c.machine.Fire(EventS1F14Received)
	}
	return secserr.New(secserr.KindRejectedByPeer, "gem: s1f14 commack=%d", commack)
}

func decodeCommack(payload []byte) (byte, int, error) {
	ls, err := secsvar.NewListStructure([]string{"COMMACK", "DATA"}, []secsvar.Variable{
		mustBinary1(), secsvar.NewDynamic(-1),
	})
	if err != nil {
		return 0, 0, err
	}
	n, err := ls.Decode(payload)
	if err != nil {
		return 0, 0, err
	}
	commackVar, err := ls.Get(0)
	if err != nil {
		return 0, n, err
	}
	bin, ok := commackVar.(*secsvar.Binary)
	if !ok {
		return 0, n, secserr.New(secserr.KindTypeMismatch, "gem: COMMACK is not Binary")
	}
	b := bin.Bytes()
	if len(b) == 0 {
		return 0, n, secserr.New(secserr.KindFormatMismatch, "gem: empty COMMACK")
	}
	return b[0], n, nil
}

func mustBinary1() secsvar.Variable {
	v, err := secsvar.NewBinary(1, 0)
	if err != nil {
		panic(err)
	}
	return v
}

// handleS1F13 replies S1F14{COMMACK=0, identity} and fires s1f13received.
func (c *Communication) handleS1F13(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	_ = c.machine.Fire(EventS1F13Received)

	commack := mustBinary1()
	ident := c.identityList()
	reply, err := secsvar.NewListStructure([]string{"COMMACK", "DATA"}, []secsvar.Variable{commack, ident})
	if err != nil {
		return nil, err
	}
	payload, err := reply.Encode()
	if err != nil {
		return nil, err
	}
	return &hsms.Packet{Header: hsms.Header{Stream: 1, Function: 14}, Payload: payload}, nil
}

// handleS1F14 is only reached when a reply arrives outside an active
// SendAndWaitForResponse correlation (e.g. a duplicate/late reply); it is a
// no-op observer since sendS1F13 already consumed the correlated reply.
func (c *Communication) handleS1F14(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	return nil, nil
}
