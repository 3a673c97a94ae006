package gem

import (
	"sync"
	"time"

	"github.com/wolimst/gosecs/internal/gemlog"
	"github.com/wolimst/gosecs/internal/secserr"
	"github.com/wolimst/gosecs/pkg/fsm"
	"github.com/wolimst/gosecs/pkg/hsms"
	"github.com/wolimst/gosecs/pkg/secsvar"
)

// Control states.
const (
	StateInit            fsm.State = "init"
	StateControl         fsm.State = "control"
	StateOffline         fsm.State = "offline"
	StateEquipmentOffline fsm.State = "equipment_offline"
	StateAttemptOnline   fsm.State = "attempt_online"
	StateHostOffline     fsm.State = "host_offline"
	StateOnline          fsm.State = "online"
	StateOnlineLocal     fsm.State = "online_local"
	StateOnlineRemote    fsm.State = "online_remote"
)

// Control events.
const (
	EventStart                   fsm.Event = "start"
	EventSwitchOnline             fsm.Event = "switch_online"
	EventSwitchOffline            fsm.Event = "switch_offline"
	EventRemoteOnline             fsm.Event = "remote_online"
	EventRemoteOffline            fsm.Event = "remote_offline"
	EventAttemptOnlineSuccess     fsm.Event = "attempt_online_success"
	EventAttemptOnlineFailTimeout fsm.Event = "attempt_online_fail_timeout"
	EventAttemptOnlineFailDenied  fsm.Event = "attempt_online_fail_denied"
	EventSwitchOnlineLocal        fsm.Event = "switch_online_local"
	EventSwitchOnlineRemote       fsm.Event = "switch_online_remote"
)

// StatusVariable describes an equipment status variable.
type StatusVariable struct {
	SVID int
	Name string
	Unit string
	Get  func() secsvar.Variable
}

// EquipmentConstant describes an equipment constant. Min/Max/Default
// bound and seed Current; S2F15 writes are validated against [Min, Max].
type EquipmentConstant struct {
	ECID    int
	Name    string
	Unit    string
	Min     secsvar.Variable
	Max     secsvar.Variable
	Default secsvar.Variable
	Current secsvar.Variable
}

// CollectionEvent describes a CEID and whether its event report is enabled.
// The report IDs linked to it by S2F35 are kept by the Equipment, not here.
type CollectionEvent struct {
	CEID    int
	Name    string
	Enabled bool
}

// Report is an ordered list of VIDs a RPTID fetches when triggered.
type Report struct {
	RPTID int
	VIDs  []int
}

// Alarm describes an equipment alarm.
type Alarm struct {
	ALID    int
	Name    string
	Text    string
	CEIDOn  int
	CEIDOff int
	Enabled bool
	Set     bool
}

// RemoteCommand describes a host-issuable command.
type RemoteCommand struct {
	Name          string
	Params        []string
	CompletionCEID int
	Handler       func(params map[string]secsvar.Variable) error
}

// Equipment-constant ids and status-variable ids built in by this package.
const (
	SVIDClock        = 1001
	SVIDControlState = 1002
	SVIDEventsEnabled = 1003
	SVIDAlarmsEnabled = 1004
	SVIDAlarmsSet     = 1005

	ECIDEstablishCommTimeout = 1
	ECIDTimeFormat           = 2
)

// Equipment implements the GEM equipment side (C8): the control-state
// machine and the SV/EC/CE/report/alarm/RCMD dictionaries that back the
// selected-event-report handlers.
type Equipment struct {
	session *hsms.Session
	comm    *Communication
	config  hsms.Config
	log     gemlog.Logger

	machine *fsm.Machine

	mu         sync.Mutex
	svs        map[int]StatusVariable
	ecs        map[int]*EquipmentConstant
	ces        map[int]*CollectionEvent
	reports    map[int]*Report
	ceReports  map[int][]int // CEID -> RPTIDs
	alarms     map[int]*Alarm
	rcmds      map[string]RemoteCommand
	programs   map[string]secsvar.Variable
	timeFormat byte
}

// NewEquipment builds an Equipment bound to session/comm, registering its
// handlers and seeding the built-in SV/EC set.
func NewEquipment(session *hsms.Session, comm *Communication, cfg hsms.Config, log gemlog.Logger) *Equipment {
	if log == nil {
		log = gemlog.Nop{}
	}
	e := &Equipment{
		session:   session,
		comm:      comm,
		config:    cfg,
		log:       log,
		svs:       make(map[int]StatusVariable),
		ecs:       make(map[int]*EquipmentConstant),
		ces:       make(map[int]*CollectionEvent),
		reports:   make(map[int]*Report),
		ceReports: make(map[int][]int),
		alarms:    make(map[int]*Alarm),
		rcmds:     make(map[string]RemoteCommand),
		programs:  make(map[string]secsvar.Variable),
		timeFormat: 1,
	}
	e.seedBuiltins()
	e.buildMachine()
	e.registerHandlers()
	return e
}

func (e *Equipment) buildMachine() {
	e.machine = fsm.New(StateInit,
		[]fsm.EventDesc{
			{Name: EventStart, Src: []fsm.State{StateInit}, Dst: StateControl},
			{Name: EventSwitchOffline, Src: []fsm.State{StateOnline, StateOnlineLocal, StateOnlineRemote, StateAttemptOnline}, Dst: StateEquipmentOffline},
			{Name: EventRemoteOffline, Src: []fsm.State{StateOnline, StateOnlineLocal, StateOnlineRemote}, Dst: StateHostOffline},
			{Name: EventSwitchOnline, Src: []fsm.State{StateEquipmentOffline, StateHostOffline}, Dst: StateAttemptOnline},
			{Name: EventAttemptOnlineSuccess, Src: []fsm.State{StateAttemptOnline}, Dst: StateOnline},
			{Name: EventAttemptOnlineFailTimeout, Src: []fsm.State{StateAttemptOnline}, Dst: StateEquipmentOffline},
			{Name: EventAttemptOnlineFailDenied, Src: []fsm.State{StateAttemptOnline}, Dst: StateEquipmentOffline},
			{Name: EventRemoteOnline, Src: []fsm.State{StateHostOffline}, Dst: StateAttemptOnline},
			{Name: EventSwitchOnlineLocal, Src: []fsm.State{StateOnline, StateOnlineRemote}, Dst: StateOnlineLocal},
			{Name: EventSwitchOnlineRemote, Src: []fsm.State{StateOnline, StateOnlineLocal}, Dst: StateOnlineRemote},
		},
		[]fsm.AutoEdge{
			{Src: StateControl, Dst: StateOffline},
			{Src: StateOffline, Dst: StateEquipmentOffline},
			{Src: StateOnline, Dst: StateOnlineLocal},
		},
		fsm.Callbacks{
			OnEnter: map[fsm.State]func(){
				StateAttemptOnline: e.enterAttemptOnline,
			},
		},
	)
}

func (e *Equipment) seedBuiltins() {
	e.svs[SVIDClock] = StatusVariable{SVID: SVIDClock, Name: "CLOCK", Get: e.clockValue}
	e.svs[SVIDControlState] = StatusVariable{SVID: SVIDControlState, Name: "CONTROL_STATE", Get: e.controlStateValue}
	e.svs[SVIDEventsEnabled] = StatusVariable{SVID: SVIDEventsEnabled, Name: "EVENTS_ENABLED", Get: e.eventsEnabledValue}
	e.svs[SVIDAlarmsEnabled] = StatusVariable{SVID: SVIDAlarmsEnabled, Name: "ALARMS_ENABLED", Get: e.alarmsEnabledValue}
	e.svs[SVIDAlarmsSet] = StatusVariable{SVID: SVIDAlarmsSet, Name: "ALARMS_SET", Get: e.alarmsSetValue}

	timeout, _ := secsvar.NewUint(4, uint64(e.config.EstablishCommTimeout/time.Second))
	timeoutMin, _ := secsvar.NewUint(4, 10)
	timeoutMax, _ := secsvar.NewUint(4, 120)
	e.ecs[ECIDEstablishCommTimeout] = &EquipmentConstant{
		ECID: ECIDEstablishCommTimeout, Name: "ESTABLISH_COMM_TIMEOUT",
		Min: timeoutMin, Max: timeoutMax, Default: timeout, Current: timeout.Clone().(*secsvar.Uint),
	}

	tf, _ := secsvar.NewUint(1, 1)
	tfMin, _ := secsvar.NewUint(1, 0)
	tfMax, _ := secsvar.NewUint(1, 2)
	e.ecs[ECIDTimeFormat] = &EquipmentConstant{
		ECID: ECIDTimeFormat, Name: "TIME_FORMAT",
		Min: tfMin, Max: tfMax, Default: tf, Current: tf.Clone().(*secsvar.Uint),
	}
}

func (e *Equipment) clockValue() secsvar.Variable {
	now := time.Now()
	var layout string
	switch e.timeFormat {
	case 0:
		layout = "060102150405"
	case 2:
		v, _ := secsvar.NewASCII(-1, now.Format(time.RFC3339))
		return v
	default:
		layout = "20060102150405.00"
	}
	v, _ := secsvar.NewASCII(-1, now.Format(layout))
	return v
}

func (e *Equipment) controlStateValue() secsvar.Variable {
	code := uint64(1)
	switch e.machine.Current() {
	case StateEquipmentOffline:
		code = 1
	case StateAttemptOnline:
		code = 2
	case StateHostOffline:
		code = 3
	case StateOnlineLocal:
		code = 4
	case StateOnlineRemote:
		code = 5
	}
	v, _ := secsvar.NewUint(1, code)
	return v
}

func (e *Equipment) eventsEnabledValue() secsvar.Variable {
	e.mu.Lock()
	defer e.mu.Unlock()
	var enabled []int64
	for ceid, ce := range e.ces {
		if ce.Enabled {
			enabled = append(enabled, int64(ceid))
		}
	}
	items := make([]secsvar.Variable, len(enabled))
	for i, v := range enabled {
		u, _ := secsvar.NewUint(4, uint64(v))
		items[i] = u
	}
	return arrayOf(secsvar.NewDynamic(-1, secsvar.FormatU4), items)
}

func (e *Equipment) alarmsEnabledValue() secsvar.Variable { return e.alarmIDsWhere(func(a *Alarm) bool { return a.Enabled }) }
func (e *Equipment) alarmsSetValue() secsvar.Variable     { return e.alarmIDsWhere(func(a *Alarm) bool { return a.Set }) }

func (e *Equipment) alarmIDsWhere(pred func(*Alarm) bool) secsvar.Variable {
	e.mu.Lock()
	defer e.mu.Unlock()
	var items []secsvar.Variable
	for alid, a := range e.alarms {
		if pred(a) {
			u, _ := secsvar.NewUint(4, uint64(alid))
			items = append(items, u)
		}
	}
	return arrayOf(secsvar.NewDynamic(-1, secsvar.FormatU4), items)
}

// RegisterStatusVariable/RegisterEquipmentConstant/... let an application
// extend the built-in dictionaries.
func (e *Equipment) RegisterStatusVariable(sv StatusVariable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.svs[sv.SVID] = sv
}

func (e *Equipment) RegisterEquipmentConstant(ec EquipmentConstant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dup := ec
	e.ecs[ec.ECID] = &dup
}

func (e *Equipment) RegisterCollectionEvent(ceid int, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ces[ceid] = &CollectionEvent{CEID: ceid, Name: name}
}

func (e *Equipment) RegisterAlarm(a Alarm) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dup := a
	e.alarms[a.ALID] = &dup
}

func (e *Equipment) RegisterRemoteCommand(rc RemoteCommand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rcmds[rc.Name] = rc
}

// State returns the control machine's current state.
func (e *Equipment) State() fsm.State { return e.machine.Current() }

// Start fires the start event, auto-forwarding to EQUIPMENT_OFFLINE.
func (e *Equipment) Start() error { return e.machine.Fire(EventStart) }

func (e *Equipment) enterAttemptOnline() {
	go func() {
		_, err := e.session.SendAndWaitForResponse(1, 1, nil)
		if err != nil {
			_ = e.machine.Fire(EventAttemptOnlineFailTimeout)
			return
		}
		_ = e.machine.Fire(EventAttemptOnlineSuccess)
	}()
}

// SwitchOnline is the equipment-local request to go online.
func (e *Equipment) SwitchOnline() error { return e.machine.Fire(EventSwitchOnline) }

// SwitchOffline is the equipment-local request to go offline.
func (e *Equipment) SwitchOffline() error { return e.machine.Fire(EventSwitchOffline) }

func (e *Equipment) registerHandlers() {
	e.session.Handle(1, 1, e.handleAreYouThere)
	e.session.Handle(1, 3, e.handleS1F3)
	e.session.Handle(1, 11, e.handleS1F11)
	e.session.Handle(1, 15, e.handleS1F15)
	e.session.Handle(1, 17, e.handleS1F17)
	e.session.Handle(2, 13, e.handleS2F13)
	e.session.Handle(2, 15, e.handleS2F15)
	e.session.Handle(2, 29, e.handleS2F29)
	e.session.Handle(2, 33, e.handleS2F33)
	e.session.Handle(2, 35, e.handleS2F35)
	e.session.Handle(2, 37, e.handleS2F37)
	e.session.Handle(2, 41, e.handleS2F41)
	e.session.Handle(5, 3, e.handleS5F3)
	e.session.Handle(5, 5, e.handleS5F5)
	e.session.Handle(5, 7, e.handleS5F7)
	e.session.Handle(7, 17, e.handleS7F17)
	e.session.Handle(7, 19, e.handleS7F19)
}

func listReply(stream, function byte, names []string, fields []secsvar.Variable) (*hsms.Packet, error) {
	ls, err := secsvar.NewListStructure(names, fields)
	if err != nil {
		return nil, err
	}
	payload, err := ls.Encode()
	if err != nil {
		return nil, err
	}
	return &hsms.Packet{Header: hsms.Header{Stream: stream, Function: function}, Payload: payload}, nil
}

func arrayReply(stream, function byte, template secsvar.Variable, items []secsvar.Variable) (*hsms.Packet, error) {
	arr := secsvar.NewArray(template, len(items))
	vals := make([]interface{}, len(items))
	for i, it := range items {
		vals[i] = it
	}
	if err := arr.Set(vals); err != nil {
		return nil, err
	}
	payload, err := arr.Encode()
	if err != nil {
		return nil, err
	}
	return &hsms.Packet{Header: hsms.Header{Stream: stream, Function: function}, Payload: payload}, nil
}

func (e *Equipment) handleAreYouThere(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	return &hsms.Packet{Header: hsms.Header{Stream: 1, Function: 2}}, nil
}

func decodeSVIDList(payload []byte) ([]int64, error) {
	arr := secsvar.NewArray(secsvar.NewDynamic(-1, secsvar.FormatU4, secsvar.FormatASCII), -1)
	if _, err := arr.Decode(payload); err != nil {
		return nil, err
	}
	var ids []int64
	for i := 0; i < arr.Size(); i++ {
		v, err := arr.Get(i)
		if err != nil {
			return nil, err
		}
		id, err := coerceIDVar(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func coerceIDVar(v secsvar.Variable) (int64, error) {
	if dyn, ok := v.(*secsvar.Dynamic); ok {
		v = dyn.Inner()
	}
	switch t := v.(type) {
	case *secsvar.Uint:
		vals := t.Values()
		if len(vals) == 0 {
			return 0, secserr.New(secserr.KindTypeMismatch, "gem: empty ID value")
		}
		return int64(vals[0]), nil
	case *secsvar.Int:
		vals := t.Values()
		if len(vals) == 0 {
			return 0, secserr.New(secserr.KindTypeMismatch, "gem: empty ID value")
		}
		return vals[0], nil
	default:
		return 0, secserr.New(secserr.KindTypeMismatch, "gem: ID is not numeric")
	}
}

func (e *Equipment) handleS1F3(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	ids, err := decodeSVIDList(p.Payload)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	items := make([]secsvar.Variable, 0, len(ids))
	for _, id := range ids {
		if sv, ok := e.svs[int(id)]; ok {
			items = append(items, sv.Get())
		} else {
			items = append(items, secsvar.NewArray(secsvar.NewDynamic(-1), 0))
		}
	}
	e.mu.Unlock()
	return arrayReply(1, 4, secsvar.NewDynamic(-1), items)
}

func (e *Equipment) handleS1F11(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	ids, err := decodeSVIDList(p.Payload)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	var entries []secsvar.Variable
	for _, id := range ids {
		sv, ok := e.svs[int(id)]
		name, unit := "", ""
		if ok {
			name, unit = sv.Name, sv.Unit
		}
		nameVar, _ := secsvar.NewASCII(-1, name)
		unitVar, _ := secsvar.NewASCII(-1, unit)
		entry, _ := secsvar.NewListStructure([]string{"SVNAME", "UNITS"}, []secsvar.Variable{nameVar, unitVar})
		entries = append(entries, entry)
	}
	e.mu.Unlock()
	nameTemplate, _ := secsvar.NewListStructure([]string{"SVNAME", "UNITS"}, []secsvar.Variable{mustASCII(""), mustASCII("")})
	return arrayReply(1, 12, nameTemplate, entries)
}

func (e *Equipment) handleS1F15(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	if e.State() == StateOnline || e.State() == StateOnlineLocal || e.State() == StateOnlineRemote {
		if err := e.machine.Fire(EventRemoteOffline); err == nil {
			e.emitCEID(e.ceidByName("EQUIPMENT_OFFLINE"))
		}
	}
	oflack := mustBinary1()
	return listReply(1, 16, []string{"OFLACK"}, []secsvar.Variable{oflack})
}

func (e *Equipment) handleS1F17(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	var status byte
	switch e.State() {
	case StateHostOffline:
		if err := e.machine.Fire(EventRemoteOnline); err != nil {
			status = 1
		}
	case StateOnline, StateOnlineLocal, StateOnlineRemote:
		status = 2
	default:
		status = 1
	}
	ack, err := secsvar.NewBinary(1, status)
	if err != nil {
		return nil, err
	}
	return listReply(1, 18, []string{"ONLACK"}, []secsvar.Variable{ack})
}

func (e *Equipment) ceidByName(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ce := range e.ces {
		if ce.Name == name {
			return id
		}
	}
	return 0
}

func (e *Equipment) handleS2F13(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	ids, err := decodeSVIDList(p.Payload)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	var vals []secsvar.Variable
	for _, id := range ids {
		if ec, ok := e.ecs[int(id)]; ok {
			vals = append(vals, ec.Current)
		} else {
			vals = append(vals, secsvar.NewArray(secsvar.NewDynamic(-1), 0))
		}
	}
	e.mu.Unlock()
	return arrayReply(2, 14, secsvar.NewDynamic(-1), vals)
}

func (e *Equipment) handleS2F15(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	pairTemplate, err := secsvar.NewListStructure([]string{"ECID", "ECV"}, []secsvar.Variable{
		secsvar.NewDynamic(-1), secsvar.NewDynamic(-1),
	})
	if err != nil {
		return nil, err
	}
	arr := secsvar.NewArray(pairTemplate, -1)
	if _, err := arr.Decode(p.Payload); err != nil {
		return nil, err
	}
	eac := byte(0)
	e.mu.Lock()
	for i := 0; i < arr.Size(); i++ {
		pairVar, err := arr.Get(i)
		if err != nil {
			continue
		}
		pair, ok := pairVar.(*secsvar.Dynamic)
		var ls *secsvar.ListStructure
		if ok {
			ls, _ = pair.Inner().(*secsvar.ListStructure)
		} else {
			ls, _ = pairVar.(*secsvar.ListStructure)
		}
		if ls == nil {
			eac = 3
			continue
		}
		ecidVar, _ := ls.Get(0)
		ecv, _ := ls.Get(1)
		ecid, _ := coerceIDVar(ecidVar)
		ec, ok := e.ecs[int(ecid)]
		if !ok {
			eac = 1
			continue
		}
		if !withinRange(ecv, ec.Min, ec.Max) {
			eac = 3
			continue
		}
		ec.Current = ecv.Clone()
		if int(ecid) == ECIDEstablishCommTimeout {
			if n, ok := numericScalar(ecv); ok {
				e.config.EstablishCommTimeout = time.Duration(n) * time.Second
			}
		}
		if int(ecid) == ECIDTimeFormat {
			if n, ok := numericScalar(ecv); ok {
				e.timeFormat = byte(n)
			}
		}
	}
	e.mu.Unlock()
	ack, err := secsvar.NewBinary(1, eac)
	if err != nil {
		return nil, err
	}
	return listReply(2, 16, []string{"EAC"}, []secsvar.Variable{ack})
}

func withinRange(v, min, max secsvar.Variable) bool {
	n, ok := numericScalar(v)
	if !ok {
		return true
	}
	lo, okLo := numericScalar(min)
	hi, okHi := numericScalar(max)
	if !okLo || !okHi {
		return true
	}
	return n >= lo && n <= hi
}

func numericScalar(v secsvar.Variable) (int64, bool) {
	if dyn, ok := v.(*secsvar.Dynamic); ok {
		v = dyn.Inner()
	}
	switch t := v.(type) {
	case *secsvar.Uint:
		vals := t.Values()
		if len(vals) == 0 {
			return 0, false
		}
		return int64(vals[0]), true
	case *secsvar.Int:
		vals := t.Values()
		if len(vals) == 0 {
			return 0, false
		}
		return vals[0], true
	default:
		return 0, false
	}
}

func (e *Equipment) handleS2F29(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	ids, err := decodeSVIDList(p.Payload)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	var entries []secsvar.Variable
	for _, id := range ids {
		ec, ok := e.ecs[int(id)]
		name, unit := "", ""
		var min, max, def secsvar.Variable = secsvar.NewDynamic(0), secsvar.NewDynamic(0), secsvar.NewDynamic(0)
		if ok {
			name, unit = ec.Name, ec.Unit
			min, max, def = ec.Min, ec.Max, ec.Default
		}
		nameVar, _ := secsvar.NewASCII(-1, name)
		unitVar, _ := secsvar.NewASCII(-1, unit)
		entry, _ := secsvar.NewListStructure(
			[]string{"ECNAME", "ECMIN", "ECMAX", "ECDEF", "UNITS"},
			[]secsvar.Variable{nameVar, min, max, def, unitVar})
		entries = append(entries, entry)
	}
	e.mu.Unlock()
	template, _ := secsvar.NewListStructure(
		[]string{"ECNAME", "ECMIN", "ECMAX", "ECDEF", "UNITS"},
		[]secsvar.Variable{mustASCII(""), secsvar.NewDynamic(0), secsvar.NewDynamic(0), secsvar.NewDynamic(0), mustASCII("")})
	return arrayReply(2, 30, template, entries)
}

func (e *Equipment) handleS2F33(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	// Minimal DEFINE-REPORT: DATAID, [(RPTID, [VID...])...].
	rptTemplate, err := secsvar.NewListStructure([]string{"RPTID", "VIDS"}, []secsvar.Variable{
		secsvar.NewDynamic(-1), secsvar.NewArray(secsvar.NewDynamic(-1), -1),
	})
	if err != nil {
		return nil, err
	}
	ls, err := secsvar.NewListStructure([]string{"DATAID", "REPORTS"}, []secsvar.Variable{
		mustUint4(), secsvar.NewArray(rptTemplate, -1),
	})
	if err != nil {
		return nil, err
	}
	if _, err := ls.Decode(p.Payload); err != nil {
		return nil, err
	}
	reportsVar, err := ls.Get(1)
	if err != nil {
		return nil, err
	}
	reports, ok := reportsVar.(*secsvar.Array)
	drack := byte(0)
	e.mu.Lock()
	if ok && reports.Size() == 0 {
		e.reports = make(map[int]*Report)
	}
	if ok {
		for i := 0; i < reports.Size(); i++ {
			entryVar, err := reports.Get(i)
			if err != nil {
				continue
			}
			entry := unwrapDynamic(entryVar)
			rptLS, ok := entry.(*secsvar.ListStructure)
			if !ok {
				drack = 5
				continue
			}
			rptidVar, _ := rptLS.Get(0)
			vidsVar, _ := rptLS.Get(1)
			rptid, _ := coerceIDVar(rptidVar)
			vidsArr, ok := unwrapDynamic(vidsVar).(*secsvar.Array)
			var vids []int
			if ok {
				for j := 0; j < vidsArr.Size(); j++ {
					vv, _ := vidsArr.Get(j)
					id, err := coerceIDVar(vv)
					if err == nil {
						vids = append(vids, int(id))
					}
				}
			}
			e.reports[int(rptid)] = &Report{RPTID: int(rptid), VIDs: vids}
		}
	}
	e.mu.Unlock()
	ack, err := secsvar.NewBinary(1, drack)
	if err != nil {
		return nil, err
	}
	return listReply(2, 34, []string{"DRACK"}, []secsvar.Variable{ack})
}

func unwrapDynamic(v secsvar.Variable) secsvar.Variable {
	if dyn, ok := v.(*secsvar.Dynamic); ok {
		return dyn.Inner()
	}
	return v
}

func (e *Equipment) handleS2F35(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	linkTemplate, err := secsvar.NewListStructure([]string{"CEID", "RPTIDS"}, []secsvar.Variable{
		secsvar.NewDynamic(-1), secsvar.NewArray(secsvar.NewDynamic(-1), -1),
	})
	if err != nil {
		return nil, err
	}
	ls, err := secsvar.NewListStructure([]string{"DATAID", "LINKS"}, []secsvar.Variable{
		mustUint4(), secsvar.NewArray(linkTemplate, -1),
	})
	if err != nil {
		return nil, err
	}
	if _, err := ls.Decode(p.Payload); err != nil {
		return nil, err
	}
	linksVar, _ := ls.Get(1)
	links, ok := unwrapDynamic(linksVar).(*secsvar.Array)
	lrack := byte(0)
	e.mu.Lock()
	if ok {
		for i := 0; i < links.Size(); i++ {
			entryVar, _ := links.Get(i)
			entry := unwrapDynamic(entryVar)
			linkLS, ok := entry.(*secsvar.ListStructure)
			if !ok {
				lrack = 1
				continue
			}
			ceidVar, _ := linkLS.Get(0)
			rptidsVar, _ := linkLS.Get(1)
			ceid, _ := coerceIDVar(ceidVar)
			rptidsArr, ok := unwrapDynamic(rptidsVar).(*secsvar.Array)
			var rptids []int
			if ok {
				for j := 0; j < rptidsArr.Size(); j++ {
					rv, _ := rptidsArr.Get(j)
					id, err := coerceIDVar(rv)
					if err == nil {
						rptids = append(rptids, int(id))
					}
				}
			}
			e.ceReports[int(ceid)] = rptids
			if _, ok := e.ces[int(ceid)]; !ok {
				e.ces[int(ceid)] = &CollectionEvent{CEID: int(ceid)}
			}
		}
	}
	e.mu.Unlock()
	ack, err := secsvar.NewBinary(1, lrack)
	if err != nil {
		return nil, err
	}
	return listReply(2, 36, []string{"LRACK"}, []secsvar.Variable{ack})
}

func (e *Equipment) handleS2F37(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	ls, err := secsvar.NewListStructure([]string{"CEED", "CEIDS"}, []secsvar.Variable{
		mustBool(), secsvar.NewArray(secsvar.NewDynamic(-1), -1),
	})
	if err != nil {
		return nil, err
	}
	if _, err := ls.Decode(p.Payload); err != nil {
		return nil, err
	}
	ceedVar, _ := ls.Get(0)
	ceed, _ := ceedVar.(*secsvar.Boolean)
	enable := ceed != nil && firstBool(ceed)

	idsVar, _ := ls.Get(1)
	ids, ok := unwrapDynamic(idsVar).(*secsvar.Array)
	erack := byte(0)
	e.mu.Lock()
	if ok && ids.Size() > 0 {
		for i := 0; i < ids.Size(); i++ {
			v, _ := ids.Get(i)
			ceid, err := coerceIDVar(v)
			if err != nil {
				continue
			}
			ce, ok := e.ces[int(ceid)]
			if !ok {
				erack = 2
				continue
			}
			ce.Enabled = enable
		}
	} else {
		for _, ce := range e.ces {
			ce.Enabled = enable
		}
	}
	e.mu.Unlock()
	ack, err := secsvar.NewBinary(1, erack)
	if err != nil {
		return nil, err
	}
	return listReply(2, 38, []string{"ERACK"}, []secsvar.Variable{ack})
}

func firstBool(b *secsvar.Boolean) bool {
	vals := b.Values()
	return len(vals) > 0 && vals[0]
}

func (e *Equipment) handleS2F41(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	paramTemplate, err := secsvar.NewListStructure([]string{"CPNAME", "CPVAL"}, []secsvar.Variable{
		secsvar.NewDynamic(-1), secsvar.NewDynamic(-1),
	})
	if err != nil {
		return nil, err
	}
	ls, err := secsvar.NewListStructure([]string{"RCMD", "PARAMS"}, []secsvar.Variable{
		secsvar.NewDynamic(-1, secsvar.FormatASCII), secsvar.NewArray(paramTemplate, -1),
	})
	if err != nil {
		return nil, err
	}
	if _, err := ls.Decode(p.Payload); err != nil {
		return nil, err
	}
	rcmdVar, _ := ls.Get(0)
	rcmdText, _ := unwrapDynamic(rcmdVar).(*secsvar.Text)
	name := ""
	if rcmdText != nil {
		name = rcmdText.Value()
	}

	e.mu.Lock()
	rcmd, ok := e.rcmds[name]
	e.mu.Unlock()
	if !ok {
		hcack, _ := secsvar.NewBinary(1, 1)
		return listReply(2, 42, []string{"HCACK", "CPACKS"}, []secsvar.Variable{hcack, secsvar.NewArray(secsvar.NewDynamic(-1), 0)})
	}

	paramsVar, _ := ls.Get(1)
	paramsArr, _ := unwrapDynamic(paramsVar).(*secsvar.Array)
	params := make(map[string]secsvar.Variable)
	if paramsArr != nil {
		for i := 0; i < paramsArr.Size(); i++ {
			entryVar, _ := paramsArr.Get(i)
			entry, ok := unwrapDynamic(entryVar).(*secsvar.ListStructure)
			if !ok {
				continue
			}
			nameVar, _ := entry.Get(0)
			valVar, _ := entry.Get(1)
			nameText, _ := unwrapDynamic(nameVar).(*secsvar.Text)
			if nameText != nil {
				params[nameText.Value()] = valVar
			}
		}
	}

	hcack, _ := secsvar.NewBinary(1, 0)
	reply, err := listReply(2, 42, []string{"HCACK", "CPACKS"}, []secsvar.Variable{hcack, secsvar.NewArray(secsvar.NewDynamic(-1), 0)})
	if err != nil {
		return nil, err
	}
	go func() {
		if rcmd.Handler != nil {
			if err := rcmd.Handler(params); err != nil {
				e.log.Warnf("gem: rcmd %s handler failed: %v", name, err)
				return
			}
		}
		if rcmd.CompletionCEID != 0 {
			e.emitCEID(rcmd.CompletionCEID)
		}
	}()
	return reply, nil
}

func (e *Equipment) handleS5F3(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	ls, err := secsvar.NewListStructure([]string{"ALED", "ALID"}, []secsvar.Variable{
		mustBool(), mustUint4(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := ls.Decode(p.Payload); err != nil {
		return nil, err
	}
	aledVar, _ := ls.Get(0)
	aled, _ := aledVar.(*secsvar.Boolean)
	alidVar, _ := ls.Get(1)
	alid, _ := coerceIDVar(alidVar)

	e.mu.Lock()
	a, ok := e.alarms[int(alid)]
	ackc5 := byte(0)
	if !ok {
		ackc5 = 1
	} else {
		a.Enabled = aled != nil && firstBool(aled)
	}
	e.mu.Unlock()
	ack, err := secsvar.NewBinary(1, ackc5)
	if err != nil {
		return nil, err
	}
	return listReply(5, 4, []string{"ACKC5"}, []secsvar.Variable{ack})
}

func (e *Equipment) handleS5F5(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	var ids []int64
	if len(p.Payload) > 0 {
		var err error
		if ids, err = decodeSVIDList(p.Payload); err != nil {
			return nil, err
		}
	}
	e.mu.Lock()
	var entries []secsvar.Variable
	if len(ids) == 0 {
		for _, a := range e.alarms {
			entries = append(entries, e.alarmEntry(a))
		}
	}
	for _, id := range ids {
		if a, ok := e.alarms[int(id)]; ok {
			entries = append(entries, e.alarmEntry(a))
		}
	}
	e.mu.Unlock()
	template := e.alarmEntryTemplate()
	return arrayReply(5, 6, template, entries)
}

func (e *Equipment) handleS5F7(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	e.mu.Lock()
	var entries []secsvar.Variable
	for _, a := range e.alarms {
		if a.Enabled {
			entries = append(entries, e.alarmEntry(a))
		}
	}
	e.mu.Unlock()
	template := e.alarmEntryTemplate()
	return arrayReply(5, 8, template, entries)
}

func (e *Equipment) alarmEntry(a *Alarm) secsvar.Variable {
	alcdByte := byte(a.ALID & 0x7F)
	if a.Set {
		alcdByte |= 0x80
	}
	alcd, _ := secsvar.NewBinary(1, alcdByte)
	alid, _ := secsvar.NewUint(4, uint64(a.ALID))
	altx, _ := secsvar.NewASCII(120, a.Text)
	entry, _ := secsvar.NewListStructure([]string{"ALCD", "ALID", "ALTX"}, []secsvar.Variable{alcd, alid, altx})
	return entry
}

func (e *Equipment) alarmEntryTemplate() secsvar.Variable {
	alcd, _ := secsvar.NewBinary(1, 0)
	alid, _ := secsvar.NewUint(4, 0)
	altx, _ := secsvar.NewASCII(120, "")
	template, _ := secsvar.NewListStructure([]string{"ALCD", "ALID", "ALTX"}, []secsvar.Variable{alcd, alid, altx})
	return template
}

func (e *Equipment) handleS7F17(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	arr := secsvar.NewArray(secsvar.NewDynamic(-1, secsvar.FormatASCII, secsvar.FormatBinary), -1)
	if _, err := arr.Decode(p.Payload); err != nil {
		return nil, err
	}
	ppgnt := byte(0)
	e.mu.Lock()
	for i := 0; i < arr.Size(); i++ {
		v, _ := arr.Get(i)
		text, ok := unwrapDynamic(v).(*secsvar.Text)
		if !ok {
			ppgnt = 1
			continue
		}
		delete(e.programs, text.Value())
	}
	e.mu.Unlock()
	ack, err := secsvar.NewBinary(1, ppgnt)
	if err != nil {
		return nil, err
	}
	return listReply(7, 18, []string{"PPGNT"}, []secsvar.Variable{ack})
}

func (e *Equipment) handleS7F19(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	e.mu.Lock()
	var names []secsvar.Variable
	for name := range e.programs {
		v, _ := secsvar.NewASCII(-1, name)
		names = append(names, v)
	}
	e.mu.Unlock()
	return arrayReply(7, 20, secsvar.NewDynamic(-1, secsvar.FormatASCII), names)
}

// SetAlarm/ClearAlarm flip the alarm's Set flag, emit S5F1, and fire the
// on/off CEID if the alarm is enabled.
func (e *Equipment) SetAlarm(alid int) error   { return e.setAlarm(alid, true) }
func (e *Equipment) ClearAlarm(alid int) error { return e.setAlarm(alid, false) }

func (e *Equipment) setAlarm(alid int, set bool) error {
	e.mu.Lock()
	a, ok := e.alarms[alid]
	if !ok {
		e.mu.Unlock()
		return secserr.New(secserr.KindValueOutOfRange, "gem: unknown alarm %d", alid)
	}
	a.Set = set
	enabled := a.Enabled
	onCE, offCE := a.CEIDOn, a.CEIDOff
	e.mu.Unlock()

	alcdByte := byte(alid & 0x7F)
	if set {
		alcdByte |= 0x80
	}
	alcd, _ := secsvar.NewBinary(1, alcdByte)
	alidVar, _ := secsvar.NewUint(4, uint64(alid))
	altx, _ := secsvar.NewASCII(120, a.Text)
	payload, err := mustEncode(secsvar.NewListStructure([]string{"ALCD", "ALID", "ALTX"}, []secsvar.Variable{alcd, alidVar, altx}))
	if err != nil {
		return err
	}
	if err := e.session.SendStreamFunction(5, 1, true, payload); err != nil {
		return err
	}
	if enabled {
		if set && onCE != 0 {
			e.emitCEID(onCE)
		}
		if !set && offCE != 0 {
			e.emitCEID(offCE)
		}
	}
	return nil
}

func mustEncode(v secsvar.Variable, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return v.Encode()
}

// TriggerCollectionEvents sends every enabled CEID in ceids as S6F11,
// awaiting S6F12 with T3.
func (e *Equipment) TriggerCollectionEvents(ceids ...int) {
	for _, ceid := range ceids {
		e.emitCEID(ceid)
	}
}

func (e *Equipment) emitCEID(ceid int) {
	if ceid == 0 {
		return
	}
	e.mu.Lock()
	ce, ok := e.ces[ceid]
	if !ok || !ce.Enabled {
		e.mu.Unlock()
		return
	}
	rptids := e.ceReports[ceid]
	var reportEntries []secsvar.Variable
	for _, rptid := range rptids {
		report, ok := e.reports[rptid]
		if !ok {
			continue
		}
		var svValues []secsvar.Variable
		for _, vid := range report.VIDs {
			if sv, ok := e.svs[vid]; ok {
				svValues = append(svValues, sv.Get())
			} else {
				svValues = append(svValues, secsvar.NewArray(secsvar.NewDynamic(-1), 0))
			}
		}
		rptidVar, _ := secsvar.NewUint(4, uint64(rptid))
		entry, _ := secsvar.NewListStructure([]string{"RPTID", "V"}, []secsvar.Variable{
			rptidVar, arrayOf(secsvar.NewDynamic(-1), svValues),
		})
		reportEntries = append(reportEntries, entry)
	}
	e.mu.Unlock()

	dataid, _ := secsvar.NewUint(4, 0)
	ceidVar, _ := secsvar.NewUint(4, uint64(ceid))
	reportTemplate, _ := secsvar.NewListStructure([]string{"RPTID", "V"}, []secsvar.Variable{
		mustUint4(), secsvar.NewArray(secsvar.NewDynamic(-1), 0),
	})
	body, _ := secsvar.NewListStructure([]string{"DATAID", "CEID", "RPT"}, []secsvar.Variable{
		dataid, ceidVar, arrayOf(reportTemplate, reportEntries),
	})
	payload, err := body.Encode()
	if err != nil {
		e.log.Warnf("gem: encode s6f11 for ceid %d failed: %v", ceid, err)
		return
	}
	if _, err := e.session.SendAndWaitForResponse(6, 11, payload); err != nil {
		e.log.Warnf("gem: s6f11 for ceid %d: %v", ceid, err)
	}
}

func arrayOf(template secsvar.Variable, items []secsvar.Variable) secsvar.Variable {
	arr := secsvar.NewArray(template, len(items))
	vals := make([]interface{}, len(items))
	for i, it := range items {
		vals[i] = it
	}
	_ = arr.Set(vals)
	return arr
}

func mustUint4() secsvar.Variable {
	v, err := secsvar.NewUint(4, 0)
	if err != nil {
		panic(err)
	}
	return v
}

func mustBool() secsvar.Variable {
	v, err := secsvar.NewBoolean(false)
	if err != nil {
		panic(err)
	}
	return v
}
