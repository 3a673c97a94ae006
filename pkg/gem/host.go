package gem

import (
	"github.com/wolimst/gosecs/internal/gemlog"
	"github.com/wolimst/gosecs/internal/secserr"
	"github.com/wolimst/gosecs/pkg/hsms"
	"github.com/wolimst/gosecs/pkg/secsvar"
)

// EventSink receives the app-level notifications a Host emits while
// processing inbound equipment traffic.
type EventSink interface {
	AlarmReceived(alid int, alcd byte, text string)
	CollectionEventReceived(ceid int, reports map[int][]secsvar.Variable)
	TerminalReceived(tid byte, text string)
}

// Host implements the GEM host side (C9): convenience issuers for the
// remote-command, subscription, process-program, and alarm operations a
// host application drives, plus inbound alarm/event/terminal dispatch.
type Host struct {
	session *hsms.Session
	log     gemlog.Logger
	sink    EventSink
}

// NewHost builds a Host bound to session, registering the handlers that
// receive unsolicited equipment-originated traffic (S5F1 alarms, S6F11
// events, S10F1 terminal display).
func NewHost(session *hsms.Session, sink EventSink, log gemlog.Logger) *Host {
	if log == nil {
		log = gemlog.Nop{}
	}
	h := &Host{session: session, log: log, sink: sink}
	session.Handle(5, 1, h.handleS5F1)
	session.Handle(6, 11, h.handleS6F11)
	session.Handle(10, 1, h.handleS10F1)
	return h
}

func (h *Host) handleS5F1(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	ls, err := secsvar.NewListStructure([]string{"ALCD", "ALID", "ALTX"}, []secsvar.Variable{
		mustBinary1(), mustUint4(), mustASCII(""),
	})
	if err != nil {
		return nil, err
	}
	if _, err := ls.Decode(p.Payload); err != nil {
		return nil, err
	}
	alcdVar, _ := ls.Get(0)
	alidVar, _ := ls.Get(1)
	altxVar, _ := ls.Get(2)

	alcdBin, _ := alcdVar.(*secsvar.Binary)
	alid, _ := coerceIDVar(alidVar)
	altx, _ := altxVar.(*secsvar.Text)

	var alcd byte
	if alcdBin != nil {
		b := alcdBin.Bytes()
		if len(b) > 0 {
			alcd = b[0]
		}
	}
	text := ""
	if altx != nil {
		text = altx.Value()
	}

	if h.sink != nil {
		h.sink.AlarmReceived(int(alid), alcd, text)
	}

	ack, err := secsvar.NewBinary(1, 0)
	if err != nil {
		return nil, err
	}
	return listReply(5, 2, []string{"ACKC5"}, []secsvar.Variable{ack})
}

func (h *Host) handleS6F11(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	rptTemplate, err := secsvar.NewListStructure([]string{"RPTID", "V"}, []secsvar.Variable{
		mustUint4(), secsvar.NewArray(secsvar.NewDynamic(-1), -1),
	})
	if err != nil {
		return nil, err
	}
	ls, err := secsvar.NewListStructure([]string{"DATAID", "CEID", "RPT"}, []secsvar.Variable{
		mustUint4(), mustUint4(), secsvar.NewArray(rptTemplate, -1),
	})
	if err != nil {
		return nil, err
	}
	if _, err := ls.Decode(p.Payload); err != nil {
		return nil, err
	}
	ceidVar, _ := ls.Get(1)
	ceid, _ := coerceIDVar(ceidVar)

	reports := make(map[int][]secsvar.Variable)
	rptVar, _ := ls.Get(2)
	if rptArr, ok := unwrapDynamic(rptVar).(*secsvar.Array); ok {
		for i := 0; i < rptArr.Size(); i++ {
			entryVar, _ := rptArr.Get(i)
			entry, ok := unwrapDynamic(entryVar).(*secsvar.ListStructure)
			if !ok {
				continue
			}
			rptidVar, _ := entry.Get(0)
			valuesVar, _ := entry.Get(1)
			rptid, _ := coerceIDVar(rptidVar)
			var values []secsvar.Variable
			if valuesArr, ok := unwrapDynamic(valuesVar).(*secsvar.Array); ok {
				for j := 0; j < valuesArr.Size(); j++ {
					v, _ := valuesArr.Get(j)
					values = append(values, v)
				}
			}
			reports[int(rptid)] = values
		}
	}

	if h.sink != nil {
		h.sink.CollectionEventReceived(int(ceid), reports)
	}

	ack, err := secsvar.NewBinary(1, 0)
	if err != nil {
		return nil, err
	}
	return listReply(6, 12, []string{"ACKC6"}, []secsvar.Variable{ack})
}

func (h *Host) handleS10F1(s *hsms.Session, p hsms.Packet) (*hsms.Packet, error) {
	ls, err := secsvar.NewListStructure([]string{"TID", "TEXT"}, []secsvar.Variable{
		mustBinary1(), mustASCII(""),
	})
	if err != nil {
		return nil, err
	}
	if _, err := ls.Decode(p.Payload); err != nil {
		return nil, err
	}
	tidVar, _ := ls.Get(0)
	textVar, _ := ls.Get(1)
	tidBin, _ := tidVar.(*secsvar.Binary)
	text, _ := textVar.(*secsvar.Text)

	var tid byte
	if tidBin != nil {
		b := tidBin.Bytes()
		if len(b) > 0 {
			tid = b[0]
		}
	}
	if h.sink != nil && text != nil {
		h.sink.TerminalReceived(tid, text.Value())
	}

	ack, err := secsvar.NewBinary(1, 0)
	if err != nil {
		return nil, err
	}
	return listReply(10, 2, []string{"ACK10"}, []secsvar.Variable{ack})
}

// ClearCollectionEvents implements "clear_collection_events": it sends
// S2F33 with an empty report list (dropping every defined report), then
// S2F37 to disable every collection event.
func (h *Host) ClearCollectionEvents() error {
	dataid, _ := secsvar.NewUint(4, 0)
	body, err := secsvar.NewListStructure([]string{"DATAID", "REPORTS"}, []secsvar.Variable{
		dataid, secsvar.NewArray(secsvar.NewDynamic(-1), 0),
	})
	if err != nil {
		return err
	}
	payload, err := body.Encode()
	if err != nil {
		return err
	}
	if _, err := h.session.SendAndWaitForResponse(2, 33, payload); err != nil {
		return err
	}

	ceed, _ := secsvar.NewBoolean(false)
	disableBody, err := secsvar.NewListStructure([]string{"CEED", "CEIDS"}, []secsvar.Variable{
		ceed, secsvar.NewArray(secsvar.NewDynamic(-1), 0),
	})
	if err != nil {
		return err
	}
	disablePayload, err := disableBody.Encode()
	if err != nil {
		return err
	}
	_, err = h.session.SendAndWaitForResponse(2, 37, disablePayload)
	return err
}

// SubscribeCollectionEvent implements "subscribe_collection_event": it
// defines a report (reportID, vids) via S2F33 and links it to ceid via
// S2F35, then enables ceid via S2F37.
func (h *Host) SubscribeCollectionEvent(ceid int, vids []int, reportID int) error {
	vidItems := make([]secsvar.Variable, len(vids))
	for i, vid := range vids {
		v, _ := secsvar.NewUint(4, uint64(vid))
		vidItems[i] = v
	}
	rptidVar, _ := secsvar.NewUint(4, uint64(reportID))
	reportEntry, err := secsvar.NewListStructure([]string{"RPTID", "VIDS"}, []secsvar.Variable{
		rptidVar, arrayOf(secsvar.NewDynamic(-1, secsvar.FormatU4), vidItems),
	})
	if err != nil {
		return err
	}

	dataid, _ := secsvar.NewUint(4, 0)
	defineBody, err := secsvar.NewListStructure([]string{"DATAID", "REPORTS"}, []secsvar.Variable{
		dataid, arrayOf(secsvar.NewDynamic(-1), []secsvar.Variable{reportEntry}),
	})
	if err != nil {
		return err
	}
	definePayload, err := defineBody.Encode()
	if err != nil {
		return err
	}
	if _, err := h.session.SendAndWaitForResponse(2, 33, definePayload); err != nil {
		return err
	}

	ceidVar, _ := secsvar.NewUint(4, uint64(ceid))
	linkEntry, err := secsvar.NewListStructure([]string{"CEID", "RPTIDS"}, []secsvar.Variable{
		ceidVar, arrayOf(secsvar.NewDynamic(-1, secsvar.FormatU4), []secsvar.Variable{rptidVar.Clone()}),
	})
	if err != nil {
		return err
	}
	linkBody, err := secsvar.NewListStructure([]string{"DATAID", "LINKS"}, []secsvar.Variable{
		dataid.Clone(), arrayOf(secsvar.NewDynamic(-1), []secsvar.Variable{linkEntry}),
	})
	if err != nil {
		return err
	}
	linkPayload, err := linkBody.Encode()
	if err != nil {
		return err
	}
	if _, err := h.session.SendAndWaitForResponse(2, 35, linkPayload); err != nil {
		return err
	}

	ceed, _ := secsvar.NewBoolean(true)
	enableBody, err := secsvar.NewListStructure([]string{"CEED", "CEIDS"}, []secsvar.Variable{
		ceed, arrayOf(secsvar.NewDynamic(-1, secsvar.FormatU4), []secsvar.Variable{ceidVar.Clone()}),
	})
	if err != nil {
		return err
	}
	enablePayload, err := enableBody.Encode()
	if err != nil {
		return err
	}
	_, err = h.session.SendAndWaitForResponse(2, 37, enablePayload)
	return err
}

// SendRemoteCommand implements "send_remote_command": it issues S2F41 with
// rcmd and the given name/value params, awaiting S2F42's HCACK.
func (h *Host) SendRemoteCommand(rcmd string, params map[string]secsvar.Variable) (byte, error) {
	rcmdVar := secsvar.NewDynamic(-1, secsvar.FormatASCII)
	if err := rcmdVar.Set(rcmd); err != nil {
		return 0, err
	}

	var paramEntries []secsvar.Variable
	for name, val := range params {
		nameVar := secsvar.NewDynamic(-1, secsvar.FormatASCII)
		if err := nameVar.Set(name); err != nil {
			return 0, err
		}
		entry, err := secsvar.NewListStructure([]string{"CPNAME", "CPVAL"}, []secsvar.Variable{nameVar, val})
		if err != nil {
			return 0, err
		}
		paramEntries = append(paramEntries, entry)
	}

	body, err := secsvar.NewListStructure([]string{"RCMD", "PARAMS"}, []secsvar.Variable{
		rcmdVar, arrayOf(secsvar.NewDynamic(-1), paramEntries),
	})
	if err != nil {
		return 0, err
	}
	payload, err := body.Encode()
	if err != nil {
		return 0, err
	}
	rsp, err := h.session.SendAndWaitForResponse(2, 41, payload)
	if err != nil {
		return 0, err
	}

	reply, err := secsvar.NewListStructure([]string{"HCACK", "CPACKS"}, []secsvar.Variable{
		mustBinary1(), secsvar.NewArray(secsvar.NewDynamic(-1), -1),
	})
	if err != nil {
		return 0, err
	}
	if _, err := reply.Decode(rsp.Payload); err != nil {
		return 0, err
	}
	hcackVar, _ := reply.Get(0)
	hcack, _ := hcackVar.(*secsvar.Binary)
	b := hcack.Bytes()
	if len(b) == 0 {
		return 0, secserr.New(secserr.KindFormatMismatch, "gem: empty HCACK")
	}
	return b[0], nil
}

// DeleteProcessPrograms implements "delete_process_programs": S7F17 with
// the given names, returning the PPGNT ack code.
func (h *Host) DeleteProcessPrograms(names ...string) (byte, error) {
	items := make([]secsvar.Variable, len(names))
	for i, n := range names {
		v := secsvar.NewDynamic(-1, secsvar.FormatASCII)
		if err := v.Set(n); err != nil {
			return 0, err
		}
		items[i] = v
	}
	payload, err := arrayOf(secsvar.NewDynamic(-1, secsvar.FormatASCII), items).Encode()
	if err != nil {
		return 0, err
	}
	rsp, err := h.session.SendAndWaitForResponse(7, 17, payload)
	if err != nil {
		return 0, err
	}
	reply, err := secsvar.NewListStructure([]string{"PPGNT"}, []secsvar.Variable{mustBinary1()})
	if err != nil {
		return 0, err
	}
	if _, err := reply.Decode(rsp.Payload); err != nil {
		return 0, err
	}
	v, _ := reply.Get(0)
	bin, _ := v.(*secsvar.Binary)
	b := bin.Bytes()
	if len(b) == 0 {
		return 0, secserr.New(secserr.KindFormatMismatch, "gem: empty PPGNT")
	}
	return b[0], nil
}

// GetProcessProgramList implements "get_process_program_list": S7F19/S7F20.
func (h *Host) GetProcessProgramList() ([]string, error) {
	rsp, err := h.session.SendAndWaitForResponse(7, 19, nil)
	if err != nil {
		return nil, err
	}
	arr := secsvar.NewArray(secsvar.NewDynamic(-1, secsvar.FormatASCII), -1)
	if _, err := arr.Decode(rsp.Payload); err != nil {
		return nil, err
	}
	var names []string
	for i := 0; i < arr.Size(); i++ {
		v, _ := arr.Get(i)
		if text, ok := unwrapDynamic(v).(*secsvar.Text); ok {
			names = append(names, text.Value())
		}
	}
	return names, nil
}

// GoOnline implements "go_online": S1F17, returning the ONLACK code.
func (h *Host) GoOnline() (byte, error) {
	rsp, err := h.session.SendAndWaitForResponse(1, 17, nil)
	if err != nil {
		return 0, err
	}
	return decodeSingleBinary(rsp.Payload, "ONLACK")
}

// GoOffline implements "go_offline": S1F15, returning the OFLACK code.
func (h *Host) GoOffline() (byte, error) {
	rsp, err := h.session.SendAndWaitForResponse(1, 15, nil)
	if err != nil {
		return 0, err
	}
	return decodeSingleBinary(rsp.Payload, "OFLACK")
}

func decodeSingleBinary(payload []byte, name string) (byte, error) {
	ls, err := secsvar.NewListStructure([]string{name}, []secsvar.Variable{mustBinary1()})
	if err != nil {
		return 0, err
	}
	if _, err := ls.Decode(payload); err != nil {
		return 0, err
	}
	v, _ := ls.Get(0)
	bin, _ := v.(*secsvar.Binary)
	b := bin.Bytes()
	if len(b) == 0 {
		return 0, secserr.New(secserr.KindFormatMismatch, "gem: empty %s", name)
	}
	return b[0], nil
}

// EnableAlarm/DisableAlarm implement "enable_alarm"/"disable_alarm": S5F3.
func (h *Host) EnableAlarm(alid int) error  { return h.setAlarmEnabled(alid, true) }
func (h *Host) DisableAlarm(alid int) error { return h.setAlarmEnabled(alid, false) }

func (h *Host) setAlarmEnabled(alid int, enable bool) error {
	aled, _ := secsvar.NewBoolean(enable)
	alidVar, _ := secsvar.NewUint(4, uint64(alid))
	body, err := secsvar.NewListStructure([]string{"ALED", "ALID"}, []secsvar.Variable{aled, alidVar})
	if err != nil {
		return err
	}
	payload, err := body.Encode()
	if err != nil {
		return err
	}
	rsp, err := h.session.SendAndWaitForResponse(5, 3, payload)
	if err != nil {
		return err
	}
	code, err := decodeSingleBinary(rsp.Payload, "ACKC5")
	if err != nil {
		return err
	}
	if code != 0 {
		return secserr.New(secserr.KindRejectedByPeer, "gem: enable/disable alarm %d denied, ackc5=%d", alid, code)
	}
	return nil
}

// ListAlarms implements "list_alarms": S5F5 with the given ALIDs (empty
// means all), returning the decoded alarm entries.
func (h *Host) ListAlarms(alids ...int) ([]Alarm, error) {
	return h.listAlarms(5, 5, alids)
}

// ListEnabledAlarms implements "list_enabled_alarms": S5F7.
func (h *Host) ListEnabledAlarms() ([]Alarm, error) {
	return h.listAlarms(5, 7, nil)
}

func (h *Host) listAlarms(stream, function byte, alids []int) ([]Alarm, error) {
	var payload []byte
	if len(alids) > 0 {
		items := make([]secsvar.Variable, len(alids))
		for i, id := range alids {
			v, _ := secsvar.NewUint(4, uint64(id))
			items[i] = v
		}
		var err error
		payload, err = arrayOf(secsvar.NewDynamic(-1, secsvar.FormatU4), items).Encode()
		if err != nil {
			return nil, err
		}
	}
	rsp, err := h.session.SendAndWaitForResponse(stream, function, payload)
	if err != nil {
		return nil, err
	}
	entryTemplate, err := secsvar.NewListStructure([]string{"ALCD", "ALID", "ALTX"}, []secsvar.Variable{
		mustBinary1(), mustUint4(), mustASCII(""),
	})
	if err != nil {
		return nil, err
	}
	arr := secsvar.NewArray(entryTemplate, -1)
	if _, err := arr.Decode(rsp.Payload); err != nil {
		return nil, err
	}
	var alarms []Alarm
	for i := 0; i < arr.Size(); i++ {
		v, _ := arr.Get(i)
		entry, ok := unwrapDynamic(v).(*secsvar.ListStructure)
		if !ok {
			continue
		}
		alcdVar, _ := entry.Get(0)
		alidVar, _ := entry.Get(1)
		altxVar, _ := entry.Get(2)
		alcdBin, _ := alcdVar.(*secsvar.Binary)
		alid, _ := coerceIDVar(alidVar)
		altx, _ := altxVar.(*secsvar.Text)
		var alcdByte byte
		if alcdBin != nil {
			b := alcdBin.Bytes()
			if len(b) > 0 {
				alcdByte = b[0]
			}
		}
		text := ""
		if altx != nil {
			text = altx.Value()
		}
		alarms = append(alarms, Alarm{
			ALID: int(alid),
			Text: text,
			Set:  alcdByte&0x80 != 0,
		})
	}
	return alarms, nil
}
