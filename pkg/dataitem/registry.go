package dataitem

import (
	"fmt"

	"github.com/wolimst/gosecs/pkg/secsvar"
)

// SFKey identifies a stream/function message pair.
type SFKey struct {
	Stream   int
	Function int
}

func (k SFKey) String() string { return fmt.Sprintf("S%dF%d", k.Stream, k.Function) }

// MessageSpec describes a single (stream, function) message: its data
// format (a schema factory), direction flags, and whether it requires a
// reply.
type MessageSpec struct {
	Key             SFKey
	Name            string
	DataFormat      func() secsvar.Variable
	ToHost          bool
	ToEquipment     bool
	HasReply        bool
	IsReplyRequired bool
	IsMultiBlock    bool
}

// Build instantiates a fresh zero-value Variable tree for this message's
// data format. A nil DataFormat means the message carries no data (e.g.
// Are-You-There, S1F1).
func (m MessageSpec) Build() secsvar.Variable {
	if m.DataFormat == nil {
		return nil
	}
	return m.DataFormat()
}

// Registry is an immutable lookup table from (stream,function) to
// MessageSpec, built by NewDefaultRegistry; each hsms.Session builds its
// own to name unhandled messages in its log.
type Registry struct {
	specs map[SFKey]MessageSpec
}

// Lookup returns the MessageSpec registered for (stream, function).
func (r *Registry) Lookup(stream, function int) (MessageSpec, bool) {
	spec, ok := r.specs[SFKey{stream, function}]
	return spec, ok
}

// NewDefaultRegistry builds the registry covering the (stream, function)
// subset required by the GEM layer (C7/C8/C9), including the
// process-program stream/function pairs.
func NewDefaultRegistry() *Registry {
	specs := []MessageSpec{
		{Key: SFKey{1, 1}, Name: "AreYouThere", ToEquipment: true, HasReply: true, IsReplyRequired: true},
		{Key: SFKey{1, 2}, Name: "OnLineData", ToHost: true,
			DataFormat: namedList(MDLN, SOFTREV)},
		{Key: SFKey{1, 3}, Name: "SelectedEquipmentStatusRequest", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: array(SVID, -1)},
		{Key: SFKey{1, 4}, Name: "SelectedEquipmentStatusData", ToHost: true,
			DataFormat: array(SV, -1)},
		{Key: SFKey{1, 11}, Name: "StatusVariableNamelistRequest", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: array(SVID, -1)},
		{Key: SFKey{1, 12}, Name: "StatusVariableNamelistReply", ToHost: true,
			DataFormat: array(namedListItem("SVNAMELIST", SVID, SVNAME, UNITS), -1)},
		{Key: SFKey{1, 13}, Name: "EstablishCommunicationsRequest", ToHost: true, ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: namedList(MDLN, SOFTREV)},
		{Key: SFKey{1, 14}, Name: "EstablishCommunicationsRequestAcknowledge", ToHost: true, ToEquipment: true,
			DataFormat: namedList(COMMACK, namedListField("MDLN_SOFTREV", MDLN, SOFTREV))},
		{Key: SFKey{1, 15}, Name: "RequestOffLine", ToEquipment: true, HasReply: true, IsReplyRequired: true},
		{Key: SFKey{1, 16}, Name: "OffLineAcknowledge", ToHost: true, DataFormat: namedList(OFLACK)},
		{Key: SFKey{1, 17}, Name: "RequestOnLine", ToEquipment: true, HasReply: true, IsReplyRequired: true},
		{Key: SFKey{1, 18}, Name: "OnLineAcknowledge", ToHost: true, DataFormat: namedList(ONLACK)},

		{Key: SFKey{2, 13}, Name: "EquipmentConstantRequest", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: array(ECID, -1)},
		{Key: SFKey{2, 14}, Name: "EquipmentConstantData", ToHost: true, DataFormat: array(ECV, -1)},
		{Key: SFKey{2, 15}, Name: "NewEquipmentConstant", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: array(namedListItem("ECV", ECID, ECV), -1)},
		{Key: SFKey{2, 16}, Name: "NewEquipmentConstantAcknowledge", ToHost: true, DataFormat: namedList(EAC)},
		{Key: SFKey{2, 29}, Name: "EquipmentConstantNamelistRequest", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: array(ECID, -1)},
		{Key: SFKey{2, 30}, Name: "EquipmentConstantNamelistReply", ToHost: true,
			DataFormat: array(namedListItem("ECNAMELIST", ECID, ECNAME, ECMIN, ECMAX, ECDEF, UNITS), -1)},

		{Key: SFKey{2, 33}, Name: "DefineReport", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: namedList(DATAID, array(namedListItem("RPT", RPTID, array(VID, -1)), -1))},
		{Key: SFKey{2, 34}, Name: "DefineReportAcknowledge", ToHost: true, DataFormat: namedList(DRACK)},
		{Key: SFKey{2, 35}, Name: "LinkEventReport", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: namedList(DATAID, array(namedListItem("CEIDRPT", CEID, array(RPTID, -1)), -1))},
		{Key: SFKey{2, 36}, Name: "LinkEventReportAcknowledge", ToHost: true, DataFormat: namedList(LRACK)},
		{Key: SFKey{2, 37}, Name: "EnableDisableEventReport", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: namedList(CEED, array(CEID, -1))},
		{Key: SFKey{2, 38}, Name: "EnableDisableEventReportAcknowledge", ToHost: true, DataFormat: namedList(ERACK)},

		{Key: SFKey{2, 41}, Name: "HostCommandSend", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: namedList(RCMD, array(namedListItem("CPVAL", CPNAME, CPVAL), -1))},
		{Key: SFKey{2, 42}, Name: "HostCommandAcknowledge", ToHost: true,
			DataFormat: namedList(HCACK, array(namedListItem("CPACK", CPNAME, item("CPACK", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })), -1))},

		{Key: SFKey{5, 1}, Name: "AlarmReportSend", ToHost: true,
			DataFormat: namedList(ALCD, ALID, ALTX)},
		{Key: SFKey{5, 2}, Name: "AlarmReportAcknowledge", ToEquipment: true,
			DataFormat: namedList(item("ACKC5", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) }))},
		{Key: SFKey{5, 3}, Name: "EnableDisableAlarmSend", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: namedList(item("ALED", func() secsvar.Variable { return mustVar(secsvar.NewBoolean(false)) }), ALID)},
		{Key: SFKey{5, 4}, Name: "EnableDisableAlarmAcknowledge", ToHost: true,
			DataFormat: namedList(item("ACKC5", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) }))},
		{Key: SFKey{5, 5}, Name: "ListAlarmsRequest", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: array(ALID, -1)},
		{Key: SFKey{5, 6}, Name: "ListAlarmsData", ToHost: true,
			DataFormat: array(namedListItem("ALARM", ALCD, ALID, ALTX), -1)},
		{Key: SFKey{5, 7}, Name: "ListEnabledAlarmsRequest", ToEquipment: true, HasReply: true, IsReplyRequired: true},
		{Key: SFKey{5, 8}, Name: "ListEnabledAlarmsData", ToHost: true,
			DataFormat: array(namedListItem("ALARM", ALCD, ALID, ALTX), -1)},

		{Key: SFKey{6, 11}, Name: "EventReport", ToHost: true, HasReply: true, IsReplyRequired: true,
			DataFormat: namedList(DATAID, CEID, array(namedListItem("RPT", RPTID, array(SV, -1)), -1))},
		{Key: SFKey{6, 12}, Name: "EventReportAcknowledge", ToEquipment: true,
			DataFormat: namedList(item("ACKC6", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) }))},

		{Key: SFKey{7, 17}, Name: "DeleteProcessProgramSend", ToEquipment: true, HasReply: true, IsReplyRequired: true,
			DataFormat: array(PPID, -1)},
		{Key: SFKey{7, 18}, Name: "DeleteProcessProgramAcknowledge", ToHost: true, DataFormat: namedList(PPGNT)},
		{Key: SFKey{7, 19}, Name: "CurrentEPPDRequest", ToEquipment: true, HasReply: true, IsReplyRequired: true},
		{Key: SFKey{7, 20}, Name: "CurrentEPPDData", ToHost: true, DataFormat: array(PPID, -1)},

		{Key: SFKey{9, 5}, Name: "UnrecognizedFunctionType", ToHost: true, ToEquipment: true},
	}

	m := make(map[SFKey]MessageSpec, len(specs))
	for _, s := range specs {
		m[s.Key] = s
	}
	return &Registry{specs: m}
}

// namedListItem builds a named ListStructure schema; the name is metadata
// only (used for documentation/String()) since the wire format does not
// encode field/structure names.
func namedListItem(name string, fields ...Descriptor) Descriptor {
	return Descriptor{Name: name, Build: namedList(fields...)}
}

// namedListField is a convenience alias of namedListItem, used where the
// synthesized field groups two or more items (e.g. MDLN+SOFTREV nested
// under S1F14's second element).
func namedListField(name string, fields ...Descriptor) Descriptor {
	return namedListItem(name, fields...)
}
