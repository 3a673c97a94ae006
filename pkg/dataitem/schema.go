// Package dataitem implements the C2 layer: named, typed, count/range
// constrained data-item schemas and the (stream, function) registry built
// from them. A schema is a factory that builds a fresh secsvar.Variable
// template; Array and ListStructure schemas may recursively reference
// other schemas, using a list literal as a template the same way
// secsvar.NewListStructure does.
package dataitem

import (
	"fmt"

	"github.com/wolimst/gosecs/internal/secserr"
	"github.com/wolimst/gosecs/pkg/secsvar"
)

// Descriptor is a named data-item schema: Build constructs a fresh,
// zero-value Variable matching the item's wire kind and constraints.
type Descriptor struct {
	Name  string
	Build func() secsvar.Variable
}

func item(name string, build func() secsvar.Variable) Descriptor {
	return Descriptor{Name: name, Build: build}
}

func mustVar(v secsvar.Variable, err error) secsvar.Variable {
	if err != nil {
		panic(fmt.Sprintf("dataitem: invalid built-in schema default: %v", err))
	}
	return v
}

// Enumerated constant tables reproduced from the SEMI E5/E30 standard.
var (
	CommackNames = map[byte]string{0: "ACCEPTED", 1: "DENIED"}
	OflackNames  = map[byte]string{0: "ACK"}
	OnlackNames  = map[byte]string{0: "ACK", 1: "REFUSED_NOT_ALLOWED", 2: "REFUSED_ALREADY_ONLINE"}
	DrackNames   = map[byte]string{0: "ACK", 1: "DENIED_TOO_MANY_RPTID", 2: "DENIED_UNKNOWN_VID", 3: "DENIED_REDEFINE", 4: "DENIED_RPTID_LIMIT", 5: "DENIED_DEFINED"}
	LrackNames   = map[byte]string{0: "ACK", 1: "DENIED_TOO_MANY", 2: "DENIED_UNKNOWN_CEID", 3: "DENIED_UNKNOWN_RPTID", 4: "DENIED_ALREADY_LINKED", 5: "DENIED_STILL_LINKED"}
	ErackNames   = map[byte]string{0: "ACK", 1: "DENIED", 2: "DENIED_UNKNOWN_CEID"}
	EacNames     = map[byte]string{0: "ACK", 1: "DENIED_UNKNOWN_ECID", 2: "DENIED_BUSY", 3: "DENIED_OUT_OF_RANGE", 4: "DENIED_READ_ONLY"}
	Ackc5Names   = map[byte]string{0: "ACK", 1: "DENIED"}
	Ackc6Names   = map[byte]string{0: "ACK", 1: "DENIED"}
	Ackc7Names   = map[byte]string{0: "ACK", 1: "DENIED_FORMAT", 2: "DENIED_NO_MATCH", 3: "DENIED_SIZE"}
	Ackc10Names  = map[byte]string{0: "ACK", 1: "DENIED_TERMINAL"}
	HcackNames   = map[byte]string{0: "ACK_FINISH_LATER", 1: "DENIED_UNKNOWN_RCMD", 2: "DENIED_BUSY", 3: "DENIED_UNKNOWN_CPNAME", 4: "DENIED_ILLEGAL_CPVAL", 5: "DENIED_NO_CPVAL", 6: "ACK_FINISH_NOW"}
)

// Scalar and text item descriptors used throughout the S1/S2/S5/S6/S7
// message set.
var (
	MDLN    = item("MDLN", func() secsvar.Variable { return mustVar(secsvar.NewASCII(20, "")) })
	SOFTREV = item("SOFTREV", func() secsvar.Variable { return mustVar(secsvar.NewASCII(20, "")) })
	COMMACK = item("COMMACK", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })
	OFLACK  = item("OFLACK", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })
	ONLACK  = item("ONLACK", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })

	SVID   = item("SVID", func() secsvar.Variable { return secsvar.NewDynamic(-1, secsvar.FormatU4, secsvar.FormatASCII) })
	SV     = item("SV", func() secsvar.Variable { return secsvar.NewDynamic(-1) })
	SVNAME = item("SVNAME", func() secsvar.Variable { return mustVar(secsvar.NewASCII(-1, "")) })
	UNITS  = item("UNITS", func() secsvar.Variable { return mustVar(secsvar.NewASCII(-1, "")) })

	ECID   = item("ECID", func() secsvar.Variable { return secsvar.NewDynamic(-1, secsvar.FormatU4, secsvar.FormatASCII) })
	ECV    = item("ECV", func() secsvar.Variable { return secsvar.NewDynamic(-1) })
	ECNAME = item("ECNAME", func() secsvar.Variable { return mustVar(secsvar.NewASCII(-1, "")) })
	ECMIN  = item("ECMIN", func() secsvar.Variable { return secsvar.NewDynamic(-1) })
	ECMAX  = item("ECMAX", func() secsvar.Variable { return secsvar.NewDynamic(-1) })
	ECDEF  = item("ECDEF", func() secsvar.Variable { return secsvar.NewDynamic(-1) })
	EAC    = item("EAC", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })

	DATAID = item("DATAID", func() secsvar.Variable { return mustVar(secsvar.NewUint(4, 0)) })
	CEID   = item("CEID", func() secsvar.Variable { return secsvar.NewDynamic(-1, secsvar.FormatU4, secsvar.FormatASCII) })
	RPTID  = item("RPTID", func() secsvar.Variable { return secsvar.NewDynamic(-1, secsvar.FormatU4, secsvar.FormatASCII) })
	VID    = item("VID", func() secsvar.Variable { return secsvar.NewDynamic(-1, secsvar.FormatU4, secsvar.FormatASCII) })
	DRACK  = item("DRACK", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })
	LRACK  = item("LRACK", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })
	CEED   = item("CEED", func() secsvar.Variable { return mustVar(secsvar.NewBoolean(false)) })
	ERACK  = item("ERACK", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })

	ALID = item("ALID", func() secsvar.Variable { return mustVar(secsvar.NewUint(4, 0)) })
	ALCD = item("ALCD", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })
	ALTX = item("ALTX", func() secsvar.Variable { return mustVar(secsvar.NewASCII(120, "")) })

	RCMD   = item("RCMD", func() secsvar.Variable { return secsvar.NewDynamic(-1, secsvar.FormatASCII, secsvar.FormatU4) })
	CPNAME = item("CPNAME", func() secsvar.Variable { return secsvar.NewDynamic(-1, secsvar.FormatASCII, secsvar.FormatU4) })
	CPVAL  = item("CPVAL", func() secsvar.Variable { return secsvar.NewDynamic(-1) })
	HCACK  = item("HCACK", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })

	TID  = item("TID", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })
	TEXT = item("TEXT", func() secsvar.Variable { return mustVar(secsvar.NewASCII(-1, "")) })

	PPID  = item("PPID", func() secsvar.Variable { return secsvar.NewDynamic(-1, secsvar.FormatASCII, secsvar.FormatBinary) })
	PPGNT = item("PPGNT", func() secsvar.Variable { return mustVar(secsvar.NewBinary(1, 0)) })
)

// namedList builds an anonymous/named ListStructure schema from field
// names and item factories. The name itself is metadata carried by the
// MessageSpec, not encoded on the wire.
func namedList(fields ...Descriptor) func() secsvar.Variable {
	return func() secsvar.Variable {
		names := make([]string, len(fields))
		templates := make([]secsvar.Variable, len(fields))
		for i, f := range fields {
			names[i] = f.Name
			templates[i] = f.Build()
		}
		ls, err := secsvar.NewListStructure(names, templates)
		if err != nil {
			panic(fmt.Sprintf("dataitem: invalid named-list schema: %v", err))
		}
		return ls
	}
}

// array builds a homogeneous Array schema over a single element item.
func array(elem Descriptor, count int) func() secsvar.Variable {
	return func() secsvar.Variable {
		return secsvar.NewArray(elem.Build(), count)
	}
}

var errUnknownDataItem = secserr.New(secserr.KindTypeMismatch, "unknown data item")
