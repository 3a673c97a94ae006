package secsvar

import (
	"fmt"
	"strings"
)

// ListStructure is a SECS-II List variable (format code L) used as a named
// structure: children are keyed by name, insertion order matches
// declaration order, and names are unique within the parent.
type ListStructure struct {
	names  []string
	fields []Variable
}

// NewListStructure builds a ListStructure from a schema: names gives each
// field's declared name (in declaration order) and templates gives each
// field's zero-value Variable. Names must be unique.
func NewListStructure(names []string, templates []Variable) (*ListStructure, error) {
	if len(names) != len(templates) {
		return nil, errTypeMismatch("LIST schema: names/templates length mismatch")
	}
	seen := make(map[string]bool, len(names))
	fields := make([]Variable, len(templates))
	for i, name := range names {
		if seen[name] {
			return nil, errTypeMismatch(fmt.Sprintf("duplicate field name %q", name))
		}
		seen[name] = true
		fields[i] = templates[i].Clone()
	}
	return &ListStructure{names: append([]string(nil), names...), fields: fields}, nil
}

func (v *ListStructure) FormatCode() FormatCode { return FormatList }
func (v *ListStructure) Size() int              { return len(v.fields) }

// Names returns the declared field names in declaration order.
func (v *ListStructure) Names() []string { return append([]string(nil), v.names...) }

func (v *ListStructure) indexOf(name string) (int, bool) {
	for i, n := range v.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Get returns the field named key (string) or at position key (int).
func (v *ListStructure) Get(key interface{}) (Variable, error) {
	switch k := key.(type) {
	case int:
		if k < 0 || k >= len(v.fields) {
			return nil, errValueOutOfRange(FormatList, k)
		}
		return v.fields[k], nil
	case string:
		idx, ok := v.indexOf(k)
		if !ok {
			return nil, errTypeMismatch(fmt.Sprintf("no field named %q", k))
		}
		return v.fields[idx], nil
	default:
		return nil, errTypeMismatch("LIST index must be int or string")
	}
}

// SetField assigns a new Variable to the field named/positioned by key. The
// replacement must be assignment-compatible with the declared field (same
// concrete variant), otherwise TypeMismatch is returned.
func (v *ListStructure) SetField(key interface{}, value Variable) error {
	var idx int
	switch k := key.(type) {
	case int:
		if k < 0 || k >= len(v.fields) {
			return errValueOutOfRange(FormatList, k)
		}
		idx = k
	case string:
		i, ok := v.indexOf(k)
		if !ok {
			return errTypeMismatch(fmt.Sprintf("no field named %q", k))
		}
		idx = i
	default:
		return errTypeMismatch("LIST index must be int or string")
	}

	if dyn, ok := v.fields[idx].(*Dynamic); ok {
		clone := dyn.Clone().(*Dynamic)
		if err := clone.Set(value); err != nil {
			return err
		}
		v.fields[idx] = clone
		return nil
	}

	if !assignmentCompatible(v.fields[idx], value) {
		return errTypeMismatch(fmt.Sprintf("field %q", v.names[idx]))
	}
	v.fields[idx] = value.Clone()
	return nil
}

// Set assigns fields either from a mapping (per-name assignment, values are
// Variables) or a positional slice of Variables. A positional slice longer
// than the declared field count fails with ValueCount; fields beyond the
// given values keep their constructed defaults.
func (v *ListStructure) Set(value interface{}) error {
	switch val := value.(type) {
	case map[string]Variable:
		for name, x := range val {
			if err := v.SetField(name, x); err != nil {
				return err
			}
		}
		return nil
	case []Variable:
		if len(val) > len(v.fields) {
			return errValueCount(len(v.fields), len(val))
		}
		for i, x := range val {
			if err := v.SetField(i, x); err != nil {
				return err
			}
		}
		return nil
	default:
		return errTypeMismatch("LIST")
	}
}

func (v *ListStructure) Encode() ([]byte, error) {
	header, err := encodeHeader(FormatList, len(v.fields))
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), header...)
	for _, f := range v.fields {
		child, err := f.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, child...)
	}
	return out, nil
}

// Decode reads a list header declaring length k, then decodes the first k
// declared children in order. Trailing declared children (beyond k) are
// left unset at their constructed defaults.
func (v *ListStructure) Decode(data []byte) (int, error) {
	format, count, headerLen, err := decodeHeader(data)
	if err != nil {
		return 0, err
	}
	if format != FormatList {
		return 0, errFormatMismatch(FormatList, format)
	}
	if count > len(v.fields) {
		return 0, errValueCount(len(v.fields), count)
	}

	pos := headerLen
	for i := 0; i < count; i++ {
		n, err := v.fields[i].Decode(data[pos:])
		if err != nil {
			return 0, err
		}
		pos += n
	}
	return pos, nil
}

func (v *ListStructure) Clone() Variable {
	fields := make([]Variable, len(v.fields))
	for i, f := range v.fields {
		fields[i] = f.Clone()
	}
	return &ListStructure{names: append([]string(nil), v.names...), fields: fields}
}

func (v *ListStructure) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<L[%d]\n", v.Size())
	for i, f := range v.fields {
		fmt.Fprintf(&sb, "  %s: %s\n", v.names[i], f)
	}
	sb.WriteString(">")
	return sb.String()
}

// assignmentCompatible reports whether replacement may be assigned in place
// of current: they must share a concrete variant (and, for numeric
// variants, byte width). There is no subtyping among secsvar variants, so
// replacement compatibility collapses to variant equality.
func assignmentCompatible(current, replacement Variable) bool {
	switch cur := current.(type) {
	case *Int:
		repl, ok := replacement.(*Int)
		return ok && repl.width == cur.width
	case *Uint:
		repl, ok := replacement.(*Uint)
		return ok && repl.width == cur.width
	case *Float:
		repl, ok := replacement.(*Float)
		return ok && repl.width == cur.width
	case *Text:
		repl, ok := replacement.(*Text)
		return ok && repl.set == cur.set
	case *Binary:
		_, ok := replacement.(*Binary)
		return ok
	case *Boolean:
		_, ok := replacement.(*Boolean)
		return ok
	case *ListStructure:
		_, ok := replacement.(*ListStructure)
		return ok
	case *Array:
		_, ok := replacement.(*Array)
		return ok
	case *Dynamic:
		// A Dynamic field accepts anything in its allowed set; delegated to
		// Dynamic.Set by the caller, so any replacement is provisionally ok
		// here and will be validated by Dynamic.Set downstream.
		return true
	default:
		return false
	}
}
