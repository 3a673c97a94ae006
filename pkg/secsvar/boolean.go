package secsvar

import (
	"fmt"
	"strings"
)

// Boolean is a SECS-II boolean-sequence variable (format code BOOLEAN),
// encoded one byte per element (0x00 false, 0x01 true).
type Boolean struct {
	values []bool
}

// NewBoolean creates a Boolean holding values, each of which must be a
// bool, an int in {0,1}, or a case-insensitive "true"/"yes"/"false"/"no"
// string.
func NewBoolean(values ...interface{}) (*Boolean, error) {
	v := &Boolean{}
	if err := v.Set(values); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Boolean) FormatCode() FormatCode { return FormatBoolean }
func (v *Boolean) Size() int              { return len(v.values) }

func coerceBool(value interface{}) (bool, error) {
	switch val := value.(type) {
	case bool:
		return val, nil
	case int:
		switch val {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(val) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
	}
	return false, errTypeMismatch("BOOLEAN")
}

// Set replaces the Boolean's contents.
func (v *Boolean) Set(values []interface{}) error {
	out := make([]bool, len(values))
	for i, val := range values {
		b, err := coerceBool(val)
		if err != nil {
			return err
		}
		out[i] = b
	}
	v.values = out
	return nil
}

// Append adds a single value to the end of the Boolean.
func (v *Boolean) Append(value interface{}) error {
	b, err := coerceBool(value)
	if err != nil {
		return err
	}
	v.values = append(v.values, b)
	return nil
}

// Get returns the value at index i.
func (v *Boolean) Get(i int) (bool, error) {
	if i < 0 || i >= len(v.values) {
		return false, errValueOutOfRange(FormatBoolean, i)
	}
	return v.values[i], nil
}

// Values returns a copy of the Boolean's contents.
func (v *Boolean) Values() []bool { return append([]bool(nil), v.values...) }

func (v *Boolean) Encode() ([]byte, error) {
	header, err := encodeHeader(FormatBoolean, len(v.values))
	if err != nil {
		return nil, err
	}
	out := append(header, make([]byte, len(v.values))...)
	for i, b := range v.values {
		if b {
			out[len(header)+i] = 1
		}
	}
	return out, nil
}

func (v *Boolean) Decode(data []byte) (int, error) {
	format, byteLength, headerLen, err := decodeHeader(data)
	if err != nil {
		return 0, err
	}
	if format != FormatBoolean {
		return 0, errFormatMismatch(FormatBoolean, format)
	}
	if len(data) < headerLen+byteLength {
		return 0, errTruncated("boolean payload")
	}
	out := make([]bool, byteLength)
	for i, b := range data[headerLen : headerLen+byteLength] {
		out[i] = b != 0
	}
	v.values = out
	return headerLen + byteLength, nil
}

func (v *Boolean) Clone() Variable {
	return &Boolean{values: append([]bool(nil), v.values...)}
}

func (v *Boolean) String() string {
	parts := make([]string, len(v.values))
	for i, b := range v.values {
		if b {
			parts[i] = "T"
		} else {
			parts[i] = "F"
		}
	}
	return fmt.Sprintf("<BOOLEAN[%d] %s>", v.Size(), strings.Join(parts, " "))
}
