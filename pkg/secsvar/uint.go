package secsvar

import (
	"fmt"
	"strconv"
	"strings"
)

// Uint is a SECS-II unsigned integer variable of byte width 1, 2, 4, or 8
// (format codes U1, U2, U4, U8).
type Uint struct {
	*numeric
}

// NewUint creates a Uint of the given byte width holding values, each of
// which must fit within width bytes unsigned.
func NewUint(width int, values ...uint64) (*Uint, error) {
	if width != 1 && width != 2 && width != 4 && width != 8 {
		return nil, errTypeMismatch(fmt.Sprintf("U%d", width))
	}
	v := &Uint{&numeric{kind: numUnsigned, width: width}}
	if err := v.Set(values); err != nil {
		return nil, err
	}
	return v, nil
}

// Set replaces the Uint's contents, range-checking every value.
func (v *Uint) Set(values []uint64) error {
	for _, x := range values {
		if err := v.checkUnsigned(x); err != nil {
			return err
		}
	}
	v.unsigned = append([]uint64(nil), values...)
	return nil
}

// Append adds a single value to the end of the Uint, range-checking it.
func (v *Uint) Append(value uint64) error {
	if err := v.checkUnsigned(value); err != nil {
		return err
	}
	v.unsigned = append(v.unsigned, value)
	return nil
}

// Get returns the value at index i.
func (v *Uint) Get(i int) (uint64, error) {
	if i < 0 || i >= len(v.unsigned) {
		return 0, errValueOutOfRange(v.FormatCode(), i)
	}
	return v.unsigned[i], nil
}

// Values returns a copy of the Uint's contents.
func (v *Uint) Values() []uint64 {
	return append([]uint64(nil), v.unsigned...)
}

func (v *Uint) Clone() Variable { return wrapNumeric(v.numeric.dup()) }

func (v *Uint) String() string {
	parts := make([]string, len(v.unsigned))
	for i, x := range v.unsigned {
		parts[i] = strconv.FormatUint(x, 10)
	}
	return fmt.Sprintf("<%s[%d] %s>", v.FormatCode(), v.Size(), strings.Join(parts, " "))
}
