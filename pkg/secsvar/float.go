package secsvar

import (
	"fmt"
	"strconv"
	"strings"
)

// Float is a SECS-II IEEE-754 big-endian floating point variable of byte
// width 4 or 8 (format codes F4, F8).
type Float struct {
	*numeric
}

// NewFloat creates a Float of the given byte width holding values.
func NewFloat(width int, values ...float64) (*Float, error) {
	if width != 4 && width != 8 {
		return nil, errTypeMismatch(fmt.Sprintf("F%d", width))
	}
	v := &Float{&numeric{kind: numFloat, width: width}}
	if err := v.Set(values); err != nil {
		return nil, err
	}
	return v, nil
}

// Set replaces the Float's contents, range-checking every value against the
// declared width (F4 values must fit an IEEE-754 single).
func (v *Float) Set(values []float64) error {
	for _, x := range values {
		if err := v.checkFloat(x); err != nil {
			return err
		}
	}
	v.float = append([]float64(nil), values...)
	return nil
}

// Append adds a single value to the end of the Float, range-checking it.
func (v *Float) Append(value float64) error {
	if err := v.checkFloat(value); err != nil {
		return err
	}
	v.float = append(v.float, value)
	return nil
}

// Get returns the value at index i.
func (v *Float) Get(i int) (float64, error) {
	if i < 0 || i >= len(v.float) {
		return 0, errValueOutOfRange(v.FormatCode(), i)
	}
	return v.float[i], nil
}

// Values returns a copy of the Float's contents.
func (v *Float) Values() []float64 {
	return append([]float64(nil), v.float...)
}

func (v *Float) Clone() Variable { return wrapNumeric(v.numeric.dup()) }

func (v *Float) String() string {
	parts := make([]string, len(v.float))
	for i, x := range v.float {
		bits := 64
		if v.width == 4 {
			bits = 32
		}
		parts[i] = strconv.FormatFloat(x, 'g', -1, bits)
	}
	return fmt.Sprintf("<%s[%d] %s>", v.FormatCode(), v.Size(), strings.Join(parts, " "))
}
