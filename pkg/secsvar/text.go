package secsvar

import (
	"fmt"
	"strconv"
)

// charset is the declared encoding of a Text variable.
type charset int

const (
	charsetASCII charset = iota
	charsetJIS8
)

// Text is a SECS-II character-string variable, representing either
// String-ASCII (format code A, Latin-1) or String-JIS8 (format code J,
// JIS-8) depending on how it was constructed.
type Text struct {
	set    charset
	count  int // fixed max character count, -1 if unbounded
	runes  []byte
}

// NewASCII creates a String-ASCII Text with an optional fixed maximum
// character count (-1 for unbounded).
func NewASCII(count int, value interface{}) (*Text, error) {
	v := &Text{set: charsetASCII, count: count}
	if err := v.Set(value); err != nil {
		return nil, err
	}
	return v, nil
}

// NewJIS8 creates a String-JIS8 Text with an optional fixed maximum
// character count (-1 for unbounded).
func NewJIS8(count int, value interface{}) (*Text, error) {
	v := &Text{set: charsetJIS8, count: count}
	if err := v.Set(value); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Text) FormatCode() FormatCode {
	if v.set == charsetJIS8 {
		return FormatJIS8
	}
	return FormatASCII
}

func (v *Text) Size() int { return len(v.runes) }

func (v *Text) charsetName() string {
	if v.set == charsetJIS8 {
		return "JIS-8"
	}
	return "Latin-1"
}

// Set assigns the Text's contents. value may be a string, []byte, a
// numeric value (converted via its decimal string form), or a []int of
// byte values.
func (v *Text) Set(value interface{}) error {
	var b []byte
	switch val := value.(type) {
	case string:
		b = []byte(val)
	case []byte:
		b = append([]byte(nil), val...)
	case int:
		b = []byte(strconv.Itoa(val))
	case int64:
		b = []byte(strconv.FormatInt(val, 10))
	case float64:
		b = []byte(strconv.FormatFloat(val, 'g', -1, 64))
	case []int:
		b = make([]byte, len(val))
		for i, x := range val {
			if x < 0 || x > 255 {
				return errValueOutOfRange(v.FormatCode(), x)
			}
			b[i] = byte(x)
		}
	default:
		return errEncodingError(v.charsetName(), fmt.Errorf("unsupported value type %T", value))
	}

	if v.count >= 0 && len(b) > v.count {
		return errValueCount(v.count, len(b))
	}
	v.runes = b
	return nil
}

// Value returns the Text's contents as a Go string.
func (v *Text) Value() string { return string(v.runes) }

func (v *Text) Encode() ([]byte, error) {
	header, err := encodeHeader(v.FormatCode(), len(v.runes))
	if err != nil {
		return nil, err
	}
	return append(header, v.runes...), nil
}

func (v *Text) Decode(data []byte) (int, error) {
	format, byteLength, headerLen, err := decodeHeader(data)
	if err != nil {
		return 0, err
	}
	if format != v.FormatCode() {
		return 0, errFormatMismatch(v.FormatCode(), format)
	}
	if len(data) < headerLen+byteLength {
		return 0, errTruncated("text payload")
	}
	if v.count >= 0 && byteLength > v.count {
		return 0, errValueCount(v.count, byteLength)
	}
	v.runes = append([]byte(nil), data[headerLen:headerLen+byteLength]...)
	return headerLen + byteLength, nil
}

func (v *Text) Clone() Variable {
	return &Text{set: v.set, count: v.count, runes: append([]byte(nil), v.runes...)}
}

func (v *Text) String() string {
	return fmt.Sprintf("<%s[%d] %q>", v.FormatCode(), v.Size(), string(v.runes))
}
