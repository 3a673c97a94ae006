package secsvar

import "fmt"

// Binary is a SECS-II byte-sequence variable (format code B), optionally
// bounded to a fixed maximum element count.
type Binary struct {
	count int // fixed max count, -1 if unbounded
	data  []byte
}

// NewBinary creates a Binary with an optional fixed maximum count (-1 for
// unbounded) and initial contents.
func NewBinary(count int, data ...byte) (*Binary, error) {
	v := &Binary{count: count}
	if err := v.Set(data); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Binary) FormatCode() FormatCode { return FormatBinary }
func (v *Binary) Size() int              { return len(v.data) }

// Set assigns the Binary's contents. value may be a []byte, a []int (each
// in [0,255]), or a string whose bytes do not exceed the fixed count.
func (v *Binary) Set(value interface{}) error {
	var data []byte
	switch val := value.(type) {
	case []byte:
		data = val
	case string:
		data = []byte(val)
	case []int:
		data = make([]byte, len(val))
		for i, x := range val {
			if x < 0 || x > 255 {
				return errValueOutOfRange(FormatBinary, x)
			}
			data[i] = byte(x)
		}
	case int:
		if val < 0 || val > 255 {
			return errValueOutOfRange(FormatBinary, val)
		}
		data = []byte{byte(val)}
	default:
		return errTypeMismatch("BINARY")
	}

	if v.count >= 0 && len(data) > v.count {
		return errValueCount(v.count, len(data))
	}
	v.data = append([]byte(nil), data...)
	return nil
}

// Get returns the byte at index i, zero-extending up to the fixed count if
// the index is beyond the current length but within bounds.
func (v *Binary) Get(i int) (byte, error) {
	if i < 0 {
		return 0, errValueOutOfRange(FormatBinary, i)
	}
	if i < len(v.data) {
		return v.data[i], nil
	}
	limit := v.count
	if limit < 0 {
		limit = len(v.data)
	}
	if i < limit {
		return 0, nil
	}
	return 0, errValueOutOfRange(FormatBinary, i)
}

// Bytes returns a copy of the Binary's contents.
func (v *Binary) Bytes() []byte { return append([]byte(nil), v.data...) }

// Scalar returns the single byte as an int if Size()==1; otherwise it
// returns the raw bytes.
func (v *Binary) Scalar() interface{} {
	if len(v.data) == 1 {
		return int(v.data[0])
	}
	return v.Bytes()
}

func (v *Binary) Encode() ([]byte, error) {
	header, err := encodeHeader(FormatBinary, len(v.data))
	if err != nil {
		return nil, err
	}
	return append(header, v.data...), nil
}

func (v *Binary) Decode(data []byte) (int, error) {
	format, byteLength, headerLen, err := decodeHeader(data)
	if err != nil {
		return 0, err
	}
	if format != FormatBinary {
		return 0, errFormatMismatch(FormatBinary, format)
	}
	if len(data) < headerLen+byteLength {
		return 0, errTruncated("binary payload")
	}
	if v.count >= 0 && byteLength > v.count {
		return 0, errValueCount(v.count, byteLength)
	}
	v.data = append([]byte(nil), data[headerLen:headerLen+byteLength]...)
	return headerLen + byteLength, nil
}

func (v *Binary) Clone() Variable {
	return &Binary{count: v.count, data: append([]byte(nil), v.data...)}
}

func (v *Binary) String() string {
	return fmt.Sprintf("<B[%d] % x>", v.Size(), v.data)
}
