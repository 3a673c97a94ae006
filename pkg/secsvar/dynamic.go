package secsvar

import (
	"fmt"
	"strings"

	"github.com/golang-collections/collections/set"
)

// AllowAny is the sentinel allowed-types set meaning "every variant is
// allowed" — an explicit named value rather than a bare nil/empty slice.
var AllowAny = []FormatCode{}

// Dynamic is a SECS-II variable that is polymorphic over an allowed-types
// set. It holds no value of its own; at Set or Decode time it resolves to
// exactly one inner variant.
type Dynamic struct {
	allowed *set.Set // of FormatCode; empty set == AllowAny
	count   int      // fixed element count passed to the resolved variant, -1 if unbounded
	inner   Variable
}

// NewDynamic creates a Dynamic variable allowed to resolve to any of the
// given format codes (AllowAny, i.e. no arguments, permits every variant).
func NewDynamic(count int, allowed ...FormatCode) *Dynamic {
	s := set.New()
	for _, a := range allowed {
		s.Insert(a)
	}
	return &Dynamic{allowed: s, count: count}
}

func (v *Dynamic) allows(f FormatCode) bool {
	return v.allowed.Len() == 0 || v.allowed.Has(f)
}

// FormatCode returns FormatList as a placeholder when unresolved; use
// ResolvedFormatCode once a value has been set or decoded.
func (v *Dynamic) FormatCode() FormatCode {
	if v.inner != nil {
		return v.inner.FormatCode()
	}
	return FormatList
}

// ResolvedFormatCode returns the format code of the currently resolved
// inner variant, or 0 if unresolved.
func (v *Dynamic) ResolvedFormatCode() FormatCode {
	if v.inner == nil {
		return 0
	}
	return v.inner.FormatCode()
}

// Inner returns the currently resolved variant, or nil.
func (v *Dynamic) Inner() Variable { return v.inner }

func (v *Dynamic) Size() int {
	if v.inner == nil {
		return 0
	}
	return v.inner.Size()
}

// newTemplateFor builds the zero-value Variable for a given format code,
// sized to this Dynamic's declared count.
func (v *Dynamic) newTemplateFor(f FormatCode) (Variable, error) {
	switch f {
	case FormatList:
		return NewArray(NewDynamic(-1), v.count), nil
	case FormatBinary:
		return &Binary{count: v.count}, nil
	case FormatBoolean:
		return &Boolean{}, nil
	case FormatASCII:
		return &Text{set: charsetASCII, count: v.count}, nil
	case FormatJIS8:
		return &Text{set: charsetJIS8, count: v.count}, nil
	case FormatI1:
		return &Int{&numeric{kind: numSigned, width: 1}}, nil
	case FormatI2:
		return &Int{&numeric{kind: numSigned, width: 2}}, nil
	case FormatI4:
		return &Int{&numeric{kind: numSigned, width: 4}}, nil
	case FormatI8:
		return &Int{&numeric{kind: numSigned, width: 8}}, nil
	case FormatU1:
		return &Uint{&numeric{kind: numUnsigned, width: 1}}, nil
	case FormatU2:
		return &Uint{&numeric{kind: numUnsigned, width: 2}}, nil
	case FormatU4:
		return &Uint{&numeric{kind: numUnsigned, width: 4}}, nil
	case FormatU8:
		return &Uint{&numeric{kind: numUnsigned, width: 8}}, nil
	case FormatF4:
		return &Float{&numeric{kind: numFloat, width: 4}}, nil
	case FormatF8:
		return &Float{&numeric{kind: numFloat, width: 8}}, nil
	default:
		return nil, errFormatNotAllowed(f)
	}
}

// preferredNativeTypes lists, for each format code, the Go native types
// that type-match to it in the first pass of Dynamic.Set's matching
// algorithm.
var preferredNativeTypes = map[FormatCode][]string{
	FormatBoolean: {"bool"},
	FormatASCII:   {"string"},
	FormatJIS8:    {"string"},
	FormatBinary:  {"[]uint8"},
	FormatI1:      {"int"}, FormatI2: {"int"}, FormatI4: {"int"}, FormatI8: {"int64"},
	FormatU1: {"uint"}, FormatU2: {"uint"}, FormatU4: {"uint"}, FormatU8: {"uint64"},
	FormatF4: {"float32"}, FormatF8: {"float64"},
}

func goTypeName(value interface{}) string {
	return fmt.Sprintf("%T", value)
}

// allFormats lists every concrete format code, in the order type matching
// should try them.
var allFormats = []FormatCode{
	FormatBoolean, FormatASCII, FormatJIS8, FormatBinary,
	FormatI1, FormatI2, FormatI4, FormatI8,
	FormatU1, FormatU2, FormatU4, FormatU8,
	FormatF4, FormatF8, FormatList,
}

// Set resolves the Dynamic to a concrete variant and assigns value into it,
// via a two-pass type-matching algorithm: preferred native types first,
// then any allowed format.
func (v *Dynamic) Set(value interface{}) error {
	if inner, ok := value.(Variable); ok {
		f := ResolvedFormatCode(inner)
		if !v.allows(f) {
			return errFormatNotAllowed(f)
		}
		v.inner = inner.Clone()
		return nil
	}

	typeName := goTypeName(value)

	// Pass 1: formats whose preferred native types include value's Go type.
	for _, f := range allFormats {
		if !v.allows(f) {
			continue
		}
		prefs := preferredNativeTypes[f]
		matched := false
		for _, p := range prefs {
			if p == typeName {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if tmpl, err := v.tryAssign(f, value); err == nil {
			v.inner = tmpl
			return nil
		}
	}

	// Pass 2: try every allowed format regardless of preference.
	for _, f := range allFormats {
		if !v.allows(f) {
			continue
		}
		if tmpl, err := v.tryAssign(f, value); err == nil {
			v.inner = tmpl
			return nil
		}
	}

	return errValueNotSupported(value)
}

func (v *Dynamic) tryAssign(f FormatCode, value interface{}) (Variable, error) {
	tmpl, err := v.newTemplateFor(f)
	if err != nil {
		return nil, err
	}
	switch t := tmpl.(type) {
	case *Int:
		iv, err := coerceInt64(value)
		if err != nil {
			return nil, err
		}
		if err := t.Set([]int64{iv}); err != nil {
			return nil, err
		}
	case *Uint:
		uv, err := coerceUint64(value)
		if err != nil {
			return nil, err
		}
		if err := t.Set([]uint64{uv}); err != nil {
			return nil, err
		}
	case *Float:
		fv, err := coerceFloat64(value)
		if err != nil {
			return nil, err
		}
		if err := t.Set([]float64{fv}); err != nil {
			return nil, err
		}
	case *Boolean:
		if err := t.Set([]interface{}{value}); err != nil {
			return nil, err
		}
	case *Text:
		if err := t.Set(value); err != nil {
			return nil, err
		}
	case *Binary:
		if err := t.Set(value); err != nil {
			return nil, err
		}
	case *Array:
		items, ok := value.([]interface{})
		if !ok {
			return nil, errTypeMismatch("expected []interface{} for array value")
		}
		if err := t.Set(items); err != nil {
			return nil, err
		}
	default:
		return nil, errTypeMismatch("unsupported dynamic resolution")
	}
	return tmpl, nil
}

func (v *Dynamic) Encode() ([]byte, error) {
	if v.inner == nil {
		return nil, errValueNotSupported(nil)
	}
	// A Dynamic never encodes itself; it always delegates to its resolved
	// inner variant.
	return v.inner.Encode()
}

// Decode reads the wire format code, instantiates the matching allowed
// variant, and delegates decoding to it.
func (v *Dynamic) Decode(data []byte) (int, error) {
	format, _, _, err := decodeHeader(data)
	if err != nil {
		return 0, err
	}
	if !v.allows(format) {
		return 0, errFormatNotAllowed(format)
	}
	tmpl, err := v.newTemplateFor(format)
	if err != nil {
		return 0, errFormatNotAllowed(format)
	}
	n, err := tmpl.Decode(data)
	if err != nil {
		return 0, err
	}
	v.inner = tmpl
	return n, nil
}

func (v *Dynamic) Clone() Variable {
	dup := &Dynamic{allowed: v.allowed, count: v.count}
	if v.inner != nil {
		dup.inner = v.inner.Clone()
	}
	return dup
}

func (v *Dynamic) String() string {
	if v.inner == nil {
		var names []string
		v.allowed.Do(func(i interface{}) { names = append(names, i.(FormatCode).String()) })
		return fmt.Sprintf("<DYNAMIC unresolved, allowed={%s}>", strings.Join(names, ","))
	}
	return v.inner.String()
}
