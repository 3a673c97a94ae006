package secsvar

import "github.com/wolimst/gosecs/internal/secserr"

func errEncodingRange(length int) error {
	return secserr.New(secserr.KindEncodingRange, "payload length %d exceeds %d-byte ceiling", length, MaxByteSize)
}

func errTruncated(what string) error {
	return secserr.New(secserr.KindFormatMismatch, "truncated while decoding %s", what)
}

func errFormatMismatch(want, got FormatCode) error {
	return secserr.New(secserr.KindFormatMismatch, "expected format %s, got %s", want, got)
}

func errValueOutOfRange(format FormatCode, v interface{}) error {
	return secserr.New(secserr.KindValueOutOfRange, "value %v out of range for %s", v, format)
}

func errValueCount(limit, got int) error {
	return secserr.New(secserr.KindValueCount, "value count %d exceeds limit %d", got, limit)
}

func errTypeMismatch(format string) error {
	return secserr.New(secserr.KindTypeMismatch, "value not assignment-compatible with %s", format)
}

func errEncodingError(charset string, cause error) error {
	return secserr.Wrap(secserr.KindEncodingError, cause, "failed to encode text as %s", charset)
}

func errFormatNotAllowed(format FormatCode) error {
	return secserr.New(secserr.KindFormatNotAllowed, "format %s not in Dynamic's allowed set", format)
}

func errValueNotSupported(v interface{}) error {
	return secserr.New(secserr.KindValueNotSupported, "no allowed variant accepts value %#v", v)
}
