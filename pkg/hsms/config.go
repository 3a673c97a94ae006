package hsms

import (
	"time"

	"github.com/wolimst/gosecs/internal/secserr"
)

// Timing range bounds, per SEMI E37. Valid fills in the default for any
// unspecified (zero) field and range-checks the explicitly set fields that
// have bounds here.
const (
	T3Min, T3Max = 1 * time.Second, 120 * time.Second
	T5Min, T5Max = 1 * time.Second, 240 * time.Second
	T6Min, T6Max = 1 * time.Second, 240 * time.Second

	LinktestPeriodMin, LinktestPeriodMax = 1 * time.Second, 3600 * time.Second
	SendBlockSizeMin, SendBlockSizeMax   = 1 << 10, 1 << 24
)

// Config holds the tunable timing and sizing parameters of an HSMS
// connection/session pair. The zero Config is invalid until Valid() has
// filled in defaults.
type Config struct {
	// T3 bounds how long a sender waits for a reply to a primary message.
	T3 time.Duration
	// T5 is the minimum delay between successive active connect attempts.
	T5 time.Duration
	// T6 bounds how long a sender waits for a reply to a control message.
	T6 time.Duration

	// LinktestPeriod is the interval at which the active side sends a
	// Linktest.req while selected.
	LinktestPeriod time.Duration
	// EstablishCommTimeout is how long GEM communication-state stays in
	// WAIT_DELAY after an unanswered S1F13 before sending S1F13 again.
	EstablishCommTimeout time.Duration

	// SendBlockSize is the maximum chunk size used when writing a packet to
	// the wire.
	SendBlockSize int

	// SelectPoll is a poll interval that Valid defaults; the connection and
	// session code do not read it.
	SelectPoll time.Duration
}

// Valid fills unset (zero) fields with their default and range-checks the
// T3, T5, T6, LinktestPeriod and SendBlockSize fields the caller did set,
// returning a secserr.Error(KindValueOutOfRange) on the first violation.
// EstablishCommTimeout and SelectPoll are defaulted but not range-checked.
func (c *Config) Valid() error {
	if c == nil {
		return secserr.New(secserr.KindValueOutOfRange, "hsms: nil config")
	}

	if c.T3 == 0 {
		c.T3 = 45 * time.Second
	} else if c.T3 < T3Min || c.T3 > T3Max {
		return secserr.New(secserr.KindValueOutOfRange, "hsms: T3 %s not in [%s, %s]", c.T3, T3Min, T3Max)
	}

	if c.T5 == 0 {
		c.T5 = 10 * time.Second
	} else if c.T5 < T5Min || c.T5 > T5Max {
		return secserr.New(secserr.KindValueOutOfRange, "hsms: T5 %s not in [%s, %s]", c.T5, T5Min, T5Max)
	}

	if c.T6 == 0 {
		c.T6 = 5 * time.Second
	} else if c.T6 < T6Min || c.T6 > T6Max {
		return secserr.New(secserr.KindValueOutOfRange, "hsms: T6 %s not in [%s, %s]", c.T6, T6Min, T6Max)
	}

	if c.LinktestPeriod == 0 {
		c.LinktestPeriod = 30 * time.Second
	} else if c.LinktestPeriod < LinktestPeriodMin || c.LinktestPeriod > LinktestPeriodMax {
		return secserr.New(secserr.KindValueOutOfRange, "hsms: LinktestPeriod %s not in [%s, %s]", c.LinktestPeriod, LinktestPeriodMin, LinktestPeriodMax)
	}

	if c.EstablishCommTimeout == 0 {
		c.EstablishCommTimeout = 10 * time.Second
	}

	if c.SendBlockSize == 0 {
		c.SendBlockSize = 1 << 20
	} else if c.SendBlockSize < SendBlockSizeMin || c.SendBlockSize > SendBlockSizeMax {
		return secserr.New(secserr.KindValueOutOfRange, "hsms: SendBlockSize %d not in [%d, %d]", c.SendBlockSize, SendBlockSizeMin, SendBlockSizeMax)
	}

	if c.SelectPoll == 0 {
		c.SelectPoll = 500 * time.Millisecond
	}

	return nil
}

// DefaultConfig returns a Config with every field at its standard default.
func DefaultConfig() Config {
	c := Config{}
	_ = c.Valid()
	return c
}
