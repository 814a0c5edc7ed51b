package models

import (
	"fmt"
	"strings"
)

// Signal is the action emitted by a spread estimator for one tick.
type Signal uint8

const (
	Hold Signal = iota
	EnterLong
	EnterShort
	Exit
)

var signalNames = [...]string{
	Hold:       "hold",
	EnterLong:  "enter_long",
	EnterShort: "enter_short",
	Exit:       "exit",
}

func (s Signal) String() string {
	if int(s) < len(signalNames) {
		return signalNames[s]
	}
	return fmt.Sprintf("signal(%d)", uint8(s))
}

// IsEntry reports whether the signal opens a position.
func (s Signal) IsEntry() bool { return s == EnterLong || s == EnterShort }

func (s Signal) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Signal) UnmarshalText(b []byte) error {
	v, err := ParseSignal(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSignal converts the wire name of a signal back to its value.
func ParseSignal(s string) (Signal, error) {
	for i, name := range signalNames {
		if strings.EqualFold(s, name) {
			return Signal(i), nil
		}
	}
	return Hold, fmt.Errorf("unknown signal %q", s)
}

// Position is the spread position held for a pair.
// LongSpread is long leg A and short hedge-ratio units of leg B; ShortSpread is the reverse.
type Position uint8

const (
	Flat Position = iota
	LongSpread
	ShortSpread
)

var positionNames = [...]string{
	Flat:        "flat",
	LongSpread:  "long_spread",
	ShortSpread: "short_spread",
}

func (p Position) String() string {
	if int(p) < len(positionNames) {
		return positionNames[p]
	}
	return fmt.Sprintf("position(%d)", uint8(p))
}

func (p Position) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Position) UnmarshalText(b []byte) error {
	v, err := ParsePosition(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePosition converts the wire name of a position back to its value.
func ParsePosition(s string) (Position, error) {
	for i, name := range positionNames {
		if strings.EqualFold(s, name) {
			return Position(i), nil
		}
	}
	return Flat, fmt.Errorf("unknown position %q", s)
}
