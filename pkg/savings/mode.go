package savings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/solar-estimator/pkg/assumptions"
)

// ErrUnknownMode is returned by ParseMode for names outside the preset list.
var ErrUnknownMode = errors.New("unknown savings mode")

// Mode selects a self-consumption preset.
type Mode int

const (
	// ModeConservative uses the literature range for households without storage.
	ModeConservative Mode = iota
	// ModeProfile is a fixed placeholder preset with a higher range. It does not
	// simulate an hourly load profile.
	ModeProfile
	// ModeNetBilling uses the conservative range and is the only mode in which
	// an explicit export credit rate is counted.
	ModeNetBilling
)

var modeNames = map[Mode]string{
	ModeConservative: "conservative",
	ModeProfile:      "profile",
	ModeNetBilling:   "net-billing",
}

// Modes lists every preset in display order.
func Modes() []Mode {
	return []Mode{ModeConservative, ModeProfile, ModeNetBilling}
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a mode name to its preset. The empty string selects
// ModeConservative.
func ParseMode(name string) (Mode, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return ModeConservative, nil
	}
	for m, n := range modeNames {
		if n == trimmed {
			return m, nil
		}
	}
	return ModeConservative, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Bounds returns the (low, high) self-consumption fractions for the preset.
func (m Mode) Bounds(sc assumptions.SelfConsumption) (low, high float64) {
	switch m {
	case ModeProfile:
		return sc.ProfileLow, sc.ProfileHigh
	default:
		return sc.ConservativeLow, sc.ConservativeHigh
	}
}
