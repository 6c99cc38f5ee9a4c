package isolation

import (
	"errors"
	"fmt"
)

// Mode is the browser-hosted sandbox primitive for embedded-source
// execution, ordered weakest to strongest.
type Mode int

const (
	ModeNone Mode = iota
	ModeWorker
	ModeIframe
	ModeRealm
)

var modeNames = map[Mode]string{
	ModeNone:   "none",
	ModeWorker: "worker",
	ModeIframe: "iframe",
	ModeRealm:  "realm",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	return ModeNone, fmt.Errorf("unknown sandbox mode %q", s)
}

// ErrSandboxRefused is returned when the requested mode cannot be honored
// and the deployment is configured to fail closed.
var ErrSandboxRefused = errors.New("requested sandbox mode unavailable, refusing to downgrade")

// NegotiateMode resolves the requested sandbox mode against the modes the
// host supports. With failClosed set, an unsupported request refuses
// execution instead of silently downgrading; otherwise the strongest
// supported mode at or below the request is chosen. The returned bool
// reports whether a downgrade happened.
func NegotiateMode(requested Mode, supported []Mode, failClosed bool) (Mode, bool, error) {
	supportedSet := make(map[Mode]struct{}, len(supported))
	for _, m := range supported {
		supportedSet[m] = struct{}{}
	}

	if _, ok := supportedSet[requested]; ok {
		return requested, false, nil
	}
	if failClosed {
		return ModeNone, false, fmt.Errorf("%w: requested %s", ErrSandboxRefused, requested)
	}

	for m := requested - 1; m >= ModeNone; m-- {
		if _, ok := supportedSet[m]; ok {
			return m, true, nil
		}
	}
	// ModeNone is always available as the floor.
	return ModeNone, requested != ModeNone, nil
}
