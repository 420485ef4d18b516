package session

import (
	"encoding/json"
	"math"

	"github.com/kozaktomas/face-attendance/internal/identity"
)

// Kind is the coarse recognition state shown to the operator.
type Kind int

const (
	NoFace Kind = iota
	NotAligned
	UnknownFace
	Recognized
)

var kindNames = [...]string{
	NoFace:      "NO_FACE",
	NotAligned:  "NOT_ALIGNED",
	UnknownFace: "UNKNOWN_FACE",
	Recognized:  "RECOGNIZED",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "INVALID"
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// State is the result of the latest processed frame. Identity is set only
// when Kind is Recognized.
type State struct {
	Kind     Kind
	Identity *identity.Identity
	// Distance to the nearest gallery entry, +Inf when nothing was compared.
	Distance float64
}

// Current returns the recognized identity, if any.
func (s State) Current() (identity.Identity, bool) {
	if s.Kind != Recognized || s.Identity == nil {
		return identity.Identity{}, false
	}
	return *s.Identity, true
}

type stateJSON struct {
	State    Kind               `json:"state"`
	Identity *identity.Identity `json:"identity,omitempty"`
	Distance *float64           `json:"distance,omitempty"`
}

// MarshalJSON omits non-finite distances, which JSON cannot represent.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{State: s.Kind, Identity: s.Identity}
	if !math.IsInf(s.Distance, 0) && !math.IsNaN(s.Distance) && s.Kind >= UnknownFace {
		d := s.Distance
		out.Distance = &d
	}
	return json.Marshal(out)
}
