package system

import (
	"errors"
	"fmt"
	"strings"
)

// Phase selects which per-frame hook drives a system. Update and draw
// systems are ordered independently.
type Phase int

const (
	PhaseUpdate Phase = iota // driven by Update(frameTime)
	PhaseDraw                // driven by Draw(frameTime)
)

var ErrInvalidPhase = errors.New("invalid system phase")

func (p Phase) Valid() bool {
	return p == PhaseUpdate || p == PhaseDraw
}

func (p Phase) String() string {
	switch p {
	case PhaseUpdate:
		return "update"
	case PhaseDraw:
		return "draw"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// ParsePhase accepts the manifest spelling of a phase. An empty string
// means update.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "update":
		return PhaseUpdate, nil
	case "draw":
		return PhaseDraw, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
}
