package sequencer

import (
	"math"
	"math/rand"
)

// ModKind identifies the transformation applied when deriving a child
// branch from its parent sequence.
type ModKind int

const (
	ModNone ModKind = iota
	ModTranspose
	ModInvert
	ModReverse
	ModMutate
	ModCount
)

var modNames = []string{"None", "Transpose", "Invert", "Reverse", "Mutate"}

func (m ModKind) String() string {
	if m < 0 || int(m) >= len(modNames) {
		return "?"
	}
	return modNames[m]
}

// Every transform clones before touching anything; the source sequence is
// never mutated.

// Transpose shifts every active step's pitch by n semitones, gated or not.
func Transpose(seq *Sequence, n int) *Sequence {
	out := seq.Clone()
	active := out.ActiveSteps()
	for i := range active {
		active[i].Pitch += n
	}
	return out
}

// Invert mirrors active pitches around the midpoint of their range:
// pitch -> max - (pitch - min). No-op on an empty active range.
func Invert(seq *Sequence) *Sequence {
	out := seq.Clone()
	active := out.ActiveSteps()
	if len(active) == 0 {
		return out
	}
	lo, hi := active[0].Pitch, active[0].Pitch
	for _, st := range active[1:] {
		if st.Pitch < lo {
			lo = st.Pitch
		}
		if st.Pitch > hi {
			hi = st.Pitch
		}
	}
	for i := range active {
		active[i].Pitch = hi - (active[i].Pitch - lo)
	}
	return out
}

// Reverse flips the order of the active prefix. The inert tail keeps its
// original slots.
func Reverse(seq *Sequence) *Sequence {
	out := seq.Clone()
	active := out.ActiveSteps()
	for i, j := 0, len(active)-1; i < j; i, j = i+1, j-1 {
		active[i], active[j] = active[j], active[i]
	}
	return out
}

// Mutate adds a uniform random offset in [-amount, +amount] semitones to
// each gated step's pitch. Ungated steps are untouched. A fractional
// amount rounds to the nearest whole bound, so amounts below 0.5 leave
// the sequence unchanged.
func Mutate(seq *Sequence, amount float64, rng *rand.Rand) *Sequence {
	out := seq.Clone()
	bound := int(math.Round(amount))
	if bound <= 0 {
		return out
	}
	active := out.ActiveSteps()
	for i := range active {
		if !active[i].GateOn {
			continue
		}
		active[i].Pitch += rng.Intn(2*bound+1) - bound
	}
	return out
}
