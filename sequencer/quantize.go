package sequencer

// ScaleType identifies a quantization scale, or none.
type ScaleType int

const (
	ScaleUnquantized ScaleType = iota
	ScaleChromatic
	ScaleMajor
	ScaleMinor
	ScalePentatonic
	ScaleDorian
	ScalePhrygian
	ScaleLydian
	ScaleMixolydian
	ScaleHarmonicMinor
	ScaleBlues
	ScaleWholeTone
	ScaleCount
)

// Scale definitions - ascending intervals from root within one octave (semitones)
var scaleIntervals = map[ScaleType][]int{
	ScaleChromatic:     {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	ScaleMajor:         {0, 2, 4, 5, 7, 9, 11},
	ScaleMinor:         {0, 2, 3, 5, 7, 8, 10},
	ScalePentatonic:    {0, 2, 4, 7, 9},
	ScaleDorian:        {0, 2, 3, 5, 7, 9, 10},
	ScalePhrygian:      {0, 1, 3, 5, 7, 8, 10},
	ScaleLydian:        {0, 2, 4, 6, 7, 9, 11},
	ScaleMixolydian:    {0, 2, 4, 5, 7, 9, 10},
	ScaleHarmonicMinor: {0, 2, 3, 5, 7, 8, 11},
	ScaleBlues:         {0, 3, 5, 6, 7, 10},
	ScaleWholeTone:     {0, 2, 4, 6, 8, 10},
}

var scaleNames = []string{
	"Off", "Chromatic", "Major", "Minor", "Pentatonic",
	"Dorian", "Phrygian", "Lydian", "Mixolydian",
	"Harm Min", "Blues", "Whole Tone",
}

func (s ScaleType) String() string {
	if s < 0 || int(s) >= len(scaleNames) {
		return "?"
	}
	return scaleNames[s]
}

// Quantize maps a raw semitone pitch to the nearest pitch class of the
// scale, octave aware. ScaleUnquantized passes pitch through unchanged.
//
// The note is normalized into [0,12) and compared against every table
// interval, then against the first interval shifted up an octave and the
// last shifted down one, so notes near the octave seam resolve to the
// closer neighbor. Ties keep the earlier candidate: same-octave table
// order first, then the upper wrap, then the lower wrap.
func Quantize(pitch int, scale ScaleType) int {
	intervals := scaleIntervals[scale]
	if len(intervals) == 0 {
		return pitch
	}

	octave := pitch / 12
	note := pitch % 12
	if note < 0 {
		note += 12
		octave--
	}

	best := intervals[0]
	bestDiff := absInt(note - best)
	for _, iv := range intervals[1:] {
		if d := absInt(note - iv); d < bestDiff {
			best, bestDiff = iv, d
		}
	}
	result := octave*12 + best

	if d := absInt(note - (intervals[0] + 12)); d < bestDiff {
		bestDiff = d
		result = (octave+1)*12 + intervals[0]
	}
	last := intervals[len(intervals)-1]
	if d := absInt(note - (last - 12)); d < bestDiff {
		result = (octave-1)*12 + last
	}

	return result
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
