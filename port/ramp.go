package port

// ramp semantics (spec §4.6): linear curve from 1->0 (DOWN variants) or
// 0->1 (UP) over RampTotal samples. StartRamp arms a source; Advance
// steps it by nsamples and reports whether it just completed.

// StartRamp arms s with the given state over the given number of
// samples (spec §4.3 default: one period).
func (s *Source) StartRamp(state RampState, samples uint32) {
	s.Ramp = state
	s.RampTotal = samples
	s.RampRemain = samples
	if state == RampUp {
		s.RampCurrent = 0
	} else {
		s.RampCurrent = 1
	}
}

// Advance steps the ramp by n samples (the full multiplexer advances
// once per period using nsamples = period size), sets RampCurrent to
// the curve value at the END of the chunk, and returns whether the ramp
// completed during this call. Sample-accurate curves are computed by
// Multiplexer via ValueAt.
func (s *Source) Advance(n uint32) (completed bool) {
	if s.Ramp == RampNone || s.RampTotal == 0 {
		return false
	}
	if n >= s.RampRemain {
		s.RampRemain = 0
	} else {
		s.RampRemain -= n
	}

	switch s.Ramp {
	case RampUp:
		s.RampCurrent = 1 - float32(s.RampRemain)/float32(s.RampTotal)
	case RampDown, RampDownDelete, RampDownDrain, RampDownDisable:
		s.RampCurrent = float32(s.RampRemain) / float32(s.RampTotal)
	}

	if s.RampRemain == 0 {
		if s.Ramp == RampUp {
			s.Ramp = RampNone
		}
		// DOWN/DOWN_DEL/DOWN_DRAIN/DOWN_DISABLE stay latched at their
		// current state until the connector's ReleaseCompletedRamps acts
		// on the finished ramp (removing the entry or flipping Disabled);
		// it reads RampRemain==0 together with the still-set Ramp value
		// to tell which action applies.
		return true
	}
	return false
}

// ValueAt returns the gain curve value at sample offset i (0-based)
// within a chunk of n samples that is being ramped, used by the
// multiplexer to compute a sample-accurate monotone curve instead of a
// single per-period step (spec §8 property 5: "monotonically non-
// increasing... non-decreasing").
func (s *Source) ValueAt(i, n uint32) float32 {
	if s.Ramp == RampNone || s.RampTotal == 0 {
		return 1
	}
	consumed := s.RampTotal - s.RampRemain
	pos := consumed + i
	if pos > s.RampTotal {
		pos = s.RampTotal
	}
	frac := float32(pos) / float32(s.RampTotal)
	switch s.Ramp {
	case RampUp:
		return frac
	default: // all DOWN variants
		return 1 - frac
	}
}
