// Package depth implements DepthPolicy: the pure function that combines
// the jitter estimators, starve history, and static/dynamic mode into
// the single desiredFrames number, applied identically whether it is
// called from the parse path (growth on starve) or the per-second tick
// (shrink and routine refresh).
package depth

// Padding is added to the candidate estimator when growing desiredFrames
// in response to too-many-starves, so the new depth has a little slack
// above the estimate rather than exactly matching it.
const Padding = 1

// Params carries everything Compute needs to decide the next
// desiredFrames, gathered fresh by the caller on each invocation.
type Params struct {
	DynamicJitterBuffers bool
	StaticDesiredFrames  int

	// Candidate is the selected estimator output (F or P, per
	// Settings.UseStdDev), already expressed in frames.
	Candidate int

	// TooManyStarves reports whether the too-many-starves window is
	// currently active.
	TooManyStarves bool

	// ShrinkTo is the reduction-window estimate, in frames, used only
	// when TooManyStarves is false. Pass -1 if no shrink candidate is
	// available yet (e.g. the reduction window has no samples).
	ShrinkTo int

	CurrentDesiredFrames int
	FrameCapacity        int
	MaxFramesOverDesired int
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Compute returns the new desiredFrames for the given Params, following
// the DepthPolicy rule order: static pin, then too-many-starves growth,
// then (only otherwise) reduction-window shrink, then a final clamp to
// [0, frameCapacity - maxFramesOverDesired].
func Compute(p Params) int {
	hi := p.FrameCapacity - p.MaxFramesOverDesired
	if hi < 0 {
		hi = 0
	}

	if !p.DynamicJitterBuffers {
		return clamp(p.StaticDesiredFrames, 0, hi)
	}

	desired := p.CurrentDesiredFrames

	if p.TooManyStarves {
		grown := p.Candidate + Padding
		if grown > desired {
			desired = grown
		}
	} else if p.ShrinkTo >= 0 && p.ShrinkTo < desired {
		desired = p.ShrinkTo
	}

	return clamp(desired, 0, hi)
}
