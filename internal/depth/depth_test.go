package depth

import "testing"

func TestStaticModePinsToStaticValueRegardlessOfCandidate(t *testing.T) {
	got := Compute(Params{
		DynamicJitterBuffers: false,
		StaticDesiredFrames:  1,
		Candidate:            50,
		TooManyStarves:       true,
		FrameCapacity:        100,
		MaxFramesOverDesired: 10,
	})
	if got != 1 {
		t.Errorf("got %d, want 1 (pinned to static)", got)
	}
}

func TestTooManyStarvesGrowsToCandidatePlusPadding(t *testing.T) {
	got := Compute(Params{
		DynamicJitterBuffers: true,
		TooManyStarves:       true,
		Candidate:            5,
		CurrentDesiredFrames: 1,
		ShrinkTo:             -1,
		FrameCapacity:        100,
		MaxFramesOverDesired: 10,
	})
	if got != 6 {
		t.Errorf("got %d, want 6 (5 + padding 1)", got)
	}
}

func TestTooManyStarvesNeverShrinksBelowCurrentDesired(t *testing.T) {
	got := Compute(Params{
		DynamicJitterBuffers: true,
		TooManyStarves:       true,
		Candidate:            2,
		CurrentDesiredFrames: 10,
		ShrinkTo:             -1,
		FrameCapacity:        100,
		MaxFramesOverDesired: 10,
	})
	if got != 10 {
		t.Errorf("got %d, want 10 (growth rule is a max, not a set)", got)
	}
}

func TestShrinkAppliesOnlyWhenNotTooManyStarves(t *testing.T) {
	got := Compute(Params{
		DynamicJitterBuffers: true,
		TooManyStarves:       false,
		CurrentDesiredFrames: 10,
		ShrinkTo:             3,
		FrameCapacity:        100,
		MaxFramesOverDesired: 10,
	})
	if got != 3 {
		t.Errorf("got %d, want 3 (shrink candidate)", got)
	}
}

func TestShrinkNeverRaisesDesired(t *testing.T) {
	got := Compute(Params{
		DynamicJitterBuffers: true,
		TooManyStarves:       false,
		CurrentDesiredFrames: 3,
		ShrinkTo:             10,
		FrameCapacity:        100,
		MaxFramesOverDesired: 10,
	})
	if got != 3 {
		t.Errorf("got %d, want 3 (shrink only applies if it's smaller)", got)
	}
}

func TestNoShrinkCandidateLeavesDesiredUnchanged(t *testing.T) {
	got := Compute(Params{
		DynamicJitterBuffers: true,
		TooManyStarves:       false,
		CurrentDesiredFrames: 4,
		ShrinkTo:             -1,
		FrameCapacity:        100,
		MaxFramesOverDesired: 10,
	})
	if got != 4 {
		t.Errorf("got %d, want 4 (no shrink candidate available)", got)
	}
}

func TestAlwaysClampedToCapacityMinusOverDesired(t *testing.T) {
	got := Compute(Params{
		DynamicJitterBuffers: true,
		TooManyStarves:       true,
		Candidate:            1000,
		CurrentDesiredFrames: 1,
		ShrinkTo:             -1,
		FrameCapacity:        100,
		MaxFramesOverDesired: 10,
	})
	if got != 90 {
		t.Errorf("got %d, want 90 (clamped to frameCapacity - maxFramesOverDesired)", got)
	}
}

func TestClampNeverGoesNegative(t *testing.T) {
	got := Compute(Params{
		DynamicJitterBuffers: false,
		StaticDesiredFrames:  -5,
		FrameCapacity:        10,
		MaxFramesOverDesired: 20,
	})
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}
