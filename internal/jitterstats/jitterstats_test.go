package jitterstats

import "testing"

func TestMaxGapTracksLargestSampleInWindow(t *testing.T) {
	s := New(10)
	s.RecordGap(20)
	s.RecordGap(45)
	s.RecordGap(22)
	if got := s.MaxGap(1); got != 45 {
		t.Errorf("MaxGap(1) = %v, want 45", got)
	}
}

func TestTickRollsOldestBucketOutOfWindow(t *testing.T) {
	s := New(10)
	s.RecordGap(1000) // huge outlier in second 0
	s.Tick()
	s.RecordGap(20)
	s.Tick()
	s.RecordGap(21)
	// A 2-second window should no longer see the second-0 outlier.
	if got := s.MaxGap(2); got >= 1000 {
		t.Errorf("MaxGap(2) = %v, should have rolled the outlier bucket out", got)
	}
}

func TestWindowGrowsBeyondConstructedCapacity(t *testing.T) {
	s := New(2) // constructed small, e.g. for a short-window use case
	s.RecordGap(999)
	s.Tick()
	s.RecordGap(10)
	// A 50-second window is wider than the ring was built for; it must
	// grow to cover it and still see the outlier rather than silently
	// capping at the constructed capacity.
	if got := s.MaxGap(50); got != 999 {
		t.Errorf("MaxGap(50) = %v, want 999 (window should grow to see it, not cap at capacity)", got)
	}
}

func TestEmptyStatsReturnZero(t *testing.T) {
	s := New(10)
	if s.MaxGap(5) != 0 {
		t.Error("MaxGap on empty Stats should be 0")
	}
	if s.StdDev(5) != 0 {
		t.Error("StdDev on empty Stats should be 0")
	}
	if s.SampleCount(5) != 0 {
		t.Error("SampleCount on empty Stats should be 0")
	}
}

func TestResetClearsHistory(t *testing.T) {
	s := New(30)
	s.RecordGap(500)
	s.Reset()
	if s.MaxGap(30) != 0 {
		t.Error("Reset should clear all buckets")
	}
}

func TestMinGapTracksSmallestSampleInWindow(t *testing.T) {
	s := New(10)
	s.RecordGap(20)
	s.RecordGap(5)
	s.RecordGap(22)
	if got := s.MinGap(1); got != 5 {
		t.Errorf("MinGap(1) = %v, want 5", got)
	}
}

func TestStdDevOfConstantGapsIsZero(t *testing.T) {
	s := New(10)
	for i := 0; i < 5; i++ {
		s.RecordGap(20)
	}
	if got := s.StdDev(1); got != 0 {
		t.Errorf("StdDev of a constant series = %v, want 0", got)
	}
}

func TestStdDevGrowsWithVariance(t *testing.T) {
	s := New(10)
	for i := 0; i < 5; i++ {
		s.RecordGap(20)
	}
	steady := s.StdDev(1)

	s2 := New(10)
	s2.RecordGap(5)
	s2.RecordGap(35)
	s2.RecordGap(5)
	s2.RecordGap(35)
	bursty := s2.StdDev(1)

	if bursty <= steady {
		t.Errorf("bursty StdDev (%v) should exceed steady StdDev (%v)", bursty, steady)
	}
}

func TestSampleCountAccumulatesAcrossBuckets(t *testing.T) {
	s := New(10)
	s.RecordGap(10)
	s.RecordGap(10)
	s.Tick()
	s.RecordGap(10)
	if got := s.SampleCount(2); got != 3 {
		t.Errorf("SampleCount(2) = %d, want 3", got)
	}
}
