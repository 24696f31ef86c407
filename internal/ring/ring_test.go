package ring

import "testing"

func TestNewRejectsInvalidGeometry(t *testing.T) {
	if _, err := New(0, 10); err != ErrInvalidGeometry {
		t.Errorf("frameSampleCount=0: got %v, want ErrInvalidGeometry", err)
	}
	if _, err := New(10, 0); err != ErrInvalidGeometry {
		t.Errorf("frameCapacity=0: got %v, want ErrInvalidGeometry", err)
	}
}

func TestWriteAndPopRoundTrip(t *testing.T) {
	b, err := New(4, 10)
	if err != nil {
		t.Fatal(err)
	}
	b.WriteSamples([]int16{1, 2, 3, 4})
	if got := b.FramesAvailable(); got != 1 {
		t.Fatalf("FramesAvailable = %d, want 1", got)
	}
	it, ok := b.PopFrames(1)
	if !ok {
		t.Fatal("PopFrames failed")
	}
	want := []int16{1, 2, 3, 4}
	got := it.Collect()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if !b.LastPopSucceeded() {
		t.Error("LastPopSucceeded should be true")
	}
}

func TestPopMoreThanAvailableFails(t *testing.T) {
	b, _ := New(4, 10)
	b.WriteSamples([]int16{1, 2, 3, 4})
	if _, ok := b.PopFrames(2); ok {
		t.Error("PopFrames(2) should fail with only 1 frame buffered")
	}
	if b.LastPopSucceeded() {
		t.Error("LastPopSucceeded should be false after a failed pop")
	}
}

func TestWriteOverflowAdvancesReadCursor(t *testing.T) {
	b, _ := New(1, 4) // 4 frames of 1 sample each
	b.WriteSamples([]int16{1, 2, 3, 4})
	if b.GetOverflowCount() != 0 {
		t.Fatalf("overflow before exceeding capacity: got %d", b.GetOverflowCount())
	}
	b.WriteSamples([]int16{5}) // now 5 frames written into a 4-frame ring
	if b.GetOverflowCount() != 1 {
		t.Errorf("GetOverflowCount() = %d, want 1", b.GetOverflowCount())
	}
	if got := b.FramesAvailable(); got != 4 {
		t.Errorf("FramesAvailable() = %d, want 4", got)
	}
	it, ok := b.PopFrames(4)
	if !ok {
		t.Fatal("PopFrames(4) failed")
	}
	got := it.Collect()
	want := []int16{2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFramesAvailableInvariantNeverExceedsCapacity(t *testing.T) {
	b, _ := New(2, 5)
	for i := 0; i < 100; i++ {
		b.WriteSamples([]int16{int16(i), int16(i)})
		if avail := b.FramesAvailable(); avail < 0 || avail > 5 {
			t.Fatalf("iteration %d: FramesAvailable() = %d out of [0,5]", i, avail)
		}
	}
}

func TestWriteSilent(t *testing.T) {
	b, _ := New(2, 10)
	b.WriteSilent(4) // 2 frames of silence
	if got := b.FramesAvailable(); got != 2 {
		t.Fatalf("FramesAvailable() = %d, want 2", got)
	}
	it, _ := b.PopFrames(2)
	for _, v := range it.Collect() {
		if v != 0 {
			t.Errorf("expected silent sample, got %d", v)
		}
	}
}

func TestWriteAtBackWritesWithinAddressableRange(t *testing.T) {
	b, _ := New(2, 10)
	b.WriteSilent(2)               // frame 0: loss fill
	b.WriteSamples([]int16{9, 9})  // frame 1
	ok := b.WriteAt(2, []int16{7, 7}) // back-write into frame 0 (2 frames behind write cursor)
	if !ok {
		t.Fatal("WriteAt should succeed within addressable history")
	}
	it, _ := b.PopFrames(1)
	got := it.Collect()
	if got[0] != 7 || got[1] != 7 {
		t.Errorf("frame 0 after back-write = %v, want [7 7]", got)
	}
}

func TestWriteAtFailsOnceAlreadyPopped(t *testing.T) {
	b, _ := New(2, 10)
	b.WriteSamples([]int16{1, 1})
	b.PopFrames(1)
	b.WriteSamples([]int16{2, 2})
	if ok := b.WriteAt(2, []int16{9, 9}); ok {
		t.Error("WriteAt should fail once the target frame has already been popped")
	}
}

func TestDropFramesCapsAtAvailable(t *testing.T) {
	b, _ := New(2, 10)
	b.WriteSamples([]int16{1, 1, 2, 2})
	if got := b.DropFrames(10); got != 2 {
		t.Errorf("DropFrames(10) = %d, want 2 (capped at available)", got)
	}
	if b.FramesAvailable() != 0 {
		t.Errorf("FramesAvailable() after drop = %d, want 0", b.FramesAvailable())
	}
}

func TestClearKeepsOverflowCount(t *testing.T) {
	b, _ := New(1, 2)
	b.WriteSamples([]int16{1, 2, 3}) // one overflow
	if b.GetOverflowCount() == 0 {
		t.Fatal("expected an overflow")
	}
	b.Clear()
	if b.FramesAvailable() != 0 {
		t.Error("Clear should empty the buffer")
	}
	if b.GetOverflowCount() == 0 {
		t.Error("Clear must not reset the overflow counter")
	}
}

func TestFullResetClearsOverflowCount(t *testing.T) {
	b, _ := New(1, 2)
	b.WriteSamples([]int16{1, 2, 3})
	b.FullReset()
	if b.GetOverflowCount() != 0 {
		t.Error("FullReset should zero the overflow counter")
	}
	if b.FramesAvailable() != 0 {
		t.Error("FullReset should empty the buffer")
	}
}

func TestIdempotentReset(t *testing.T) {
	b, _ := New(2, 10)
	b.WriteSamples([]int16{1, 1, 2, 2})
	b.FullReset()
	snap1 := *b
	b.FullReset()
	snap2 := *b
	if snap1.written != snap2.written || snap1.read != snap2.read || snap1.overflowCount != snap2.overflowCount {
		t.Error("two consecutive FullReset calls should leave identical state")
	}
}
