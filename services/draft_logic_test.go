package services

import "testing"

func TestSeatForPick(t *testing.T) {
	cases := []struct {
		pick, seats, want int
	}{
		{1, 4, 1},
		{2, 4, 2},
		{4, 4, 4},
		{5, 4, 1},
		{8, 4, 4},
		{9, 4, 1},
		{1, 1, 1},
		{7, 1, 1},
		{3, 2, 1},
	}
	for _, tc := range cases {
		if got := seatForPick(tc.pick, tc.seats); got != tc.want {
			t.Errorf("seatForPick(%d, %d) = %d, want %d", tc.pick, tc.seats, got, tc.want)
		}
	}
}

func TestSeatRotationCoversAllSeats(t *testing.T) {
	// Over one full round every seat picks exactly once.
	const seats = 5
	seen := map[int]int{}
	for pick := 1; pick <= seats; pick++ {
		seen[seatForPick(pick, seats)]++
	}
	for seat := 1; seat <= seats; seat++ {
		if seen[seat] != 1 {
			t.Fatalf("seat %d picked %d times in the first round", seat, seen[seat])
		}
	}
}

func TestDraftIsComplete(t *testing.T) {
	// 4 seats, roster of 5: 20 picks total, done when the pointer hits 21.
	if draftIsComplete(20, 4, 5) {
		t.Error("draft must not complete before the last pick")
	}
	if !draftIsComplete(21, 4, 5) {
		t.Error("draft must complete after the last pick")
	}
	if !draftIsComplete(2, 1, 1) {
		t.Error("one seat and roster of one completes after a single pick")
	}
}
