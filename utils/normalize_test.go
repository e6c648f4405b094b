package utils

import "testing"

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Amélie", "amelie"},
		{"amelie ", "amelie"},
		{"The Lord of the Rings: The Return of the King", "the lord of the rings the return of the king"},
		{"Spider-Man", "spider man"},
		{"  Two   Spaces ", "two spaces"},
		{"snake_case_title", "snake case title"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTitleIdentity(t *testing.T) {
	pairs := [][2]string{
		{"Amélie", "AMELIE"},
		{"Les Misérables", "les miserables"},
		{"Birdman (Or The Unexpected Virtue of Ignorance)", "Birdman or the Unexpected Virtue of Ignorance"},
	}
	for _, p := range pairs {
		if NormalizeTitle(p[0]) != NormalizeTitle(p[1]) {
			t.Errorf("expected %q and %q to share an identity (%q vs %q)",
				p[0], p[1], NormalizeTitle(p[0]), NormalizeTitle(p[1]))
		}
	}

	if NormalizeTitle("Dune") == NormalizeTitle("Dune Part Two") {
		t.Error("distinct titles must not collapse to one identity")
	}
}
