package search

import "testing"

func TestFuzzyMatch(t *testing.T) {
	cases := []struct {
		token     string
		candidate string
		want      bool
		wantDist  int
	}{
		{"lanten", "lantern", true, 1},
		{"lanttern", "lantern", true, 1},
		{"latnern", "lantern", true, 2}, // transposition costs two edits
		{"documnt", "document", true, 1},
		{"documnttn", "document", false, 0},
		{"cafe", "café", true, 0},
		{"CAFÉ", "cafe", true, 0},
		{"same", "same", true, 0},
		{"ab", "ax", false, 0}, // below minimum token length
		{"ab", "ab", true, 0},  // short tokens still match exactly
	}
	for _, tc := range cases {
		ok, dist := FuzzyMatch(tc.token, tc.candidate, MaxEditDistance)
		if ok != tc.want {
			t.Errorf("FuzzyMatch(%q, %q) = %v, want %v", tc.token, tc.candidate, ok, tc.want)
			continue
		}
		if ok && dist != tc.wantDist {
			t.Errorf("FuzzyMatch(%q, %q) dist = %d, want %d", tc.token, tc.candidate, dist, tc.wantDist)
		}
	}
}

func TestEditDistanceEarlyExit(t *testing.T) {
	// Distant strings report max+1 without computing the full distance.
	if d := editDistance("abcdefgh", "zyxwvuts", 2); d != 3 {
		t.Errorf("editDistance = %d, want 3", d)
	}
	if d := editDistance("kitten", "sitting", 3); d != 3 {
		t.Errorf("editDistance = %d, want 3", d)
	}
	if d := editDistance("", "abc", 3); d != 3 {
		t.Errorf("editDistance = %d, want 3", d)
	}
}

func TestFuzzyWordInText(t *testing.T) {
	ok, dist := fuzzyWordInText("lanten", "getting started with lantern notes")
	if !ok || dist != 1 {
		t.Errorf("got ok=%v dist=%d, want ok=true dist=1", ok, dist)
	}
	if ok, _ := fuzzyWordInText("zzzzzz", "getting started"); ok {
		t.Error("matched a word that is not there")
	}
}

func TestFoldText(t *testing.T) {
	if got := foldText("Crème Brûlée"); got != "creme brulee" {
		t.Errorf("foldText = %q", got)
	}
}
