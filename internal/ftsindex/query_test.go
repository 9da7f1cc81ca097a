package ftsindex

import "testing"

func TestEscapeLike(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"foo_bar", `foo\_bar`},
		{`back\slash`, `back\\slash`},
		{"%_%", `\%\_\%`},
	}
	for _, tc := range cases {
		if got := escapeLike(tc.in); got != tc.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLikePattern(t *testing.T) {
	if got := likePattern("tok", OpContains); got != "%tok%" {
		t.Errorf("contains pattern = %q", got)
	}
	if got := likePattern("tok", OpStartsWith); got != "tok%" {
		t.Errorf("prefix pattern = %q", got)
	}
	if got := likePattern("tok", OpEndsWith); got != "%tok" {
		t.Errorf("suffix pattern = %q", got)
	}
	if got := likePattern("100%", OpContains); got != `%100\%%` {
		t.Errorf("escaped pattern = %q", got)
	}
}

func TestMatchQuery(t *testing.T) {
	if got := matchQuery([]string{"hello", "world"}); got != `"hello" + "world"` {
		t.Errorf("matchQuery = %q", got)
	}
	if got := matchQuery([]string{`say "hi"`}); got != `"say ""hi"""` {
		t.Errorf("matchQuery with quotes = %q", got)
	}
}

func TestPhraseInText(t *testing.T) {
	cases := []struct {
		phrase string
		text   string
		want   bool
	}{
		{"test123", "this is test123 here", true},
		{"test123", "this is test1234 here", false},
		{"two words", "exactly two words match", true},
		{"two words", "two other words", false},
		{"case", "CASE insensitive", true},
		{"", "anything", false},
	}
	for _, tc := range cases {
		if got := PhraseInText(tc.phrase, tc.text); got != tc.want {
			t.Errorf("PhraseInText(%q, %q) = %v, want %v", tc.phrase, tc.text, got, tc.want)
		}
	}
}

func TestShortestTokenCountsRunes(t *testing.T) {
	// "éé" is four bytes but two characters, below the trigram minimum.
	if got := shortestToken([]string{"éé", "longer"}); got != 2 {
		t.Errorf("shortestToken = %d, want 2", got)
	}
	if got := shortestToken([]string{"abc"}); got != 3 {
		t.Errorf("shortestToken = %d, want 3", got)
	}
}

func TestStripTags(t *testing.T) {
	if got := StripTags("<p>hello</p><br/>world"); got != " hello  world" {
		t.Errorf("StripTags = %q", got)
	}
}

func TestPaginate(t *testing.T) {
	rows := []Match{{NoteID: "a"}, {NoteID: "b"}, {NoteID: "c"}}
	if got := paginate(rows, 2, 0); len(got) != 2 || got[0].NoteID != "a" {
		t.Errorf("limit 2 = %v", got)
	}
	if got := paginate(rows, 0, 1); len(got) != 2 || got[0].NoteID != "b" {
		t.Errorf("offset 1 = %v", got)
	}
	if got := paginate(rows, 0, 5); got != nil {
		t.Errorf("offset beyond end = %v", got)
	}
}

func TestValidateTokens(t *testing.T) {
	long := make([]byte, maxTokenLength+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := validateTokens([]string{string(long)}); err == nil {
		t.Error("overlong token accepted")
	}
	if err := validateTokens([]string{"fine"}); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "?,?,?" {
		t.Errorf("placeholders(3) = %q", got)
	}
}
