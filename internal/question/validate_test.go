package question

import (
	"errors"
	"testing"
)

func opts(texts ...string) []MediaText {
	out := make([]MediaText, len(texts))
	for i, t := range texts {
		out[i] = MediaText{Text: t}
	}
	return out
}

func TestExactlyFourPolicy(t *testing.T) {
	cases := []struct {
		name string
		in   []MediaText
		ok   bool
	}{
		{name: "four filled", in: opts("a", "b", "c", "d"), ok: true},
		{name: "image only option", in: []MediaText{{Text: "a"}, {Image: "http://x/i.png"}, {Text: "c"}, {Text: "d"}}, ok: true},
		{name: "three", in: opts("a", "b", "c")},
		{name: "five", in: opts("a", "b", "c", "d", "e")},
		{name: "one blank", in: opts("a", "b", "  ", "d")},
		{name: "all blank", in: opts("", "", "", "")},
		{name: "none", in: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOptions(tc.in, ExactlyFour)
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("expected invalid options, got %v", err)
			}
		})
	}
}

func TestBulkRangePolicy(t *testing.T) {
	for n := 0; n <= 5; n++ {
		in := make([]MediaText, n)
		for i := range in {
			in[i] = MediaText{Text: "x"}
		}
		err := ValidateOptions(in, BulkRange)
		if want := n >= 2 && n <= 4; want != (err == nil) {
			t.Fatalf("n=%d: expected ok=%v, got %v", n, want, err)
		}
	}
}

func TestValidateReportsFirstFailureInOrder(t *testing.T) {
	err := Validate(Candidate{Options: opts("a"), CorrectAnswer: intPtr(9), Difficulty: 3}, ExactlyFour)
	if !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("title failure should win, got %v", err)
	}
	err = Validate(Candidate{Title: MediaText{Text: "t"}, Options: opts("a"), CorrectAnswer: intPtr(9), Difficulty: 3}, ExactlyFour)
	if !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("options failure should win over answer, got %v", err)
	}
	err = Validate(Candidate{Title: MediaText{Text: "t"}, Options: opts("a", "b", "c", "d"), Difficulty: 3}, ExactlyFour)
	if !errors.Is(err, ErrInvalidCorrectAnswer) {
		t.Fatalf("missing answer should fail, got %v", err)
	}
	err = Validate(Candidate{Title: MediaText{Text: "t"}, Options: opts("a", "b", "c", "d"), CorrectAnswer: intPtr(3), Difficulty: 6}, ExactlyFour)
	if !errors.Is(err, ErrInvalidDifficulty) {
		t.Fatalf("difficulty out of range should fail, got %v", err)
	}
}

func TestCorrectAnswerRange(t *testing.T) {
	four := opts("a", "b", "c", "d")
	for _, idx := range []int{-1, 4, 10} {
		if err := ValidateCorrectAnswer(intPtr(idx), four); err == nil {
			t.Fatalf("index %d should be rejected", idx)
		}
	}
	for idx := 0; idx < 4; idx++ {
		if err := ValidateCorrectAnswer(intPtr(idx), four); err != nil {
			t.Fatalf("index %d should pass: %v", idx, err)
		}
	}
}
