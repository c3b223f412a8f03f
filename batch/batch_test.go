package batch

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/ftlkit/ftlkit/extract"
)

func records(texts ...string) []*extract.Record {
	recs := make([]*extract.Record, len(texts))
	for i, text := range texts {
		recs[i] = &extract.Record{Name: fmt.Sprintf("msg-%d", i), Text: text}
	}
	return recs
}

func TestChunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		count int
		size  int
		want  []int
	}{
		{name: "even split", count: 6, size: 3, want: []int{3, 3}},
		{name: "short tail", count: 7, size: 3, want: []int{3, 3, 1}},
		{name: "single batch", count: 2, size: 5, want: []int{2}},
		{name: "size one", count: 3, size: 1, want: []int{1, 1, 1}},
		{name: "zero size means one batch", count: 4, size: 0, want: []int{4}},
		{name: "empty input", count: 0, size: 3, want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			texts := make([]string, tc.count)
			for i := range texts {
				texts[i] = fmt.Sprintf("text %d", i)
			}
			batches := Chunk(records(texts...), tc.size)

			var sizes []int
			for _, b := range batches {
				sizes = append(sizes, len(b))
			}
			if !reflect.DeepEqual(sizes, tc.want) {
				t.Fatalf("batch sizes = %v, want %v", sizes, tc.want)
			}

			// Order must be preserved across batch boundaries.
			i := 0
			for _, b := range batches {
				for _, rec := range b {
					if rec.Text != texts[i] {
						t.Fatalf("record %d out of order: %q", i, rec.Text)
					}
					i++
				}
			}
		})
	}
}

func TestJoinSplitRoundTrip(t *testing.T) {
	t.Parallel()

	batch := records("Hello, {0}!", "Multi\nline\ntext", "Plain")
	joined := Join(batch, DefaultSeparator)

	pieces, err := Split(joined, joined, DefaultSeparator, len(batch))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	for i, rec := range batch {
		if pieces[i] != rec.Text {
			t.Errorf("piece %d = %q, want %q", i, pieces[i], rec.Text)
		}
	}
}

func TestSplitAlignmentFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     int
		got      int
	}{
		{name: "dropped separator", response: "one two", want: 2, got: 1},
		{name: "duplicated separator", response: "a|b|c", want: 2, got: 3},
		{name: "empty response", response: "", want: 3, got: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split("the request", tc.response, "|", tc.want)
			if err == nil {
				t.Fatal("expected AlignmentError, got nil")
			}
			var ae *AlignmentError
			if !errors.As(err, &ae) {
				t.Fatalf("error %T is not *AlignmentError", err)
			}
			if ae.Expected != tc.want || ae.Got != tc.got {
				t.Errorf("counts = (%d, %d), want (%d, %d)", ae.Expected, ae.Got, tc.want, tc.got)
			}
			if ae.Request != "the request" || ae.Response != tc.response {
				t.Errorf("diagnosis payload = (%q, %q)", ae.Request, ae.Response)
			}
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	batch := records("one", "two")
	if err := Apply(batch, []string{"uno", "dos"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if batch[0].Text != "uno" || batch[1].Text != "dos" {
		t.Errorf("texts = %q, %q", batch[0].Text, batch[1].Text)
	}
}

func TestApplyMismatchLeavesBatchUntouched(t *testing.T) {
	t.Parallel()

	batch := records("one", "two", "three")
	err := Apply(batch, []string{"uno", "dos"})
	if err == nil {
		t.Fatal("expected AlignmentError, got nil")
	}
	var ae *AlignmentError
	if !errors.As(err, &ae) {
		t.Fatalf("error %T is not *AlignmentError", err)
	}
	for i, want := range []string{"one", "two", "three"} {
		if batch[i].Text != want {
			t.Errorf("record %d mutated to %q after failed apply", i, batch[i].Text)
		}
	}
}

func TestSplitNearMissSeparator(t *testing.T) {
	t.Parallel()

	// Only the exact separator splits. Bracketed text and bare
	// newlines inside records must survive the round trip.
	batch := records("see [docs] for more", "first\nsecond", "tail [◙] inline")
	joined := Join(batch, DefaultSeparator)

	pieces, err := Split(joined, joined, DefaultSeparator, len(batch))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !strings.Contains(pieces[0], "[docs]") {
		t.Errorf("piece 0 = %q", pieces[0])
	}
	if pieces[2] != "tail [◙] inline" {
		t.Errorf("piece 2 = %q", pieces[2])
	}
}
