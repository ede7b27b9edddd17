package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type recordingSummarizer struct {
	inputs []string
	failOn int
	err    error
}

func (s *recordingSummarizer) summarize(_ context.Context, text string) (string, error) {
	s.inputs = append(s.inputs, text)
	if s.failOn > 0 && len(s.inputs) == s.failOn {
		return "", s.err
	}

	return "S" + string(rune('0'+len(s.inputs))), nil
}

func TestSplitSegmentCountAndCoverage(t *testing.T) {
	tests := []struct {
		name   string
		length int
		max    int
		want   int
	}{
		{"shorter than max", 10, 4000, 1},
		{"exactly max", 4000, 4000, 1},
		{"one over max", 4001, 4000, 2},
		{"exact multiple", 12, 4, 3},
		{"remainder", 10, 3, 4},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			text := strings.Repeat("abcdefghij", test.length/10+1)[:test.length]

			segments := Split(text, test.max)
			if len(segments) != test.want {
				t.Fatalf("expected %d segments, got %d", test.want, len(segments))
			}

			for i, segment := range segments {
				if n := utf8.RuneCountInString(segment); n > test.max || n == 0 {
					t.Fatalf("segment %d has %d characters (max %d)", i, n, test.max)
				}
			}

			if joined := strings.Join(segments, ""); joined != text {
				t.Fatalf("segments do not reassemble the original text")
			}
		})
	}
}

func TestSplitCountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("ж", 9)

	segments := Split(text, 4)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}

	for _, segment := range segments {
		if !utf8.ValidString(segment) {
			t.Fatalf("segment %q is not valid UTF-8", segment)
		}
	}

	if utf8.RuneCountInString(segments[2]) != 1 {
		t.Fatalf("expected last segment to hold the remainder, got %q", segments[2])
	}
}

func TestReduceSingleChunkCallsOnceAndReturnsRaw(t *testing.T) {
	calls := 0
	r := New(4000)

	got, err := r.Reduce(context.Background(), "short text", func(_ context.Context, text string) (string, error) {
		calls++
		if text != "short text" {
			t.Fatalf("unexpected input %q", text)
		}

		return "  raw result\n", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}

	if got != "  raw result\n" {
		t.Fatalf("expected unmodified result, got %q", got)
	}
}

func TestReduceMultiChunkMapsThenReduces(t *testing.T) {
	stub := &recordingSummarizer{}
	r := New(4)

	got, err := r.Reduce(context.Background(), "aaaabbbbcc", stub.summarize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stub.inputs) != 4 {
		t.Fatalf("expected segments+1 = 4 calls, got %d", len(stub.inputs))
	}

	wantInputs := []string{"aaaa", "bbbb", "cc", "S1\n\nS2\n\nS3"}
	for i, want := range wantInputs {
		if stub.inputs[i] != want {
			t.Fatalf("call %d: got input %q, want %q", i, stub.inputs[i], want)
		}
	}

	if got != "S4" {
		t.Fatalf("expected final reduce result, got %q", got)
	}
}

func TestReduceSegmentFailureAborts(t *testing.T) {
	cause := errors.New("backend down")
	stub := &recordingSummarizer{failOn: 2, err: cause}
	r := New(2)

	got, err := r.Reduce(context.Background(), "aabbcc", stub.summarize)
	if got != "" {
		t.Fatalf("expected no partial result, got %q", got)
	}

	var reductionErr *ReductionError
	if !errors.As(err, &reductionErr) {
		t.Fatalf("expected ReductionError, got %T: %v", err, err)
	}

	if reductionErr.Stage != StageSegment || reductionErr.Segment != 2 || reductionErr.Segments != 3 {
		t.Fatalf("unexpected reduction error: %+v", reductionErr)
	}

	if !errors.Is(err, cause) {
		t.Fatalf("expected error to wrap the cause")
	}

	if len(stub.inputs) != 2 {
		t.Fatalf("expected processing to stop after failure, got %d calls", len(stub.inputs))
	}
}

func TestReduceFinalFailureAborts(t *testing.T) {
	cause := errors.New("final failed")
	stub := &recordingSummarizer{failOn: 3, err: cause}

	_, err := New(2).Reduce(context.Background(), "aabb", stub.summarize)

	var reductionErr *ReductionError
	if !errors.As(err, &reductionErr) || reductionErr.Stage != StageReduce {
		t.Fatalf("expected reduce-stage ReductionError, got %v", err)
	}

	if !errors.Is(err, cause) {
		t.Fatalf("expected error to wrap the cause")
	}
}

func TestReduceHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &recordingSummarizer{}
	_, err := New(2).Reduce(ctx, "aabb", stub.summarize)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if len(stub.inputs) != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", len(stub.inputs))
	}
}

func TestNewFallsBackToDefault(t *testing.T) {
	if got := New(0).MaxChunkChars(); got != DefaultMaxChunkChars {
		t.Fatalf("expected default max chunk chars, got %d", got)
	}
}

func TestReducerCalls(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 1},
		{"fits", "abcde", 1},
		{"two segments", "abcdef", 3},
		{"three segments", strings.Repeat("x", 11), 4},
	}

	r := New(5)

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := r.Calls(test.text); got != test.want {
				t.Fatalf("expected %d calls, got %d", test.want, got)
			}

			rec := &recordingSummarizer{}
			if _, err := r.Reduce(context.Background(), test.text, rec.summarize); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(rec.inputs) != test.want {
				t.Fatalf("Calls says %d but Reduce made %d", test.want, len(rec.inputs))
			}
		})
	}
}
