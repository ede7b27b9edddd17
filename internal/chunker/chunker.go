package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChunkChars = 4000

	partialSeparator = "\n\n"

	StageSegment = "segment"
	StageReduce  = "reduce"
)

// SummarizeFunc summarizes a single piece of text.
type SummarizeFunc func(ctx context.Context, text string) (string, error)

// ReductionError aborts a whole reduction. Segment is 1-based and zero for the
// final reduce call.
type ReductionError struct {
	Stage    string
	Segment  int
	Segments int
	Err      error
}

func (e *ReductionError) Error() string {
	if e.Stage == StageReduce {
		return fmt.Sprintf("reduce %d partial summaries: %v", e.Segments, e.Err)
	}

	return fmt.Sprintf("summarize segment %d/%d: %v", e.Segment, e.Segments, e.Err)
}

func (e *ReductionError) Unwrap() error { return e.Err }

type Reducer struct {
	maxChunkChars int
}

func New(maxChunkChars int) *Reducer {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}

	return &Reducer{maxChunkChars: maxChunkChars}
}

func (r *Reducer) MaxChunkChars() int {
	return r.maxChunkChars
}

// Calls is the number of summarize calls Reduce makes for text.
func (r *Reducer) Calls(text string) int {
	n := len(Split(text, r.maxChunkChars))
	if n > 1 {
		n++
	}

	return n
}

// Reduce summarizes text one segment at a time and then summarizes the joined
// partial summaries once more. A text that fits into one segment is summarized
// with a single call.
func (r *Reducer) Reduce(
	ctx context.Context,
	text string,
	summarizeOne SummarizeFunc,
) (string, error) {
	segments := Split(text, r.maxChunkChars)
	total := len(segments)

	if total == 1 {
		if err := ctx.Err(); err != nil {
			return "", &ReductionError{Stage: StageSegment, Segment: 1, Segments: 1, Err: err}
		}

		summary, err := summarizeOne(ctx, segments[0])
		if err != nil {
			return "", &ReductionError{Stage: StageSegment, Segment: 1, Segments: 1, Err: err}
		}

		return summary, nil
	}

	partials := make([]string, 0, total)
	for i, segment := range segments {
		if err := ctx.Err(); err != nil {
			return "", &ReductionError{Stage: StageSegment, Segment: i + 1, Segments: total, Err: err}
		}

		partial, err := summarizeOne(ctx, segment)
		if err != nil {
			return "", &ReductionError{Stage: StageSegment, Segment: i + 1, Segments: total, Err: err}
		}
		partials = append(partials, partial)
	}

	if err := ctx.Err(); err != nil {
		return "", &ReductionError{Stage: StageReduce, Segments: total, Err: err}
	}

	summary, err := summarizeOne(ctx, strings.Join(partials, partialSeparator))
	if err != nil {
		return "", &ReductionError{Stage: StageReduce, Segments: total, Err: err}
	}

	return summary, nil
}

// Split cuts text into contiguous segments of at most maxChunkChars characters.
// Empty text yields a single empty segment.
func Split(text string, maxChunkChars int) []string {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}

	n := utf8.RuneCountInString(text)
	if n <= maxChunkChars {
		return []string{text}
	}

	segments := make([]string, 0, (n+maxChunkChars-1)/maxChunkChars)

	start, count := 0, 0
	for i := range text {
		if count == maxChunkChars {
			segments = append(segments, text[start:i])
			start, count = i, 0
		}
		count++
	}
	segments = append(segments, text[start:])

	return segments
}
