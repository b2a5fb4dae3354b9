package stream

import (
	"errors"
	"io"
	"strings"
)

// Kind classifies an output segment.
type Kind int

const (
	// KindMarker is a literal <think> open or close marker.
	KindMarker Kind = iota
	// KindReasoning is reasoning text.
	KindReasoning
	// KindContent is answer text.
	KindContent
	// KindTerminal ends the completion. Its Text is always empty.
	KindTerminal
)

// Segment is one unit of reassembled output.
type Segment struct {
	Kind Kind
	Text string
	// FinishReason and Usage are set on terminal segments only.
	FinishReason string
	Usage        *Usage
}

// Variant fixes the marker text and ending behavior of a reassembly.
type Variant struct {
	// Open precedes the first reasoning text.
	Open string
	// Close sits between reasoning and the first content.
	Close string
	// FinishClose is emitted on finish when content never started.
	// Ignored unless Terminal is set.
	FinishClose string
	// TrailingClose is emitted at end of stream when content never started.
	TrailingClose string
	// Terminal emits a KindTerminal segment on every finish reason.
	Terminal bool
}

var (
	// ModelVariant is used by the chat model: finish reasons produce a
	// terminal segment carrying usage.
	ModelVariant = Variant{
		Open:        "<think>\n",
		Close:       "\n</think>\n\n",
		FinishClose: "\n</think>",
		Terminal:    true,
	}

	// ToolVariant is used by the knowledge base chat tool: plain text only,
	// with the thinking block closed at end of stream if needed.
	ToolVariant = Variant{
		Open:          "\n<think>\n",
		Close:         "\n</think>\n\n",
		TrailingClose: "\n</think>\n",
	}
)

// SegmentStream is a lazy, finite, non-restartable sequence of segments.
// It is not safe for concurrent use.
type SegmentStream struct {
	src  ChunkSource
	v    Variant
	calc UsageCalculator

	pending         []Segment
	thinkingStarted bool
	contentStarted  bool
	done            bool
	err             error
}

// Segments wraps src. A nil calc reports token counts without prices.
func Segments(src ChunkSource, v Variant, calc UsageCalculator) *SegmentStream {
	if calc == nil {
		calc = Pricing{}
	}
	return &SegmentStream{src: src, v: v, calc: calc}
}

// Recv returns the next segment, io.EOF after the last one, or the source's
// error. Once an error is returned every later call returns it too.
func (s *SegmentStream) Recv() (Segment, error) {
	for len(s.pending) == 0 {
		if s.done {
			return Segment{}, s.err
		}
		c, err := s.src.Recv()
		if err != nil {
			s.done = true
			s.err = err
			if errors.Is(err, io.EOF) {
				s.err = io.EOF
				if s.thinkingStarted && !s.contentStarted && s.v.TrailingClose != "" {
					s.pending = append(s.pending, Segment{Kind: KindMarker, Text: s.v.TrailingClose})
				}
			}
			continue
		}
		s.step(c)
	}
	seg := s.pending[0]
	s.pending = s.pending[1:]
	return seg, nil
}

// Close releases the source if it holds resources.
func (s *SegmentStream) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// step queues the segments produced by one chunk.
func (s *SegmentStream) step(c Chunk) {
	if !c.HasChoice {
		return
	}

	if c.ReasoningContent != "" {
		if !s.thinkingStarted {
			s.thinkingStarted = true
			s.pending = append(s.pending, Segment{Kind: KindMarker, Text: s.v.Open})
		}
		s.pending = append(s.pending, Segment{Kind: KindReasoning, Text: c.ReasoningContent})
	}

	if c.Content != "" {
		// Content before any reasoning does not count as having started.
		if s.thinkingStarted && !s.contentStarted {
			s.contentStarted = true
			s.pending = append(s.pending, Segment{Kind: KindMarker, Text: s.v.Close})
		}
		s.pending = append(s.pending, Segment{Kind: KindContent, Text: c.Content})
	}

	if s.v.Terminal && c.Finished() {
		if s.thinkingStarted && !s.contentStarted {
			s.pending = append(s.pending, Segment{Kind: KindMarker, Text: s.v.FinishClose})
		}
		term := Segment{Kind: KindTerminal, FinishReason: c.FinishReason}
		if c.Usage != nil {
			term.Usage = s.calc.Calculate(c.Usage.InputTokens, c.Usage.OutputTokens)
		}
		s.pending = append(s.pending, term)
	}
}

// Collect drains s and concatenates every segment's text.
func Collect(s *SegmentStream) (string, error) {
	var b strings.Builder
	for {
		seg, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(seg.Text)
	}
}

// Result is the non-streaming aggregate of a completion.
type Result struct {
	Content          string
	ReasoningContent string
	FinishReason     string
	// Usage counts are zero when no chunk carried them.
	Usage *Usage
}

// Aggregate drains src into a single result. Content is concatenated without
// markers and the last seen usage wins.
func Aggregate(src ChunkSource, calc UsageCalculator) (*Result, error) {
	if calc == nil {
		calc = Pricing{}
	}
	var (
		content   strings.Builder
		reasoning strings.Builder
		res       Result
		last      *Usage
	)
	for {
		c, err := src.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !c.HasChoice {
			continue
		}
		content.WriteString(c.Content)
		reasoning.WriteString(c.ReasoningContent)
		if c.Finished() {
			res.FinishReason = c.FinishReason
		}
		if c.Usage != nil {
			last = c.Usage
		}
	}
	res.Content = content.String()
	res.ReasoningContent = reasoning.String()
	in, out := 0, 0
	if last != nil {
		in, out = last.InputTokens, last.OutputTokens
	}
	res.Usage = calc.Calculate(in, out)
	return &res, nil
}
