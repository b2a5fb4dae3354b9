// Package stream turns the service's chat completion chunks into ordered
// output segments. Reasoning text is wrapped in <think> markers so hosts that
// only understand plain content still see the model's thinking, and usage is
// attached to the terminal segment.
package stream

import (
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// Usage is token accounting for one completion, optionally priced.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`

	InputPrice  float64 `json:"input_price,omitempty"`
	OutputPrice float64 `json:"output_price,omitempty"`
	TotalPrice  float64 `json:"total_price,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// Chunk is one decoded stream event. Only the first choice is kept.
type Chunk struct {
	// HasChoice is false for keep-alive and metadata-only events.
	HasChoice        bool
	ReasoningContent string
	Content          string
	FinishReason     string
	// Usage is nil when the event carried no token counts.
	Usage *Usage
}

// Finished reports whether the chunk carries a real finish reason. The
// service sometimes sends the literal string "null".
func (c Chunk) Finished() bool {
	return c.FinishReason != "" && c.FinishReason != "null"
}

// ChunkSource is a single-pass sequence of chunks. Recv returns io.EOF after
// the last chunk.
type ChunkSource interface {
	Recv() (Chunk, error)
}

// DecodeChunk parses one event payload. PascalCase keys are tried first, then
// snake_case.
func DecodeChunk(data []byte) (Chunk, error) {
	if !gjson.ValidBytes(data) {
		return Chunk{}, fmt.Errorf("stream: invalid chunk payload: %.200s", data)
	}
	root := gjson.ParseBytes(data)
	if body := first(root, "body"); body.IsObject() {
		root = body
	}

	completion := first(root, "ChatCompletion", "chat_completion")
	var c Chunk

	choice := first(completion, "Choices.0", "choices.0")
	if choice.Exists() {
		c.HasChoice = true
		msg := first(choice, "Message", "message", "Delta", "delta")
		c.Content = first(msg, "Content", "content").String()
		c.ReasoningContent = first(msg, "ReasoningContent", "reasoning_content").String()
		c.FinishReason = first(choice, "FinishReason", "finish_reason").String()
	}

	usage := first(completion, "Usage", "usage")
	if !usage.Exists() {
		usage = first(root, "Usage", "usage")
	}
	if usage.IsObject() {
		in := int(first(usage, "InputTokens", "input_tokens", "PromptTokens", "prompt_tokens").Int())
		out := int(first(usage, "OutputTokens", "output_tokens", "CompletionTokens", "completion_tokens").Int())
		total := int(first(usage, "TotalTokens", "total_tokens").Int())
		if total == 0 {
			total = in + out
		}
		c.Usage = &Usage{InputTokens: in, OutputTokens: out, TotalTokens: total}
	}
	return c, nil
}

// first returns the first path that exists under r.
func first(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// sliceSource replays a fixed chunk list.
type sliceSource struct {
	chunks []Chunk
	pos    int
}

// FromChunks returns a ChunkSource over chunks.
func FromChunks(chunks ...Chunk) ChunkSource {
	return &sliceSource{chunks: chunks}
}

func (s *sliceSource) Recv() (Chunk, error) {
	if s.pos >= len(s.chunks) {
		return Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}
