// Package budget keeps chat requests inside the service's size limits. It
// counts tokens for the host's get_num_tokens contract and retries rejected
// chat requests with a sliding window over the message history.
package budget

import (
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// charsPerToken is the fallback ratio when no tokenizer is available.
	charsPerToken = 4

	// encodingName is the tokenizer used for all counts. The service's models
	// have their own tokenizers; counts here are approximations.
	encodingName = "cl100k_base"

	// DefaultMaxContextTokens bounds the local chat history kept by the CLI.
	DefaultMaxContextTokens = 6000
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// encoding loads the tokenizer once. A nil result means fall back to
// Estimate, e.g. when the BPE file cannot be fetched offline.
func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			slog.Default().Warn("budget: tokenizer unavailable, using character estimate", slog.Any("error", err))
			return
		}
		enc = e
	})
	return enc
}

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// CountTokens counts s with the cl100k_base tokenizer, falling back to
// Estimate.
func CountTokens(s string) int {
	if s == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(s, nil, nil))
	}
	return Estimate(s)
}

// CountMessages sums role and content tokens plus a per-message overhead.
func CountMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += CountTokens(string(m.Role))
		total += CountTokens(m.Content)
	}
	return total
}

// TrimHistory drops the oldest history messages until fixed + history fits
// within maxTokens. fixed is never trimmed.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}
	fixedTokens := CountMessages(fixed)
	for len(history) > 0 {
		if fixedTokens+CountMessages(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}
