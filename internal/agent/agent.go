// Package agent wires the AnalyticDB chat model and the knowledge retriever
// into a multi-turn assistant. Each question is answered with the knowledge
// base excerpts retrieved for it, on top of the prior turns that still fit
// the context budget.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/budget"
	"github.com/54b3r/adbpg-go/internal/logging"
)

// systemPrompt is the default system message.
const systemPrompt = `You are a knowledge base assistant backed by AnalyticDB for PostgreSQL.

Answer the user's question using the knowledge base excerpts provided in the
conversation. Cite the source file name of each excerpt you rely on. When the
excerpts do not contain the answer, say so plainly and answer from general
knowledge only if the user asks you to. Keep answers concise.`

// thinkBlock matches reasoning emitted between <think> markers.
var thinkBlock = regexp.MustCompile(`(?s)\s*<think>.*?</think>\s*`)

// Config holds the dependencies required to construct a KnowledgeAgent.
type Config struct {
	// ChatModel answers the questions. Required.
	ChatModel model.BaseChatModel

	// Retriever supplies knowledge base excerpts. May be nil, in which case
	// questions are answered from the model alone.
	Retriever retriever.Retriever

	// KnowledgeBase is the collection passed to the retriever as its index.
	KnowledgeBase string

	// TopK controls how many excerpts are injected per question.
	// Defaults to 5 if zero.
	TopK int

	// ScoreThreshold drops excerpts scoring below it.
	ScoreThreshold float64

	// System replaces the default system prompt when set.
	System string

	// MaxContextTokens is the estimated token budget for the full input
	// context. History is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// Options are passed to every model call.
	Options []model.Option
}

// KnowledgeAgent answers questions against one knowledge base and keeps the
// conversation in memory.
type KnowledgeAgent struct {
	model            model.BaseChatModel
	retriever        retriever.Retriever
	knowledgeBase    string
	topK             int
	scoreThreshold   float64
	system           string
	maxContextTokens int
	opts             []model.Option

	mu      sync.Mutex
	history []*schema.Message
}

// New constructs a KnowledgeAgent from the provided Config.
func New(cfg *Config) (*KnowledgeAgent, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	system := cfg.System
	if system == "" {
		system = systemPrompt
	}
	return &KnowledgeAgent{
		model:            cfg.ChatModel,
		retriever:        cfg.Retriever,
		knowledgeBase:    cfg.KnowledgeBase,
		topK:             topK,
		scoreThreshold:   cfg.ScoreThreshold,
		system:           system,
		maxContextTokens: maxCtx,
		opts:             cfg.Options,
	}, nil
}

// Query streams the answer to userMessage into w and returns it. The turn is
// added to the history once the stream completes.
func (a *KnowledgeAgent) Query(ctx context.Context, userMessage string, w io.Writer) (string, error) {
	messages := a.buildMessages(ctx, userMessage)

	sr, err := a.model.Stream(ctx, messages, a.opts...)
	if err != nil {
		return "", fmt.Errorf("agent: stream failed: %w", err)
	}
	defer sr.Close()

	var answer strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return answer.String(), fmt.Errorf("agent: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		answer.WriteString(msg.Content)
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return answer.String(), fmt.Errorf("agent: write error: %w", err)
		}
	}

	a.mu.Lock()
	a.history = append(a.history,
		schema.UserMessage(userMessage),
		schema.AssistantMessage(stripReasoning(answer.String()), nil),
	)
	a.mu.Unlock()

	return answer.String(), nil
}

// Reset forgets the conversation.
func (a *KnowledgeAgent) Reset() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}

// History returns a copy of the conversation so far.
func (a *KnowledgeAgent) History() []*schema.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*schema.Message(nil), a.history...)
}

// buildMessages assembles [system, ...history, context, user]. Retrieval
// failures are logged and the question goes out without context.
func (a *KnowledgeAgent) buildMessages(ctx context.Context, userMessage string) []*schema.Message {
	log := logging.FromContext(ctx)
	fixed := []*schema.Message{schema.SystemMessage(a.system)}

	if a.retriever != nil && a.knowledgeBase != "" {
		docs, err := a.retriever.Retrieve(ctx, userMessage,
			retriever.WithIndex(a.knowledgeBase),
			retriever.WithTopK(a.topK),
			retriever.WithScoreThreshold(a.scoreThreshold),
		)
		if err != nil {
			log.Warn("agent: retrieval failed, continuing without context", slog.Any("error", err))
		} else if len(docs) > 0 {
			fixed = append(fixed, schema.SystemMessage(buildRAGContext(docs)))
		}
	}
	fixed = append(fixed, schema.UserMessage(userMessage))

	history := a.History()
	before := len(history)
	history = budget.TrimHistory(fixed, history, a.maxContextTokens)
	if dropped := before - len(history); dropped > 0 {
		log.Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(history)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	out := make([]*schema.Message, 0, len(fixed)+len(history))
	out = append(out, fixed[0])
	out = append(out, history...)
	out = append(out, fixed[1:]...)
	return out
}

// buildRAGContext formats retrieved documents into a system message.
func buildRAGContext(docs []*schema.Document) string {
	var sb strings.Builder
	sb.WriteString("## Knowledge Base Excerpts\n\n")
	sb.WriteString("The following excerpts were retrieved for the user's question.\n\n")
	for i, doc := range docs {
		title, _ := doc.MetaData["title"].(string)
		if title == "" {
			title = doc.ID
		}
		fmt.Fprintf(&sb, "### Source %d: %s (score %.3f)\n%s\n\n", i+1, title, doc.Score(), doc.Content)
	}
	return sb.String()
}

// stripReasoning removes <think> blocks so they are not replayed as history.
func stripReasoning(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, "\n"))
}
