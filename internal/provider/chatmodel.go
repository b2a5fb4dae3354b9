package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/budget"
	"github.com/54b3r/adbpg-go/internal/stream"
)

// UsageExtraKey is the schema.Message Extra key holding the priced
// *stream.Usage on the final message of a completion.
const UsageExtraKey = "adbpg_usage"

// chatOptions are the request fields eino's common options do not cover.
type chatOptions struct {
	PresencePenalty *float64
	Seed            *int
}

// WithPresencePenalty sets the presence penalty. The host's
// repetition_penalty parameter maps here.
func WithPresencePenalty(v float64) model.Option {
	return model.WrapImplSpecificOptFn(func(o *chatOptions) { o.PresencePenalty = &v })
}

// WithSeed fixes the sampling seed.
func WithSeed(v int) model.Option {
	return model.WrapImplSpecificOptFn(func(o *chatOptions) { o.Seed = &v })
}

// ChatModel streams chat completions from the service. Every request is
// opened inside a sliding window: if the service rejects it, the oldest
// messages are dropped and the request is retried, keeping at least the
// last two.
type ChatModel struct {
	client  ChatStreamer
	model   string
	pricing stream.UsageCalculator
	log     *slog.Logger
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel constructs a ChatModel. cfg supplies the default model name
// and pricing.
func NewChatModel(client ChatStreamer, cfg *Config, log *slog.Logger) (*ChatModel, error) {
	if client == nil {
		return nil, fmt.Errorf("provider: chat client must not be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("provider: config must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	name := cfg.LLMModel
	if name == "" {
		name = DefaultLLMModel
	}
	return &ChatModel{client: client, model: name, pricing: cfg.Pricing, log: log}, nil
}

// Generate runs a completion and returns the concatenated answer. The
// message's ResponseMeta carries the finish reason and token usage.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (out *schema.Message, err error) {
	req, conf := m.request(input, opts...)

	ctx = callbacks.EnsureRunInfo(ctx, m.GetType(), components.ComponentOfChatModel)
	ctx = callbacks.OnStart(ctx, &model.CallbackInput{Messages: input, Config: conf})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	cs, err := m.open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cs.Close()

	res, err := stream.Aggregate(cs, m.pricing)
	if err != nil {
		return nil, fmt.Errorf("provider: read completion: %w", err)
	}

	out = schema.AssistantMessage(res.Content, nil)
	out.ReasoningContent = res.ReasoningContent
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: res.FinishReason,
		Usage:        tokenUsage(res.Usage),
	}
	out.Extra = map[string]any{UsageExtraKey: res.Usage}

	callbacks.OnEnd(ctx, &model.CallbackOutput{
		Message:    out,
		Config:     conf,
		TokenUsage: callbackUsage(res.Usage),
	})
	return out, nil
}

// Stream runs a completion and yields one assistant message per output
// segment. Reasoning is wrapped in <think> markers inside Content. The last
// message has empty Content and carries ResponseMeta with the finish reason
// and usage.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (_ *schema.StreamReader[*schema.Message], err error) {
	req, conf := m.request(input, opts...)

	ctx = callbacks.EnsureRunInfo(ctx, m.GetType(), components.ComponentOfChatModel)
	ctx = callbacks.OnStart(ctx, &model.CallbackInput{Messages: input, Config: conf})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	cs, err := m.open(ctx, req)
	if err != nil {
		return nil, err
	}
	segs := stream.Segments(cs, stream.ModelVariant, m.pricing)

	sr, sw := schema.Pipe[*model.CallbackOutput](1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				_ = sw.Send(nil, fmt.Errorf("provider: stream panic: %v", p))
			}
			_ = segs.Close()
			sw.Close()
		}()
		for {
			seg, err := segs.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				_ = sw.Send(nil, fmt.Errorf("provider: read completion: %w", err))
				return
			}
			if closed := sw.Send(segmentOutput(seg, conf), nil); closed {
				return
			}
		}
	}()

	_, nsr := callbacks.OnEndWithStreamOutput(ctx, sr)
	return schema.StreamReaderWithConvert(nsr, func(o *model.CallbackOutput) (*schema.Message, error) {
		if o.Message == nil {
			return nil, schema.ErrNoValue
		}
		return o.Message, nil
	}), nil
}

// GetNumTokens counts the tokens of the prompt the host would send for msgs.
func (m *ChatModel) GetNumTokens(msgs []*schema.Message) int {
	return budget.CountTokens(Prompt(msgs))
}

// GetType names the component for callbacks.
func (m *ChatModel) GetType() string { return "AnalyticDB" }

// IsCallbacksEnabled reports that Generate and Stream emit their own
// callbacks.
func (m *ChatModel) IsCallbacksEnabled() bool { return true }

// request resolves options into a facade request and the callback config.
func (m *ChatModel) request(input []*schema.Message, opts ...model.Option) (adbpg.ChatOptions, *model.Config) {
	name := m.model
	o := model.GetCommonOptions(&model.Options{Model: &name}, opts...)
	extra := model.GetImplSpecificOptions(&chatOptions{}, opts...)

	req := adbpg.ChatOptions{
		Model:           *o.Model,
		Messages:        ChatMessages(input),
		MaxTokens:       o.MaxTokens,
		Stop:            o.Stop,
		PresencePenalty: extra.PresencePenalty,
		Seed:            extra.Seed,
	}
	conf := &model.Config{Model: *o.Model, Stop: o.Stop}
	if o.MaxTokens != nil {
		conf.MaxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		t := float64(*o.Temperature)
		req.Temperature = &t
		conf.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		p := float64(*o.TopP)
		req.TopP = &p
		conf.TopP = *o.TopP
	}
	return req, conf
}

// open starts the completion, shrinking the history while the service
// rejects it.
func (m *ChatModel) open(ctx context.Context, req adbpg.ChatOptions) (*adbpg.ChatStream, error) {
	var cs *adbpg.ChatStream
	_, err := budget.RetryWithSlidingWindow(ctx, req.Messages, func(ctx context.Context, window []adbpg.ChatMessage) error {
		r := req
		r.Messages = window
		s, err := m.client.ChatStream(ctx, r)
		if err != nil {
			return err
		}
		cs = s
		return nil
	}, m.log)
	if err != nil {
		m.log.Error("provider: completion failed",
			slog.String("model", req.Model),
			slog.String("invoke_error", string(ClassifyError(err))),
			slog.Any("error", err),
		)
		return nil, err
	}
	return cs, nil
}

// segmentOutput converts one reassembled segment into a callback output.
func segmentOutput(seg stream.Segment, conf *model.Config) *model.CallbackOutput {
	msg := &schema.Message{Role: schema.Assistant, Content: seg.Text}
	out := &model.CallbackOutput{Message: msg, Config: conf}
	if seg.Kind == stream.KindTerminal {
		msg.ResponseMeta = &schema.ResponseMeta{
			FinishReason: seg.FinishReason,
			Usage:        tokenUsage(seg.Usage),
		}
		if seg.Usage != nil {
			msg.Extra = map[string]any{UsageExtraKey: seg.Usage}
		}
		out.TokenUsage = callbackUsage(seg.Usage)
	}
	return out
}

func tokenUsage(u *stream.Usage) *schema.TokenUsage {
	if u == nil {
		return nil
	}
	return &schema.TokenUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func callbackUsage(u *stream.Usage) *model.TokenUsage {
	if u == nil {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// ChatMessages converts eino messages to service messages. Only system, user
// and assistant turns are sent; tool turns are dropped.
func ChatMessages(in []*schema.Message) []adbpg.ChatMessage {
	out := make([]adbpg.ChatMessage, 0, len(in))
	for _, msg := range in {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System, schema.User, schema.Assistant:
			out = append(out, adbpg.ChatMessage{Role: string(msg.Role), Content: messageText(msg)})
		}
	}
	return out
}

// messageText returns Content, or the text parts of a multi-part message.
func messageText(msg *schema.Message) string {
	if msg.Content != "" || len(msg.MultiContent) == 0 {
		return msg.Content
	}
	var parts []string
	for _, p := range msg.MultiContent {
		if p.Type == schema.ChatMessagePartTypeText && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Prompt renders msgs as the plain-text prompt used for token counting.
func Prompt(msgs []*schema.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			parts = append(parts, "System: "+messageText(msg))
		case schema.User:
			parts = append(parts, "User: "+messageText(msg))
		case schema.Assistant:
			parts = append(parts, "Assistant: "+messageText(msg))
		}
	}
	return strings.Join(parts, "\n")
}
