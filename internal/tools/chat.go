package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/stream"
)

// AnswerVariable names the streamed answer for the host.
const AnswerVariable = "llm_answer"

// ChatWithKnowledgeBaseTool answers a question with retrieval from a
// knowledge base. Reasoning is wrapped in <think> markers.
type ChatWithKnowledgeBaseTool struct {
	meta
	client Client
	log    *slog.Logger
}

var _ tool.StreamableTool = (*ChatWithKnowledgeBaseTool)(nil)

type chatInput struct {
	Query                string   `mapstructure:"query"`
	LLMModel             string   `mapstructure:"llm_model"`
	Knowledgebase        string   `mapstructure:"knowledgebase"`
	TopK                 *int     `mapstructure:"top_k"`
	UseFullTextRetrieval *bool    `mapstructure:"use_full_text_retrieval"`
	RerankFactor         *float64 `mapstructure:"rerank_factor"`
	GraphEnhance         *bool    `mapstructure:"graph_enhance"`
	Prompt               string   `mapstructure:"prompt"`
	System               string   `mapstructure:"system"`
	MaxTokens            *int     `mapstructure:"max_tokens"`
	PresencePenalty      *float64 `mapstructure:"presence_penalty"`
	Seed                 *int     `mapstructure:"seed"`
	Temperature          *float64 `mapstructure:"temperature"`
	TopP                 *float64 `mapstructure:"top_p"`
}

// NewChatWithKnowledgeBaseTool constructs a ChatWithKnowledgeBaseTool.
func NewChatWithKnowledgeBaseTool(client Client, log *slog.Logger) *ChatWithKnowledgeBaseTool {
	return &ChatWithKnowledgeBaseTool{
		meta: meta{
			name: "chat_with_knowledge_base_stream",
			desc: "Answers a question with an AnalyticDB-hosted LLM, grounded on chunks retrieved from a knowledge base.",
			params: map[string]*schema.ParameterInfo{
				"query":                   strReq("The question."),
				"llm_model":               strReq("LLM, e.g. qwen-max."),
				"knowledgebase":           str("Document collection to retrieve from. Without it the model answers alone."),
				"top_k":                   integer("Number of chunks to retrieve."),
				"use_full_text_retrieval": boolean("Combine full text retrieval with vector retrieval."),
				"rerank_factor":           number("Rerank oversampling factor."),
				"graph_enhance":           boolean("Add knowledge graph results."),
				"prompt":                  str("Prompt template applied to the retrieved context."),
				"system":                  str("System message."),
				"max_tokens":              integer("Maximum tokens to generate."),
				"presence_penalty":        number("Presence penalty."),
				"seed":                    integer("Sampling seed."),
				"temperature":             number("Sampling temperature."),
				"top_p":                   number("Nucleus sampling probability."),
			},
		},
		client: client,
		log:    log,
	}
}

// open decodes the arguments and starts the stream.
func (t *ChatWithKnowledgeBaseTool) open(ctx context.Context, argumentsInJSON string) (*stream.SegmentStream, error) {
	var in chatInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "query", in.Query, "llm_model", in.LLMModel); err != nil {
		return nil, err
	}
	t.log.Info("tools: chat_with_knowledge_base_stream invoked",
		slog.String("llm_model", in.LLMModel),
		slog.String("knowledgebase", in.Knowledgebase),
	)

	cs, err := t.client.ChatWithKnowledgeBaseStream(ctx, adbpg.KnowledgeChatOptions{
		Query:                in.Query,
		Model:                in.LLMModel,
		Collection:           in.Knowledgebase,
		TopK:                 in.TopK,
		UseFullTextRetrieval: in.UseFullTextRetrieval,
		RerankFactor:         in.RerankFactor,
		GraphEnhance:         in.GraphEnhance,
		Prompt:               in.Prompt,
		System:               in.System,
		MaxTokens:            in.MaxTokens,
		PresencePenalty:      in.PresencePenalty,
		Seed:                 in.Seed,
		Temperature:          in.Temperature,
		TopP:                 in.TopP,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return stream.Segments(cs, stream.ToolVariant, nil), nil
}

// Run drains the stream into one answer.
func (t *ChatWithKnowledgeBaseTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	segs, err := t.open(ctx, argumentsInJSON)
	if err != nil {
		return nil, err
	}
	defer segs.Close()

	answer, err := stream.Collect(segs)
	if err != nil {
		return nil, fmt.Errorf("%s: read stream: %w", t.name, err)
	}
	t.log.Info("tools: chat_with_knowledge_base_stream completed", slog.Int("chars", len(answer)))
	return &Result{Variables: map[string]any{AnswerVariable: answer}, Text: answer}, nil
}

// InvokableRun implements tool.InvokableTool.
func (t *ChatWithKnowledgeBaseTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}

// StreamableRun implements tool.StreamableTool. Each element is one segment
// of the answer, markers included.
func (t *ChatWithKnowledgeBaseTool) StreamableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (_ *schema.StreamReader[string], err error) {
	ctx = callbacks.EnsureRunInfo(ctx, t.name, components.ComponentOfTool)
	ctx = callbacks.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: argumentsInJSON})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	segs, err := t.open(ctx, argumentsInJSON)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*tool.CallbackOutput](1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				_ = sw.Send(nil, fmt.Errorf("%s: stream panic: %v", t.name, p))
			}
			_ = segs.Close()
			sw.Close()
		}()
		for {
			seg, err := segs.Recv()
			if errors.Is(err, io.EOF) {
				t.log.Info("tools: chat_with_knowledge_base_stream completed")
				return
			}
			if err != nil {
				_ = sw.Send(nil, fmt.Errorf("%s: read stream: %w", t.name, err))
				return
			}
			if seg.Text == "" {
				continue
			}
			if closed := sw.Send(&tool.CallbackOutput{Response: seg.Text}, nil); closed {
				return
			}
		}
	}()

	_, nsr := callbacks.OnEndWithStreamOutput(ctx, sr)
	return schema.StreamReaderWithConvert(nsr, func(o *tool.CallbackOutput) (string, error) {
		if o == nil {
			return "", schema.ErrNoValue
		}
		return o.Response, nil
	}), nil
}
