package adbpg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	"github.com/alibabacloud-go/tea/tea"
)

// ChatMessage is one turn of a chat request.
type ChatMessage struct {
	Role    string `json:"Role"`
	Content string `json:"Content"`
}

// modelParams is the ModelParams request field.
type modelParams struct {
	Model           string        `json:"Model"`
	Messages        []ChatMessage `json:"Messages"`
	MaxTokens       *int          `json:"MaxTokens,omitempty"`
	Temperature     *float64      `json:"Temperature,omitempty"`
	TopP            *float64      `json:"TopP,omitempty"`
	PresencePenalty *float64      `json:"PresencePenalty,omitempty"`
	Seed            *int          `json:"Seed,omitempty"`
	Stop            []string      `json:"Stop,omitempty"`
}

type queryParams struct {
	TopK                 *int     `json:"TopK,omitempty"`
	RerankFactor         *float64 `json:"RerankFactor,omitempty"`
	UseFullTextRetrieval *bool    `json:"UseFullTextRetrieval,omitempty"`
	GraphEnhance         *bool    `json:"GraphEnhance,omitempty"`
}

type sourceCollection struct {
	Collection        string      `json:"Collection"`
	Namespace         string      `json:"Namespace,omitempty"`
	NamespacePassword string      `json:"NamespacePassword,omitempty"`
	QueryParams       queryParams `json:"QueryParams"`
}

// knowledgeParams is the KnowledgeParams request field.
type knowledgeParams struct {
	SourceCollection []sourceCollection `json:"SourceCollection"`
	TopK             *int               `json:"TopK,omitempty"`
}

// ChatOptions configures a chat completion without knowledge base retrieval.
type ChatOptions struct {
	Model           string
	Messages        []ChatMessage
	MaxTokens       *int
	Temperature     *float64
	TopP            *float64
	PresencePenalty *float64
	Seed            *int
	Stop            []string
}

// ChatStream opens a streaming chat completion with no knowledge base.
func (c *Client) ChatStream(ctx context.Context, opts ChatOptions) (*ChatStream, error) {
	if len(opts.Messages) == 0 {
		return nil, invalidArgf("at least one message is required")
	}
	f := c.instanceForm()
	f.set("IncludeKnowledgeBaseResults", false)
	f.set("ModelParams", modelParams{
		Model:           opts.Model,
		Messages:        opts.Messages,
		MaxTokens:       opts.MaxTokens,
		Temperature:     opts.Temperature,
		TopP:            opts.TopP,
		PresencePenalty: opts.PresencePenalty,
		Seed:            opts.Seed,
		Stop:            NormalizeList(opts.Stop),
	})
	c.log.Info("adbpg: chat stream request started",
		slog.String("model", opts.Model),
		slog.Int("messages", len(opts.Messages)),
	)
	return c.openStream(ctx, "ChatWithKnowledgeBaseStream", f)
}

// KnowledgeChatOptions configures a chat completion grounded in a knowledge
// base.
type KnowledgeChatOptions struct {
	Query string
	Model string
	// Collection is optional; without it the call is a plain chat.
	Collection           string
	TopK                 *int
	UseFullTextRetrieval *bool
	RerankFactor         *float64
	GraphEnhance         *bool
	// Prompt is the prompt template sent as PromptParams.
	Prompt          string
	System          string
	MaxTokens       *int
	PresencePenalty *float64
	Seed            *int
	Temperature     *float64
	TopP            *float64
}

// ChatWithKnowledgeBaseStream opens a streaming chat completion with
// retrieval from opts.Collection.
func (c *Client) ChatWithKnowledgeBaseStream(ctx context.Context, opts KnowledgeChatOptions) (*ChatStream, error) {
	if opts.Query == "" {
		return nil, invalidArgf("query is required")
	}

	var messages []ChatMessage
	if opts.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: opts.Query})

	f := c.instanceForm()
	f.set("IncludeKnowledgeBaseResults", true)
	if opts.Collection != "" {
		f.set("KnowledgeParams", knowledgeParams{
			SourceCollection: []sourceCollection{{
				Collection:        opts.Collection,
				Namespace:         c.creds.Namespace,
				NamespacePassword: c.creds.NamespacePassword,
				QueryParams: queryParams{
					TopK:                 opts.TopK,
					RerankFactor:         opts.RerankFactor,
					UseFullTextRetrieval: opts.UseFullTextRetrieval,
					GraphEnhance:         opts.GraphEnhance,
				},
			}},
			TopK: opts.TopK,
		})
	}
	f.set("ModelParams", modelParams{
		Model:           opts.Model,
		Messages:        messages,
		MaxTokens:       opts.MaxTokens,
		Temperature:     opts.Temperature,
		TopP:            opts.TopP,
		PresencePenalty: opts.PresencePenalty,
		Seed:            opts.Seed,
	})
	f.set("PromptParams", opts.Prompt)

	c.log.Info("adbpg: knowledge base chat stream request started",
		slog.String("model", opts.Model),
		slog.String("collection", opts.Collection),
	)
	return c.openStream(ctx, "ChatWithKnowledgeBaseStream", f)
}

// openStream issues action and returns its undecoded event stream.
func (c *Client) openStream(ctx context.Context, action string, f form) (*ChatStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("adbpg: %s: %w", action, err)
	}

	start := time.Now()
	res, err := c.api.CallApi(rpcParams(action, apiVersion, "binary"), &openapi.OpenApiRequest{
		Headers: map[string]*string{"Accept": tea.String("text/event-stream")},
		Body:    map[string]interface{}(f),
	}, c.runtime)
	elapsed := time.Since(start)
	if err != nil {
		rerr := newRemoteError(action, err)
		c.metrics.observe(action, elapsed, rerr)
		c.log.Error("adbpg: stream open failed",
			slog.String("action", action),
			slog.Duration("duration", elapsed),
			slog.String("code", rerr.Code),
			slog.Any("error", err),
		)
		return nil, rerr
	}
	c.metrics.observe(action, elapsed, nil)

	var body io.Reader
	switch b := res["body"].(type) {
	case io.Reader:
		body = b
	case string:
		body = strings.NewReader(b)
	case []byte:
		body = strings.NewReader(string(b))
	default:
		return nil, &RemoteError{Action: action, Err: fmt.Errorf("unexpected stream body type %T", b)}
	}
	return newChatStream(body, c.log), nil
}
