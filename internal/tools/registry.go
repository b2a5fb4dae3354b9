package tools

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/54b3r/adbpg-go/internal/files"
	"github.com/54b3r/adbpg-go/internal/ingestion"
)

// All builds every tool over d.
func All(d Deps) ([]Tool, error) {
	if d.Client == nil {
		return nil, fmt.Errorf("tools: client must not be nil")
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	resolver := d.Resolver
	if resolver == nil {
		resolver = files.NewResolver(log)
	}

	uploader, err := ingestion.NewUploader(d.Client, resolver, d.Ingest, log)
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	parser, err := ingestion.NewParser(d.Client, resolver, d.Ingest, log)
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}

	return []Tool{
		NewListKnowledgeBasesTool(d.Client, log),
		NewCreateKnowledgeBaseTool(d.Client, log),
		NewUploadDocumentTool(uploader, log),
		NewGetUploadJobTool(uploader, log),
		NewDeleteDocumentTool(d.Client, log),
		NewQueryContentTextTool(d.Client, log),
		NewQueryContentImageTool(d.Client, resolver, log),
		NewUpsertChunksTool(d.Client, log),
		NewTextEmbeddingTool(d.Client, log),
		NewRerankTool(d.Client, log),
		NewChatWithKnowledgeBaseTool(d.Client, log),
		NewDocParserTool(parser, log),
	}, nil
}

// Registry looks tools up by name.
type Registry struct {
	byName map[string]Tool
}

// NewRegistry indexes ts by name. Duplicate names are an error.
func NewRegistry(ts []Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if _, dup := r.byName[t.Name()]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", t.Name())
		}
		r.byName[t.Name()] = t
	}
	return r, nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the tool names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tools returns every tool sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.byName))
	for _, n := range r.Names() {
		out = append(out, r.byName[n])
	}
	return out
}
