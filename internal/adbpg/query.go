package adbpg

import "context"

// TextQueryOptions enumerates every QueryContent option for text queries.
type TextQueryOptions struct {
	Collection           string
	Query                string
	TopK                 *int
	UseFullTextRetrieval *bool
	RerankFactor         *float64
	GraphEnhance         *bool
	Filter               string
	// RecallWindow is "before,after"; it must hold exactly two integers.
	RecallWindow          string
	Metrics               string
	IncludeVector         *bool
	HybridSearch          string
	HybridSearchK         *int
	HybridSearchAlpha     *float64
	IncludeMetadataFields string
	IncludeFileURL        *bool
	URLExpiration         *int
}

// QueryContentText runs a text retrieval. Matches are under
// "Matches.MatchList".
func (c *Client) QueryContentText(ctx context.Context, opts TextQueryOptions) (*Response, error) {
	window, err := ParseRecallWindow(opts.RecallWindow)
	if err != nil {
		return nil, err
	}

	f := c.namespaceForm()
	f.set("Collection", opts.Collection)
	f.set("Content", opts.Query)
	f.set("TopK", opts.TopK)
	f.set("UseFullTextRetrieval", opts.UseFullTextRetrieval)
	f.set("RerankFactor", opts.RerankFactor)
	f.set("GraphEnhance", opts.GraphEnhance)
	f.set("Filter", opts.Filter)
	f.set("RecallWindow", window)
	f.set("Metrics", opts.Metrics)
	f.set("IncludeVector", opts.IncludeVector)
	f.set("HybridSearch", opts.HybridSearch)
	f.set("HybridSearchArgs", HybridSearchArgs(opts.HybridSearch, opts.HybridSearchK, opts.HybridSearchAlpha))
	f.set("IncludeMetadataFields", opts.IncludeMetadataFields)
	f.set("IncludeFileUrl", opts.IncludeFileURL)
	f.set("UrlExpiration", opts.URLExpiration)
	return c.call(ctx, "QueryContent", f)
}

// ImageQueryOptions enumerates every QueryContent option for image queries.
type ImageQueryOptions struct {
	Collection string
	FileName   string
	// FileURL is used by QueryContentImage; the file variant fills it in.
	FileURL               string
	TopK                  *int
	RerankFactor          *float64
	Filter                string
	RecallWindow          string
	Metrics               string
	IncludeVector         *bool
	IncludeMetadataFields string
	IncludeFileURL        *bool
	URLExpiration         *int
}

func (c *Client) imageForm(opts ImageQueryOptions) (form, error) {
	window, err := ParseRecallWindow(opts.RecallWindow)
	if err != nil {
		return nil, err
	}
	f := c.namespaceForm()
	f.set("Collection", opts.Collection)
	f.set("FileName", opts.FileName)
	f.set("TopK", opts.TopK)
	f.set("RerankFactor", opts.RerankFactor)
	f.set("Filter", opts.Filter)
	f.set("RecallWindow", window)
	f.set("Metrics", opts.Metrics)
	f.set("IncludeVector", opts.IncludeVector)
	f.set("IncludeMetadataFields", opts.IncludeMetadataFields)
	f.set("IncludeFileUrl", opts.IncludeFileURL)
	f.set("UrlExpiration", opts.URLExpiration)
	return f, nil
}

// QueryContentImage runs an image retrieval against a remote image URL.
func (c *Client) QueryContentImage(ctx context.Context, opts ImageQueryOptions) (*Response, error) {
	f, err := c.imageForm(opts)
	if err != nil {
		return nil, err
	}
	f.set("FileUrl", opts.FileURL)
	return c.call(ctx, "QueryContent", f)
}

// QueryContentImageFile runs an image retrieval against a local file.
func (c *Client) QueryContentImageFile(ctx context.Context, opts ImageQueryOptions, path string) (*Response, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	f, err := c.imageForm(opts)
	if err != nil {
		return nil, err
	}
	url, err := c.stageFile(ctx, path, opts.FileName)
	if err != nil {
		return nil, err
	}
	f.set("FileUrl", url)
	return c.call(ctx, "QueryContent", f)
}
