package adbpg

import (
	"context"
	"fmt"
)

// UploadOptions enumerates every UploadDocumentAsync option.
type UploadOptions struct {
	Collection string
	FileName   string
	// FileURL is used by UploadDocumentAsync; the file variant fills it in.
	FileURL            string
	ChunkSize          *int
	DocumentLoaderName string
	Metadata           string
	ChunkOverlap       *int
	// Separators is a JSON array of strings.
	Separators       string
	DryRun           *bool
	ZhTitleEnhance   *bool
	TextSplitterName string
	VLEnhance        *bool
	SplitterModel    string
}

// uploadForm validates opts and builds the request fields.
func (c *Client) uploadForm(opts UploadOptions) (form, error) {
	if opts.Collection == "" {
		return nil, invalidArgf("collection is required")
	}
	separators, err := ParseStringArray("separators", opts.Separators)
	if err != nil {
		return nil, err
	}

	f := c.namespaceForm()
	f.set("Collection", opts.Collection)
	f.set("FileName", opts.FileName)
	f.set("ChunkSize", opts.ChunkSize)
	f.set("DocumentLoaderName", opts.DocumentLoaderName)
	f.set("Metadata", opts.Metadata)
	f.set("ChunkOverlap", opts.ChunkOverlap)
	f.set("Separators", separators)
	f.set("DryRun", opts.DryRun)
	f.set("ZhTitleEnhance", opts.ZhTitleEnhance)
	f.set("TextSplitterName", opts.TextSplitterName)
	f.set("VlEnhance", opts.VLEnhance)
	f.set("SplitterModel", opts.SplitterModel)
	return f, nil
}

// UploadDocumentAsync submits a document by URL. The response carries JobId.
func (c *Client) UploadDocumentAsync(ctx context.Context, opts UploadOptions) (*Response, error) {
	f, err := c.uploadForm(opts)
	if err != nil {
		return nil, err
	}
	f.set("FileUrl", opts.FileURL)
	return c.call(ctx, "UploadDocumentAsync", f)
}

// UploadDocumentAsyncFile submits a local file. The file is staged in the
// service's upload bucket first, then submitted by its staged URL.
func (c *Client) UploadDocumentAsyncFile(ctx context.Context, opts UploadOptions, path string) (*Response, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	f, err := c.uploadForm(opts)
	if err != nil {
		return nil, err
	}
	url, err := c.stageFile(ctx, path, opts.FileName)
	if err != nil {
		return nil, err
	}
	f.set("FileUrl", url)
	return c.call(ctx, "UploadDocumentAsync", f)
}

// GetUploadDocumentJob reads the state of an upload job.
func (c *Client) GetUploadDocumentJob(ctx context.Context, collection, jobID string) (*Response, error) {
	if jobID == "" {
		return nil, invalidArgf("job id is required")
	}
	f := c.namespaceForm()
	f.set("Collection", collection)
	f.set("JobId", jobID)
	return c.call(ctx, "GetUploadDocumentJob", f)
}

// DeleteDocument removes a document and its chunks from a collection.
func (c *Client) DeleteDocument(ctx context.Context, collection, fileName string) (*Response, error) {
	if fileName == "" {
		return nil, invalidArgf("file name is required")
	}
	f := c.namespaceForm()
	f.set("Collection", collection)
	f.set("FileName", fileName)
	return c.call(ctx, "DeleteDocument", f)
}

// UpsertOptions enumerates every UpsertChunks option.
type UpsertOptions struct {
	Collection string
	FileName   string
	// TextChunks is a JSON array of {Content, Metadata, Filter} objects.
	TextChunks            string
	ShouldReplaceFile     *bool
	AllowInsertWithFilter *bool
}

// UpsertChunks writes pre-split chunks into a collection.
func (c *Client) UpsertChunks(ctx context.Context, opts UpsertOptions) (*Response, error) {
	chunks, err := ParseTextChunks(opts.TextChunks)
	if err != nil {
		return nil, err
	}
	f := c.namespaceForm()
	f.set("Collection", opts.Collection)
	f.set("FileName", opts.FileName)
	f.set("TextChunks", chunks)
	f.set("ShouldReplaceFile", opts.ShouldReplaceFile)
	f.set("AllowInsertWithFilter", opts.AllowInsertWithFilter)
	return c.call(ctx, "UpsertChunks", f)
}

// JobID extracts JobId from an upload response.
func JobID(resp *Response) (string, error) {
	id := resp.Get("JobId").String()
	if id == "" {
		return "", fmt.Errorf("adbpg: no JobId in upload response: %s", resp.JSON())
	}
	return id, nil
}
