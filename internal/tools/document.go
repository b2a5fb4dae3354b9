package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/ingestion"
)

// splitterParams are the chunking options shared by upload and parse.
func splitterParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"filename":             str("File name stored with the document. Inferred from fileurl when empty."),
		"fileurl":              strReq("Local path, host file reference or public URL of the document."),
		"chunksize":            integer("Maximum characters per chunk."),
		"chunk_overlap":        integer("Characters shared by adjacent chunks."),
		"document_loader_name": str("Loader used to read the document, e.g. ADBPGLoader."),
		"separators":           str(`JSON array of split separators, e.g. ["\n\n", "\n"].`),
		"zh_title_enhance":     boolean("Enhance Chinese titles while splitting."),
		"text_splitter_name":   str("Splitter, e.g. ChineseRecursiveTextSplitter."),
		"vl_enhance":           boolean("Use a vision-language model for images in the document."),
		"splitter_model":       str("Model used by model-based splitters."),
	}
}

// SplitterArgs are the decoded chunking arguments of upload and parse.
type SplitterArgs struct {
	FileName           string `mapstructure:"filename"`
	FileURL            string `mapstructure:"fileurl"`
	ChunkSize          *int   `mapstructure:"chunksize"`
	ChunkOverlap       *int   `mapstructure:"chunk_overlap"`
	DocumentLoaderName string `mapstructure:"document_loader_name"`
	Separators         string `mapstructure:"separators"`
	ZhTitleEnhance     *bool  `mapstructure:"zh_title_enhance"`
	TextSplitterName   string `mapstructure:"text_splitter_name"`
	VLEnhance          *bool  `mapstructure:"vl_enhance"`
	SplitterModel      string `mapstructure:"splitter_model"`
}

// UploadDocumentTool submits a document for asynchronous ingestion.
type UploadDocumentTool struct {
	meta
	uploader *ingestion.Uploader
	log      *slog.Logger
}

type uploadDocumentInput struct {
	SplitterArgs `mapstructure:",squash"`

	Knowledgebase string `mapstructure:"knowledgebase"`
	Metadata      string `mapstructure:"metadata"`
	DryRun        *bool  `mapstructure:"dry_run"`
}

// NewUploadDocumentTool constructs an UploadDocumentTool.
func NewUploadDocumentTool(uploader *ingestion.Uploader, log *slog.Logger) *UploadDocumentTool {
	params := splitterParams()
	params["knowledgebase"] = strReq("Name of the document collection.")
	params["metadata"] = str("JSON object of metadata stored with every chunk.")
	params["dry_run"] = boolean("Only split the document; store nothing.")
	return &UploadDocumentTool{
		meta: meta{
			name:   "upload_document_async",
			desc:   "Uploads a document into a knowledge base. Returns a JobId to check with get_upload_document_job.",
			params: params,
		},
		uploader: uploader,
		log:      log,
	}
}

// Run uploads the document.
func (t *UploadDocumentTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in uploadDocumentInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "knowledgebase", in.Knowledgebase, "fileurl", in.FileURL); err != nil {
		return nil, err
	}
	t.log.Info("tools: upload_document_async invoked",
		slog.String("knowledgebase", in.Knowledgebase),
		slog.String("filename", in.FileName),
	)

	resp, err := t.uploader.Upload(ctx, in.FileURL, adbpg.UploadOptions{
		Collection:         in.Knowledgebase,
		FileName:           in.FileName,
		ChunkSize:          in.ChunkSize,
		DocumentLoaderName: in.DocumentLoaderName,
		Metadata:           in.Metadata,
		ChunkOverlap:       in.ChunkOverlap,
		Separators:         in.Separators,
		DryRun:             in.DryRun,
		ZhTitleEnhance:     in.ZhTitleEnhance,
		TextSplitterName:   in.TextSplitterName,
		VLEnhance:          in.VLEnhance,
		SplitterModel:      in.SplitterModel,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *UploadDocumentTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}

// GetUploadJobTool reads an upload job, optionally waiting for it to end.
type GetUploadJobTool struct {
	meta
	uploader *ingestion.Uploader
	log      *slog.Logger
}

type getUploadJobInput struct {
	Knowledgebase   string `mapstructure:"knowledgebase"`
	JobID           string `mapstructure:"jobid"`
	WaitUntilFinish bool   `mapstructure:"wait_until_finish"`
}

// NewGetUploadJobTool constructs a GetUploadJobTool.
func NewGetUploadJobTool(uploader *ingestion.Uploader, log *slog.Logger) *GetUploadJobTool {
	return &GetUploadJobTool{
		meta: meta{
			name: "get_upload_document_job",
			desc: "Returns the status of a document upload job. With wait_until_finish it polls every 3 seconds " +
				"until the job completes or reports an error, for at most 30 minutes.",
			params: map[string]*schema.ParameterInfo{
				"knowledgebase":     strReq("Name of the document collection."),
				"jobid":             strReq("JobId returned by upload_document_async."),
				"wait_until_finish": boolean("Block until the job completes or reports an error."),
			},
		},
		uploader: uploader,
		log:      log,
	}
}

// Run reads or waits on the job.
func (t *GetUploadJobTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in getUploadJobInput
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "knowledgebase", in.Knowledgebase, "jobid", in.JobID); err != nil {
		return nil, err
	}
	t.log.Info("tools: get_upload_document_job invoked",
		slog.String("jobid", in.JobID),
		slog.Bool("wait_until_finish", in.WaitUntilFinish),
	)

	var (
		resp *adbpg.Response
		err  error
	)
	if in.WaitUntilFinish {
		resp, err = t.uploader.Wait(ctx, in.Knowledgebase, in.JobID)
	} else {
		resp, err = t.uploader.Status(ctx, in.Knowledgebase, in.JobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return responseResult(resp), nil
}

// InvokableRun implements tool.InvokableTool.
func (t *GetUploadJobTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}

// DocParserTool splits a document with the service without storing it and
// returns the chunks.
type DocParserTool struct {
	meta
	parser *ingestion.Parser
	log    *slog.Logger
}

// NewDocParserTool constructs a DocParserTool.
func NewDocParserTool(parser *ingestion.Parser, log *slog.Logger) *DocParserTool {
	return &DocParserTool{
		meta: meta{
			name: "adbpg_doc_parser",
			desc: "Parses and splits a document with AnalyticDB's document pipeline without storing it. " +
				"Returns one string per chunk: the chunk text followed by its metadata as JSON.",
			params: splitterParams(),
		},
		parser: parser,
		log:    log,
	}
}

// Run parses the document. The result variable holds the chunk list; the
// text joins the chunks with newlines.
func (t *DocParserTool) Run(ctx context.Context, argumentsInJSON string) (*Result, error) {
	var in SplitterArgs
	if err := decodeArgs(t.name, argumentsInJSON, &in); err != nil {
		return nil, err
	}
	if err := require(t.name, "fileurl", in.FileURL); err != nil {
		return nil, err
	}
	t.log.Info("tools: adbpg_doc_parser invoked", slog.String("filename", in.FileName))

	chunks, err := t.parser.Parse(ctx, in.FileURL, ingestion.ParseOptions{
		FileName:           in.FileName,
		ChunkSize:          in.ChunkSize,
		ChunkOverlap:       in.ChunkOverlap,
		DocumentLoaderName: in.DocumentLoaderName,
		Separators:         in.Separators,
		ZhTitleEnhance:     in.ZhTitleEnhance,
		TextSplitterName:   in.TextSplitterName,
		VLEnhance:          in.VLEnhance,
		SplitterModel:      in.SplitterModel,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	if chunks == nil {
		chunks = []string{}
	}
	return &Result{
		Variables: map[string]any{"result": chunks},
		Text:      strings.Join(chunks, "\n"),
	}, nil
}

// InvokableRun implements tool.InvokableTool.
func (t *DocParserTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return invoke(ctx, t, argumentsInJSON)
}
