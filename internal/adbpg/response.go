package adbpg

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Response is the decoded body of a remote call. The service returns nested
// maps; callers read fields by gjson path (e.g. "Matches.MatchList").
type Response struct {
	body map[string]any
	raw  []byte
}

// newResponse wraps a decoded body map.
func newResponse(body map[string]any) *Response {
	if body == nil {
		body = map[string]any{}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte("{}")
	}
	return &Response{body: body, raw: raw}
}

// NewResponseFromJSON builds a Response from raw JSON. Used by fakes and
// by callers that persist responses.
func NewResponseFromJSON(data []byte) (*Response, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	return &Response{body: body, raw: data}, nil
}

// Map returns the body as a plain mapping.
func (r *Response) Map() map[string]any { return r.body }

// JSON returns the body encoded as JSON.
func (r *Response) JSON() []byte { return r.raw }

// Get looks up a gjson path in the body.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// RequestID returns the service request id, if present.
func (r *Response) RequestID() string {
	return r.Get("RequestId").String()
}

// JobStatus is the observable state of an upload/parse job.
type JobStatus struct {
	// Completed is true once the service stops working on the job.
	Completed bool
	// Status is the service's free-form status label.
	Status string
	// Error is non-empty when the job failed.
	Error string
	// ChunkFileURL is present on successful dry runs with chunking.
	ChunkFileURL string
}

// Job extracts the job status from a GetUploadDocumentJob response.
func (r *Response) Job() JobStatus {
	return JobStatus{
		Completed:    r.Get("Job.Completed").Bool(),
		Status:       r.Get("Job.Status").String(),
		Error:        r.Get("Job.Error").String(),
		ChunkFileURL: r.Get("ChunkResult.ChunkFileUrl").String(),
	}
}
