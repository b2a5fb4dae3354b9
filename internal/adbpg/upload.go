package adbpg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// checkFile verifies a local file exists before it is opened.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: local file not found: %s", ErrFileNotFound, path)
	}
	return nil
}

// uploadGrant is a short-lived object storage POST policy issued by
// AuthorizeFileUpload.
type uploadGrant struct {
	AccessKeyID   string
	Bucket        string
	Endpoint      string
	ObjectKey     string
	EncodedPolicy string
	Signature     string
}

// authorizeUpload requests an upload grant for the gpdb product.
func (c *Client) authorizeUpload(ctx context.Context) (*uploadGrant, error) {
	f := form{}
	f.set("Product", "gpdb")
	f.set("RegionId", c.creds.RegionID)

	resp, err := c.invoke(ctx, c.openPlatform, "AuthorizeFileUpload", openPlatformVersion, f)
	if err != nil {
		return nil, err
	}

	g := &uploadGrant{
		AccessKeyID:   resp.Get("AccessKeyId").String(),
		Bucket:        resp.Get("Bucket").String(),
		Endpoint:      resp.Get("Endpoint").String(),
		ObjectKey:     resp.Get("ObjectKey").String(),
		EncodedPolicy: resp.Get("EncodedPolicy").String(),
		Signature:     resp.Get("Signature").String(),
	}
	if g.Bucket == "" || g.Endpoint == "" || g.ObjectKey == "" {
		return nil, fmt.Errorf("adbpg: incomplete upload grant: %s", resp.JSON())
	}
	return g, nil
}

// stageFile posts the file at path to the granted bucket and returns the
// URL the service reads it back from.
func (c *Client) stageFile(ctx context.Context, path, fileName string) (string, error) {
	grant, err := c.authorizeUpload(ctx)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	defer file.Close()

	if fileName == "" {
		fileName = filepath.Base(path)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, grant, fileName, file))
	}()

	scheme := "https"
	if strings.EqualFold(c.creds.Protocol, "http") {
		scheme = "http"
	}
	postURL := fmt.Sprintf("%s://%s.%s", scheme, grant.Bucket, grant.Endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, pr)
	if err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("adbpg: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RemoteError{Action: "PostObject", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &RemoteError{
			Action:     "PostObject",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	staged := fmt.Sprintf("http://%s.%s/%s", grant.Bucket, grant.Endpoint, grant.ObjectKey)
	c.log.Info("adbpg: staged local file",
		slog.String("file", fileName),
		slog.String("object_key", grant.ObjectKey),
	)
	return staged, nil
}

// writeUploadForm writes the POST policy fields followed by the file part.
// The file part must come last.
func writeUploadForm(mw *multipart.Writer, g *uploadGrant, fileName string, r io.Reader) error {
	fields := []struct{ k, v string }{
		{"OSSAccessKeyId", g.AccessKeyID},
		{"policy", g.EncodedPolicy},
		{"Signature", g.Signature},
		{"key", g.ObjectKey},
		{"success_action_status", "201"},
	}
	for _, fl := range fields {
		if err := mw.WriteField(fl.k, fl.v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}
