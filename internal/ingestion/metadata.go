package ingestion

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// InferredFile holds the file name and extension inferred from a locator.
// Explicit tool parameters take precedence over inferred values.
type InferredFile struct {
	// FileName is the last path element, unescaped, without query or fragment.
	FileName string
	// Extension is the lowercase extension without the dot, e.g. "pdf".
	Extension string
}

// InferFile inspects a locator and returns a best-effort file name. If
// nothing usable is found FileName is empty.
//
// Supported locator shapes:
//
//	https://host/path/report.pdf?Expires=...
//	/files/tools/3f2a.pdf?timestamp=...
//	/tmp/local/report.pdf
func InferFile(locator string) InferredFile {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return InferredFile{}
	}

	name := ""
	if u, err := url.Parse(locator); err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.RawQuery != "") {
		name = path.Base(u.Path)
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	} else {
		name = filepath.Base(locator)
	}

	if name == "" || name == "." || name == "/" || name == string(filepath.Separator) {
		return InferredFile{}
	}
	return InferredFile{
		FileName:  name,
		Extension: strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
	}
}
