package adbpg

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strconv"
	"strings"

	openapiutil "github.com/alibabacloud-go/openapi-util/service"
	"github.com/alibabacloud-go/tea/tea"
)

// NormalizeString trims s and reports absence for blank input.
func NormalizeString(s string) (string, bool) {
	t := strings.TrimSpace(s)
	return t, t != ""
}

// NormalizeList treats nil, empty and [""] as absent.
func NormalizeList(v []string) []string {
	if len(v) == 0 || (len(v) == 1 && v[0] == "") {
		return nil
	}
	return v
}

// ParseRecallWindow parses "a,b" into exactly two integers.
// A blank string means absent and returns nil.
func ParseRecallWindow(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 2 {
		return nil, invalidArgf("recall_window must have exactly 2 comma-separated values, got: %d", len(parts))
	}
	out := make([]int, 2)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, invalidArgf("recall_window values must be integers, got: %s", s)
		}
		out[i] = n
	}
	return out, nil
}

// SplitList splits a comma-separated list, dropping blank items.
// Returns nil when nothing remains.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseJSONArray decodes s as a JSON array. A blank string returns nil.
// Malformed JSON or a non-array value is an invalid argument.
func ParseJSONArray(name, s string) ([]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, invalidArgf("invalid JSON format for %s: %v", name, err)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, invalidArgf("%s must be a JSON array, got: %s", name, jsonKind(v))
	}
	return arr, nil
}

// ParseStringArray is ParseJSONArray restricted to string elements.
func ParseStringArray(name, s string) ([]string, error) {
	arr, err := ParseJSONArray(name, s)
	if err != nil || arr == nil {
		return nil, err
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		str, ok := v.(string)
		if !ok {
			return nil, invalidArgf("%s items must be strings, got: %s", name, jsonKind(v))
		}
		out = append(out, str)
	}
	return out, nil
}

// TextChunk is one chunk for UpsertChunks.
type TextChunk struct {
	Content  string         `json:"Content,omitempty"`
	Metadata map[string]any `json:"Metadata,omitempty"`
	Filter   string         `json:"Filter,omitempty"`
}

// ParseTextChunks decodes a JSON array of {Content, Metadata, Filter} objects.
func ParseTextChunks(s string) ([]TextChunk, error) {
	arr, err := ParseJSONArray("text_chunks", s)
	if err != nil || arr == nil {
		return nil, err
	}
	chunks := make([]TextChunk, 0, len(arr))
	for _, v := range arr {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, invalidArgf("each chunk must be a JSON object, got: %s", jsonKind(v))
		}
		var c TextChunk
		c.Content, _ = obj["Content"].(string)
		c.Metadata, _ = obj["Metadata"].(map[string]any)
		c.Filter, _ = obj["Filter"].(string)
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// BoolToInt encodes an optional bool as 1/0.
func BoolToInt(b *bool) *int {
	if b == nil {
		return nil
	}
	v := 0
	if *b {
		v = 1
	}
	return &v
}

// HybridSearchArgs builds the hybrid search configuration. Only "RRF" with k
// and "Weight" with alpha produce arguments; anything else returns nil.
func HybridSearchArgs(method string, k *int, alpha *float64) map[string]any {
	switch {
	case method == "RRF" && k != nil:
		return map[string]any{"RRF": map[string]any{"k": *k}}
	case method == "Weight" && alpha != nil:
		return map[string]any{"Weight": map[string]any{"alpha": *alpha}}
	default:
		return nil
	}
}

// jsonKind names the JSON type of a decoded value for error messages.
func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// form collects flat RPC parameters. Absent values are skipped; complex
// values are JSON-encoded into a single field.
type form map[string]any

func (f form) set(key string, v any) {
	if s, ok := encodeParam(v); ok {
		f[key] = s
	}
}

// logAttrs renders f as sorted string attributes. Credential keys are
// redacted by the logging handler, not here.
func (f form) logAttrs() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.String(k, fmt.Sprint(f[k])))
	}
	return out
}

// encodeParam renders v as a form value, reporting false for absent values.
func encodeParam(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case *string:
		if x == nil || *x == "" {
			return "", false
		}
		return *x, true
	case int:
		return strconv.Itoa(x), true
	case *int:
		if x == nil {
			return "", false
		}
		return strconv.Itoa(*x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case *float64:
		if x == nil {
			return "", false
		}
		return strconv.FormatFloat(*x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case *bool:
		if x == nil {
			return "", false
		}
		return strconv.FormatBool(*x), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer:
		if rv.IsNil() || ((rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.Len() == 0) {
			return "", false
		}
	}
	// Same encoding the generated SDKs use for json-style shrink fields.
	enc := openapiutil.ArrayToStringWithSpecifiedStyle(v, nil, tea.String("json"))
	if enc == nil {
		return "", false
	}
	return *enc, true
}
