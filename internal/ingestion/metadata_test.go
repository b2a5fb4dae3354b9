package ingestion

import "testing"

func TestInferFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		locator  string
		fileName string
		ext      string
	}{
		{
			name:     "signed object URL",
			locator:  "https://bucket.oss-cn-hangzhou.aliyuncs.com/docs/Report.PDF?Expires=1&Signature=x",
			fileName: "Report.PDF",
			ext:      "pdf",
		},
		{
			name:     "escaped name",
			locator:  "https://example.com/a/%E6%96%87%E6%A1%A3.docx",
			fileName: "文档.docx",
			ext:      "docx",
		},
		{
			name:     "hosted relative path",
			locator:  "/files/tools/3f2a.md?timestamp=1&sign=abc",
			fileName: "3f2a.md",
			ext:      "md",
		},
		{
			name:     "local path",
			locator:  "/tmp/upload/notes.txt",
			fileName: "notes.txt",
			ext:      "txt",
		},
		{
			name:     "no extension",
			locator:  "https://example.com/download/readme",
			fileName: "readme",
			ext:      "",
		},
		{
			name:     "bare host",
			locator:  "https://example.com/",
			fileName: "",
			ext:      "",
		},
		{
			name:     "filesystem root",
			locator:  "/",
			fileName: "",
			ext:      "",
		},
		{
			name:     "current directory",
			locator:  ".",
			fileName: "",
			ext:      "",
		},
		{
			name:     "empty string",
			locator:  "   ",
			fileName: "",
			ext:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := InferFile(tt.locator)

			if got.FileName != tt.fileName {
				t.Errorf("FileName: got %q, want %q", got.FileName, tt.fileName)
			}
			if got.Extension != tt.ext {
				t.Errorf("Extension: got %q, want %q", got.Extension, tt.ext)
			}
		})
	}
}
