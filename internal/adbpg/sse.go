package adbpg

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/54b3r/adbpg-go/internal/stream"
)

// maxEventSize bounds a single server-sent event payload.
const maxEventSize = 4 << 20

// ChatStream decodes a server-sent event body into chunks on demand.
// It implements stream.ChunkSource and is not safe for concurrent use.
type ChatStream struct {
	body    io.Reader
	scanner *bufio.Scanner
	log     *slog.Logger
	chunks  int
	done    bool
}

func newChatStream(body io.Reader, log *slog.Logger) *ChatStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &ChatStream{body: body, scanner: sc, log: log}
}

// NewChatStream wraps an event stream body. Used by callers that receive the
// body from elsewhere, and by tests.
func NewChatStream(body io.Reader, log *slog.Logger) *ChatStream {
	if log == nil {
		log = slog.Default()
	}
	return newChatStream(body, log)
}

// Recv returns the next chunk, or io.EOF once the stream ends or sends
// [DONE].
func (s *ChatStream) Recv() (stream.Chunk, error) {
	if s.done {
		return stream.Chunk{}, io.EOF
	}
	for {
		data, err := s.nextEvent()
		if errors.Is(err, io.EOF) {
			s.finish()
			return stream.Chunk{}, io.EOF
		}
		if err != nil {
			s.done = true
			return stream.Chunk{}, fmt.Errorf("adbpg: read chat stream: %w", err)
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			s.finish()
			return stream.Chunk{}, io.EOF
		}
		c, err := stream.DecodeChunk(data)
		if err != nil {
			s.done = true
			return stream.Chunk{}, fmt.Errorf("adbpg: decode chat stream: %w", err)
		}
		s.chunks++
		return c, nil
	}
}

// nextEvent returns the data of the next non-empty event. Multi-line data
// fields are joined with newlines. A bare JSON line is accepted as an event
// so non-SSE bodies still decode.
func (s *ChatStream) nextEvent() ([]byte, error) {
	var data [][]byte
	for s.scanner.Scan() {
		line := bytes.TrimRight(s.scanner.Bytes(), "\r")
		switch {
		case len(line) == 0:
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
		case bytes.HasPrefix(line, []byte("data:")):
			data = append(data, bytes.TrimSpace(bytes.Clone(line[len("data:"):])))
		case line[0] == '{' && len(data) == 0:
			return bytes.Clone(line), nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return bytes.Join(data, []byte("\n")), nil
	}
	return nil, io.EOF
}

func (s *ChatStream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.log.Info("adbpg: chat stream completed", slog.Int("chunks", s.chunks))
}

// Close releases the underlying body.
func (s *ChatStream) Close() error {
	s.done = true
	if c, ok := s.body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
