package chat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"prdigest/server/internal/agent"
)

// StreamHeader marks a response as a UI message stream.
const StreamHeader = "x-vercel-ai-ui-message-stream"

// streamWriter writes the UI message stream protocol: one SSE data frame
// per chunk, flushed immediately. It implements agent.Sink.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	messageID string
	textID    string // open text part, "" when none
	textParts int
}

func newStreamWriter(w http.ResponseWriter, flusher http.Flusher) *streamWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(StreamHeader, "v1")
	w.WriteHeader(http.StatusOK)
	return &streamWriter{w: w, flusher: flusher, messageID: "msg-" + uuid.NewString()}
}

func (s *streamWriter) frame(typ string, fields func(e *jx.Encoder)) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("type")
	e.Str(typ)
	if fields != nil {
		fields(&e)
	}
	e.ObjEnd()
	return s.data(e.Bytes())
}

func (s *streamWriter) data(payload []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *streamWriter) Start() error {
	return s.frame("start", func(e *jx.Encoder) {
		e.FieldStart("messageId")
		e.Str(s.messageID)
	})
}

func (s *streamWriter) StepStart() error {
	return s.frame("start-step", nil)
}

func (s *streamWriter) TextDelta(text string) error {
	if s.textID == "" {
		s.textParts++
		s.textID = fmt.Sprintf("text-%d", s.textParts)
		if err := s.frame("text-start", s.idField); err != nil {
			return err
		}
	}
	return s.frame("text-delta", func(e *jx.Encoder) {
		s.idField(e)
		e.FieldStart("delta")
		e.Str(text)
	})
}

func (s *streamWriter) idField(e *jx.Encoder) {
	e.FieldStart("id")
	e.Str(s.textID)
}

// endText closes the open text part, if any.
func (s *streamWriter) endText() error {
	if s.textID == "" {
		return nil
	}
	err := s.frame("text-end", s.idField)
	s.textID = ""
	return err
}

func (s *streamWriter) ToolInput(call agent.ToolCall) error {
	if err := s.endText(); err != nil {
		return err
	}
	return s.frame("tool-input-available", func(e *jx.Encoder) {
		e.FieldStart("toolCallId")
		e.Str(call.ID)
		e.FieldStart("toolName")
		e.Str(call.Name)
		e.FieldStart("input")
		rawOrString(e, call.Arguments, "{}")
	})
}

func (s *streamWriter) ToolOutput(res agent.ToolResult) error {
	if res.IsError {
		return s.frame("tool-output-error", func(e *jx.Encoder) {
			e.FieldStart("toolCallId")
			e.Str(res.CallID)
			e.FieldStart("errorText")
			e.Str(res.Content)
		})
	}
	return s.frame("tool-output-available", func(e *jx.Encoder) {
		e.FieldStart("toolCallId")
		e.Str(res.CallID)
		e.FieldStart("output")
		rawOrString(e, []byte(res.Content), `""`)
	})
}

func (s *streamWriter) StepFinish() error {
	if err := s.endText(); err != nil {
		return err
	}
	return s.frame("finish-step", nil)
}

// Finish ends a successful stream.
func (s *streamWriter) Finish() error {
	if err := s.endText(); err != nil {
		return err
	}
	if err := s.frame("finish", nil); err != nil {
		return err
	}
	return s.done()
}

// Fail ends the stream with an error frame.
func (s *streamWriter) Fail(msg string) error {
	if err := s.endText(); err != nil {
		return err
	}
	if err := s.frame("error", func(e *jx.Encoder) {
		e.FieldStart("errorText")
		e.Str(msg)
	}); err != nil {
		return err
	}
	return s.done()
}

func (s *streamWriter) done() error {
	return s.data([]byte("[DONE]"))
}

// rawOrString writes b verbatim when it is valid JSON, else as a string.
func rawOrString(e *jx.Encoder, b []byte, empty string) {
	switch {
	case len(b) == 0:
		e.Raw([]byte(empty))
	case json.Valid(b):
		e.Raw(b)
	default:
		e.Str(string(b))
	}
}

var _ agent.Sink = (*streamWriter)(nil)
