package bedrock

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/go-faster/errors"

	"prdigest/server/internal/agent"
)

// toolUse accumulates one streamed tool use block.
type toolUse struct {
	id    string
	name  string
	input strings.Builder
}

// stream turns Converse stream events into agent chunks. Text is emitted per
// delta; a tool call is emitted when its content block stops.
type stream struct {
	events <-chan types.ConverseStreamOutput
	errFn  func() error
	close  func() error
	tools  map[int32]*toolUse
	err    error
}

func newStream(events <-chan types.ConverseStreamOutput, errFn, closeFn func() error) *stream {
	return &stream{events: events, errFn: errFn, close: closeFn, tools: make(map[int32]*toolUse)}
}

func (s *stream) Recv() (agent.Chunk, error) {
	if s.err != nil {
		return agent.Chunk{}, s.err
	}
	for {
		ev, ok := <-s.events
		if !ok {
			s.err = io.EOF
			if err := s.errFn(); err != nil {
				s.err = errors.Wrap(err, "bedrock stream")
			}
			return agent.Chunk{}, s.err
		}

		switch v := ev.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			if start, ok := v.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
				s.tools[aws.ToInt32(v.Value.ContentBlockIndex)] = &toolUse{
					id:   aws.ToString(start.Value.ToolUseId),
					name: aws.ToString(start.Value.Name),
				}
			}
		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch d := v.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				if d.Value != "" {
					return agent.Chunk{Text: d.Value}, nil
				}
			case *types.ContentBlockDeltaMemberToolUse:
				if tu := s.tools[aws.ToInt32(v.Value.ContentBlockIndex)]; tu != nil {
					tu.input.WriteString(aws.ToString(d.Value.Input))
				}
			}
		case *types.ConverseStreamOutputMemberContentBlockStop:
			idx := aws.ToInt32(v.Value.ContentBlockIndex)
			if tu := s.tools[idx]; tu != nil {
				delete(s.tools, idx)
				return agent.Chunk{ToolCall: &agent.ToolCall{
					ID:        tu.id,
					Name:      tu.name,
					Arguments: arguments(tu.input.String()),
				}}, nil
			}
		}
	}
}

func (s *stream) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// arguments returns the accumulated tool input. Empty input means no
// arguments.
func arguments(raw string) json.RawMessage {
	if strings.TrimSpace(raw) == "" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(raw)
}
