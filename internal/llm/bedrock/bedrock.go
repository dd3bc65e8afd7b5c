// Package bedrock implements agent.Backend on the Amazon Bedrock Converse
// streaming API.
package bedrock

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"prdigest/server/internal/agent"
)

const (
	DefaultModel  = "us.anthropic.claude-haiku-4-5-20251001-v1:0"
	DefaultRegion = "us-west-2"
)

// Config configures the backend.
type Config struct {
	Region string
	// APIKey is a Bedrock API key sent as a bearer token. When empty
	// requests are signed with the default AWS credential chain.
	APIKey string
	// Model is used for requests that do not name one.
	Model string
	// Endpoint overrides the Bedrock runtime endpoint (VPC endpoints, tests).
	Endpoint string
	Logger   *zap.Logger
}

type converseStreamAPI interface {
	ConverseStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Backend generates text with Bedrock.
type Backend struct {
	client converseStreamAPI
	model  string
	logger *zap.Logger
}

// New loads the AWS configuration and creates a Backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	var opts []func(*bedrockruntime.Options)
	if cfg.APIKey != "" {
		opts = append(opts, withAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *bedrockruntime.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	cfg.Logger.Debug("bedrock client", zap.String("region", cfg.Region), zap.Bool("api_key", cfg.APIKey != ""))
	return &Backend{
		client: bedrockruntime.NewFromConfig(awsCfg, opts...),
		model:  cfg.Model,
		logger: cfg.Logger.Named("bedrock"),
	}, nil
}

// Generate starts one streamed Converse call.
func (b *Backend) Generate(ctx context.Context, req agent.Request) (agent.Stream, error) {
	in, err := b.input(req)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("converse stream",
		zap.String("model", aws.ToString(in.ModelId)),
		zap.Int("messages", len(in.Messages)),
		zap.Int("tools", len(req.Tools)),
	)
	out, err := b.client.ConverseStream(ctx, in)
	if err != nil {
		return nil, errors.Wrap(err, "converse stream")
	}
	es := out.GetStream()
	return newStream(es.Events(), es.Err, es.Close), nil
}

func (b *Backend) input(req agent.Request) (*bedrockruntime.ConverseStreamInput, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}
	msgs, err := toMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	in := &bedrockruntime.ConverseStreamInput{
		ModelId:    aws.String(model),
		Messages:   msgs,
		ToolConfig: toolConfig(req.Tools),
	}
	if req.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	return in, nil
}

func toolConfig(specs []agent.ToolSpec) *types.ToolConfiguration {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]types.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(s.Name),
			Description: aws.String(s.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(s.Schema)},
		}})
	}
	return &types.ToolConfiguration{Tools: tools}
}

// toMessages converts a conversation into Converse messages. Tool results
// travel in user messages, and consecutive messages of the same role are
// merged because Converse requires alternating roles. System messages in
// the conversation are sent as user text.
func toMessages(msgs []agent.Message) ([]types.Message, error) {
	var out []types.Message
	add := func(role types.ConversationRole, blocks ...types.ContentBlock) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}

	for _, m := range msgs {
		switch m.Role {
		case agent.RoleUser, agent.RoleSystem:
			if m.Text != "" {
				add(types.ConversationRoleUser, &types.ContentBlockMemberText{Value: m.Text})
			}
		case agent.RoleAssistant:
			var blocks []types.ContentBlock
			if m.Text != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Text})
			}
			for _, c := range m.ToolCalls {
				input := map[string]any{}
				if len(c.Arguments) > 0 {
					if err := json.Unmarshal(c.Arguments, &input); err != nil {
						// the call already failed on our side; keep the transcript valid
						input = map[string]any{}
					}
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(c.ID),
					Name:      aws.String(c.Name),
					Input:     document.NewLazyDocument(input),
				}})
			}
			add(types.ConversationRoleAssistant, blocks...)
		case agent.RoleTool:
			if m.ToolResult == nil {
				return nil, errors.New("tool message without result")
			}
			r := m.ToolResult
			block := types.ToolResultBlock{
				ToolUseId: aws.String(r.CallID),
				Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: r.Content}},
			}
			if r.IsError {
				block.Status = types.ToolResultStatusError
			}
			add(types.ConversationRoleUser, &types.ContentBlockMemberToolResult{Value: block})
		default:
			return nil, errors.Errorf("unsupported role %q", m.Role)
		}
	}
	return out, nil
}
