package github

import (
	"context"
	"fmt"

	"prdigest/server/internal/modules"
	"prdigest/server/internal/pullrequests"
	"prdigest/server/pkg/githubapi"
)

// Tool names as exposed to the generation backend.
const (
	ToolFetchRecentMerged = "fetch-recent-merged-prs"
	ToolFetchDetail       = "fetch-pr-details"
)

// GitHubModule exposes the pull request queries as tools.
type GitHubModule struct {
	prs *pullrequests.Adapter
}

// New creates a GitHubModule backed by prs.
func New(prs *pullrequests.Adapter) *GitHubModule {
	return &GitHubModule{prs: prs}
}

// Module descriptions
var moduleDescriptions = modules.LocalizedText{
	"en-US": "GitHub pull requests - recently merged PRs and PR details",
	"ja-JP": "GitHub プルリクエスト - 最近マージされたPRとPRの詳細",
}

// Name returns the module name
func (m *GitHubModule) Name() string {
	return "github"
}

// Descriptions returns the module descriptions in all languages
func (m *GitHubModule) Descriptions() modules.LocalizedText {
	return moduleDescriptions
}

// Description returns the module description (English)
func (m *GitHubModule) Description() string {
	return moduleDescriptions.English()
}

// APIVersion returns the GitHub API version
func (m *GitHubModule) APIVersion() string {
	return githubapi.APIVersion
}

// Tools returns all available tools
func (m *GitHubModule) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name. Params are expected to have passed
// modules.ValidateParams, so defaults are already filled in.
func (m *GitHubModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (*modules.ToolOutput, error) {
	handler, ok := toolHandlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, m.prs, params)
}

// ToCompact converts JSON result to compact Markdown
func (m *GitHubModule) ToCompact(toolName string, jsonResult string) string {
	return formatCompact(toolName, jsonResult)
}

// =============================================================================
// Tool Definitions
// =============================================================================

var formatProperty = modules.Property{
	Type:        "string",
	Description: "Output format: json (default) or markdown",
	Default:     "json",
}

var toolDefinitions = []modules.Tool{
	{
		ID:   "github:" + ToolFetchRecentMerged,
		Name: ToolFetchRecentMerged,
		Descriptions: modules.LocalizedText{
			"en-US": "Fetch pull requests merged into a GitHub repository within the last N hours, most recently updated first. Pass date (YYYY-MM-DD) instead to select PRs merged on that calendar day.",
			"ja-JP": "GitHubリポジトリで過去N時間以内にマージされたPRを取得します。date (YYYY-MM-DD) を指定するとその日にマージされたPRを取得します。",
		},
		Description: "Fetch pull requests merged into a GitHub repository within the last N hours, most recently updated first. Pass date (YYYY-MM-DD) instead to select PRs merged on that calendar day.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"owner":    {Type: "string", Description: "Repository owner", Default: pullrequests.DefaultOwner, MinLength: modules.Int(1)},
				"repo":     {Type: "string", Description: "Repository name", Default: pullrequests.DefaultRepo, MinLength: modules.Int(1)},
				"hoursAgo": {Type: "number", Description: "Look back this many hours", Default: float64(pullrequests.DefaultWindowHours), Minimum: modules.Int64(1), Maximum: modules.Int64(int64(pullrequests.MaxWindowHours))},
				"date":     {Type: "string", Description: "Calendar date YYYY-MM-DD; overrides hoursAgo", Format: "date"},
				"format":   formatProperty,
			},
		},
	},
	{
		ID:   "github:" + ToolFetchDetail,
		Name: ToolFetchDetail,
		Descriptions: modules.LocalizedText{
			"en-US": "Fetch one pull request with its changed files (additions, deletions, status per file).",
			"ja-JP": "PRの詳細と変更ファイル一覧を取得します。",
		},
		Description: "Fetch one pull request with its changed files (additions, deletions, status per file).",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"owner":      {Type: "string", Description: "Repository owner"},
				"repo":       {Type: "string", Description: "Repository name"},
				"pullNumber": {Type: "integer", Description: "Pull request number", Minimum: modules.Int64(1)},
				"format":     formatProperty,
			},
			Required: []string{"owner", "repo", "pullNumber"},
		},
	},
}

// =============================================================================
// Tool Handlers
// =============================================================================

type toolHandler func(ctx context.Context, prs *pullrequests.Adapter, params map[string]any) (*modules.ToolOutput, error)

var toolHandlers = map[string]toolHandler{
	ToolFetchRecentMerged: fetchRecentMerged,
	ToolFetchDetail:       fetchDetail,
}

func fetchRecentMerged(ctx context.Context, prs *pullrequests.Adapter, params map[string]any) (*modules.ToolOutput, error) {
	req := pullrequests.ReportRequest{
		Owner: modules.StringParam(params, "owner"),
		Repo:  modules.StringParam(params, "repo"),
	}
	if date := modules.StringParam(params, "date"); date != "" {
		day, err := pullrequests.ParseDate(date, prs.Location())
		if err != nil {
			return output(pullrequests.Fail[[]pullrequests.Summary](pullrequests.KindInvalidArgument, err))
		}
		req.AsOfDate = &day
	} else {
		hours, _ := modules.IntParam(params, "hoursAgo")
		req.WindowHours = hours
	}
	return output(prs.Fetch(ctx, req))
}

func fetchDetail(ctx context.Context, prs *pullrequests.Adapter, params map[string]any) (*modules.ToolOutput, error) {
	number, _ := modules.IntParam(params, "pullNumber")
	res := prs.FetchDetail(ctx,
		modules.StringParam(params, "owner"),
		modules.StringParam(params, "repo"),
		number,
	)
	return output(res)
}

type queryResult interface {
	Succeeded() bool
}

func output(res queryResult) (*modules.ToolOutput, error) {
	text, err := modules.ToJSON(res)
	if err != nil {
		return nil, err
	}
	return &modules.ToolOutput{Text: text, Structured: res, Failed: !res.Succeeded()}, nil
}

var (
	_ modules.Module           = (*GitHubModule)(nil)
	_ modules.CompactConverter = (*GitHubModule)(nil)
)
