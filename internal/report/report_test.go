package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prdigest/server/internal/pullrequests"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		labels []string
		want   Kind
	}{
		{"feat prefix", "feat(s3): add bucket metrics", nil, KindFeature},
		{"breaking feat", "feat(core)!: drop node 16", nil, KindFeature},
		{"fix prefix", "fix(lambda): handle nil env", nil, KindFix},
		{"docs prefix", "docs: fix typo", nil, KindDocs},
		{"docs label", "Update README", []string{"Documentation"}, KindDocs},
		{"chore deps", "chore(deps): bump foo from 1 to 2", nil, KindDependency},
		{"build deps", "build(deps): bump bar", nil, KindDependency},
		{"deps type", "deps: upgrade jsii", nil, KindDependency},
		{"dependencies label wins", "feat: new thing", []string{"dependencies"}, KindDependency},
		{"auto-approve bump", "Bump aws-sdk to 3.1", []string{"auto-approve"}, KindDependency},
		{"auto-approve without bump", "chore: release", []string{"auto-approve"}, KindOther},
		{"plain chore", "chore: tidy", nil, KindOther},
		{"no prefix", "Add something", nil, KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(pullrequests.Summary{Title: tt.title, Labels: tt.labels})
			if got != tt.want {
				t.Errorf("Categorize(%q, %v) = %s, want %s", tt.title, tt.labels, got, tt.want)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	prs := []pullrequests.Summary{
		{Number: 103, Title: "docs: fix typo"},
		{Number: 102, Title: "chore(deps): bump foo"},
		{Number: 101, Title: "feat(s3): add metrics"},
		{Number: 104, Title: "feat(ec2): new instance types"},
	}

	p := Plan(pullrequests.ReportRequest{}, prs, "")

	assert.Equal(t, "aws", p.Request.Owner)
	assert.Equal(t, 24, p.Request.WindowHours)
	assert.Equal(t, []int{103, 102, 101, 104}, p.Numbers())
	require.Len(t, p.Categories, 3)
	assert.Equal(t, Group{Kind: KindFeature, Title: "Features", Numbers: []int{101, 104}}, p.Categories[0])
	assert.Equal(t, KindDocs, p.Categories[1].Kind)
	assert.Equal(t, KindDependency, p.Categories[2].Kind)
	assert.Equal(t, "Write a report on the pull requests merged into aws/aws-cdk in the last 24 hours.", p.Directive)
}

func TestPlanEmpty(t *testing.T) {
	day := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	p := Plan(pullrequests.ReportRequest{Owner: "o", Repo: "r", AsOfDate: &day}, nil, "custom")

	assert.NotNil(t, p.PullRequests)
	assert.Empty(t, p.Categories)
	assert.Equal(t, "custom", p.Directive)
	assert.Equal(t, "Write a report on the pull requests merged into o/r on 2025-06-08.", Directive(p.Request))
}

func TestInstructions(t *testing.T) {
	got := Instructions("Japanese")

	for _, want := range []string{
		"## Overview", "## Pull Requests", "## Categories",
		"'fetch-recent-merged-prs'", "'fetch-pr-details'",
		"aws/aws-cdk for the last 24 hours",
		"Write the report in Japanese.",
	} {
		assert.Contains(t, got, want)
	}
	assert.Less(t, strings.Index(got, "## Overview"), strings.Index(got, "## Categories"))
	assert.Contains(t, Instructions(""), "Write the report in English.")
}

const goodReport = `# aws/aws-cdk: merged pull requests

## Overview
2 pull requests were merged. Themes: S3 metrics and documentation.

## Pull Requests

### #101: feat(s3): add bucket metrics
- **Author**: alice
- **Merged**: 2025-06-10 07:00 UTC
**Summary**
Adds CloudWatch metrics to buckets.
Metrics are opt-in.

**Notable changes**
- New ` + "`metrics`" + ` property.

### #103: docs: fix typo
- **Author**: unknown
- **Merged**: 2025-06-10 10:59 UTC
**Summary**: Fixes a typo in the README.

## Categories
### Features
- #101 feat(s3): add bucket metrics
### Documentation
- #103 docs: fix typo
`

func TestValidateAcceptsConformingReport(t *testing.T) {
	assert.NoError(t, Validate(goodReport, []int{101, 103}))
}

func TestValidateEmptyResultSet(t *testing.T) {
	md := "## Overview\nNo pull requests were merged.\n\n## Pull Requests\nNone.\n\n## Categories\nNone.\n"
	assert.NoError(t, Validate(md, nil))
}

func TestValidateViolations(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		expected []int
		want     []Rule
		numbers  []int
	}{
		{
			name:     "missing pull request",
			markdown: goodReport,
			expected: []int{101, 102, 103},
			want:     []Rule{RuleCompleteness},
			numbers:  []int{102},
		},
		{
			name:     "fabricated block and category",
			markdown: goodReport,
			expected: []int{101},
			want:     []Rule{RuleFabrication, RuleFabrication},
			numbers:  []int{103, 103},
		},
		{
			name:     "duplicate block",
			markdown: strings.Replace(goodReport, "## Categories", "### #101: again\n**Summary**\nx\n\n## Categories", 1),
			expected: []int{101, 103},
			want:     []Rule{RuleCompleteness},
			numbers:  []int{101},
		},
		{
			name:     "sections out of order",
			markdown: "## Pull Requests\n### #1: a\n**Summary**\nx\n## Overview\n1 PR\n## Categories\n- #1 a\n",
			expected: []int{1},
			want:     []Rule{RuleSections},
		},
		{
			name:     "missing categories",
			markdown: "## Overview\nx\n## Pull Requests\n### #1: a\n**Summary**\nx\n",
			expected: []int{1},
			want:     []Rule{RuleSections},
		},
		{
			name:     "repeated section with fabricated block",
			markdown: goodReport + "\n## Pull Requests\n### #999: ghost\n**Summary**\nx\n",
			expected: []int{101, 103},
			want:     []Rule{RuleSections, RuleFabrication},
			numbers:  []int{999},
		},
		{
			name:     "repeated section with overlong summary",
			markdown: goodReport + "\n## Pull Requests\n### #102: x\n**Summary**\n1\n2\n3\n4\n5\n6\n",
			expected: []int{101, 102, 103},
			want:     []Rule{RuleSections, RuleSummaryLength},
			numbers:  []int{102},
		},
		{
			name:     "summary too long",
			markdown: "## Overview\nx\n## Pull Requests\n### #1: a\n**Summary**\n1\n2\n3\n4\n5\n6\n\n## Categories\n- #1 a\n",
			expected: []int{1},
			want:     []Rule{RuleSummaryLength},
			numbers:  []int{1},
		},
		{
			name:     "summary missing",
			markdown: "## Overview\nx\n## Pull Requests\n### #1: a\nJust text.\n## Categories\n- #1 a\n",
			expected: []int{1},
			want:     []Rule{RuleSummaryLength},
			numbers:  []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.markdown, tt.expected)
			require.Error(t, err)

			vs := Violations(err)
			rules := make([]Rule, 0, len(vs))
			var nums []int
			for _, v := range vs {
				rules = append(rules, v.Rule)
				if v.Number != 0 {
					nums = append(nums, v.Number)
				}
			}
			assert.Equal(t, tt.want, rules, err.Error())
			if tt.numbers != nil {
				assert.Equal(t, tt.numbers, nums)
			}
		})
	}
}
