package report

import (
	"fmt"
	"time"

	"prdigest/server/internal/pullrequests"
)

// Group is one category of a plan with its pull request numbers.
type Group struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Numbers []int  `json:"numbers"`
}

// ReportPlan is the structured payload a report is generated from.
type ReportPlan struct {
	Request      pullrequests.ReportRequest `json:"request"`
	PullRequests []pullrequests.Summary     `json:"pullRequests"`
	Categories   []Group                    `json:"categories"`
	Directive    string                     `json:"directive"`
}

// Plan groups summaries by Kind. Empty groups are omitted; group order
// follows Kinds and numbers keep the order of summaries. An empty
// directive is derived from the request.
func Plan(req pullrequests.ReportRequest, summaries []pullrequests.Summary, directive string) ReportPlan {
	req = req.WithDefaults()
	if directive == "" {
		directive = Directive(req)
	}

	byKind := make(map[Kind][]int)
	for _, pr := range summaries {
		k := Categorize(pr)
		byKind[k] = append(byKind[k], pr.Number)
	}

	groups := make([]Group, 0, len(byKind))
	for _, k := range Kinds {
		if nums, ok := byKind[k]; ok {
			groups = append(groups, Group{Kind: k, Title: k.Title(), Numbers: nums})
		}
	}

	prs := summaries
	if prs == nil {
		prs = []pullrequests.Summary{}
	}
	return ReportPlan{
		Request:      req,
		PullRequests: prs,
		Categories:   groups,
		Directive:    directive,
	}
}

// Numbers returns the pull request numbers the report must cover.
func (p ReportPlan) Numbers() []int {
	out := make([]int, 0, len(p.PullRequests))
	for _, pr := range p.PullRequests {
		out = append(out, pr.Number)
	}
	return out
}

// Directive phrases the request as an instruction.
func Directive(req pullrequests.ReportRequest) string {
	req = req.WithDefaults()
	repo := req.Owner + "/" + req.Repo
	if req.AsOfDate != nil {
		return fmt.Sprintf("Write a report on the pull requests merged into %s on %s.",
			repo, req.AsOfDate.Format(time.DateOnly))
	}
	return fmt.Sprintf("Write a report on the pull requests merged into %s in the last %d hours.",
		repo, req.WindowHours)
}
