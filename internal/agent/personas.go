package agent

import (
	"context"

	"prdigest/server/internal/modules"
	"prdigest/server/internal/pullrequests"
	"prdigest/server/internal/report"
)

// Built-in persona names.
const (
	ReportAgent = "cdkReportAgent"
	ChefAgent   = "chefAgent"
)

const chefInstructions = "You are Michel, a practical and experienced home chef. " +
	"You help people cook with whatever ingredients they have available."

// NewReportPersona returns the pull request report persona. tools should
// carry the GitHub module.
func NewReportPersona(model, language string, tools *modules.Toolset) *Persona {
	return &Persona{
		Name:         ReportAgent,
		DisplayName:  "CDK Report Agent",
		Instructions: report.Instructions(language),
		Model:        model,
		Tools:        tools,
		Verify:       VerifyReport,
	}
}

// NewChefPersona returns the cooking assistant. It has no tools.
func NewChefPersona(model string) *Persona {
	return &Persona{
		Name:         ChefAgent,
		DisplayName:  "Chef Michel",
		Instructions: chefInstructions,
		Model:        model,
	}
}

// VerifyReport checks the final text against the report contract, using the
// pull requests returned by the run's list tool calls. Runs that never
// listed pull requests are not reports and pass.
func VerifyReport(_ context.Context, res *RunResult) error {
	var (
		prs    []pullrequests.Summary
		seen   = make(map[int]bool)
		listed bool
	)
	for _, tr := range res.ToolResults {
		if tr.IsError {
			continue
		}
		qr, ok := tr.Structured.(pullrequests.QueryResult[[]pullrequests.Summary])
		if !ok || !qr.Succeeded() {
			continue
		}
		listed = true
		for _, s := range qr.Data {
			if !seen[s.Number] {
				seen[s.Number] = true
				prs = append(prs, s)
			}
		}
	}
	if !listed {
		return nil
	}
	plan := report.Plan(pullrequests.ReportRequest{}, prs, "")
	return report.Validate(res.Text, plan.Numbers())
}
