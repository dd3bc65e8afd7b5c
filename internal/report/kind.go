// Package report holds the report contract: how merged pull requests are
// grouped, what the report persona is told to write and how a generated
// report is checked afterwards.
package report

import (
	"regexp"
	"slices"
	"strings"

	"prdigest/server/internal/pullrequests"
)

// Kind is the category a pull request is listed under.
type Kind string

const (
	KindFeature    Kind = "feature"
	KindFix        Kind = "fix"
	KindDocs       Kind = "docs"
	KindDependency Kind = "dependency-update"
	KindOther      Kind = "other"
)

// Kinds lists every category in report order.
var Kinds = []Kind{KindFeature, KindFix, KindDocs, KindDependency, KindOther}

var kindTitles = map[Kind]string{
	KindFeature:    "Features",
	KindFix:        "Bug Fixes",
	KindDocs:       "Documentation",
	KindDependency: "Dependency Updates",
	KindOther:      "Other",
}

// Title is the heading used for the category in a report.
func (k Kind) Title() string {
	if t, ok := kindTitles[k]; ok {
		return t
	}
	return kindTitles[KindOther]
}

// conventional commit header: type(scope)!: subject
var conventionalTitle = regexp.MustCompile(`^\s*([a-zA-Z]+)(?:\(([^)]*)\))?!?:`)

// Categorize assigns a pull request to a Kind. Dependency signals win over
// the title prefix so "chore(deps): bump x" is a dependency update.
func Categorize(pr pullrequests.Summary) Kind {
	labels := make([]string, len(pr.Labels))
	for i, l := range pr.Labels {
		labels[i] = strings.ToLower(l)
	}
	title := strings.ToLower(pr.Title)

	var typ, scope string
	if m := conventionalTitle.FindStringSubmatch(title); m != nil {
		typ, scope = m[1], m[2]
	}

	switch {
	case slices.Contains(labels, "dependencies"):
		return KindDependency
	case typ == "deps", (typ == "chore" || typ == "build") && scope == "deps":
		return KindDependency
	case slices.Contains(labels, "auto-approve") && strings.Contains(title, "bump"):
		return KindDependency
	}

	switch typ {
	case "feat", "feature":
		return KindFeature
	case "fix", "bugfix":
		return KindFix
	case "docs", "doc":
		return KindDocs
	}

	if slices.Contains(labels, "documentation") || slices.Contains(labels, "docs") {
		return KindDocs
	}
	return KindOther
}
