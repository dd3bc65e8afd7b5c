package report

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Rule names a report contract rule.
type Rule string

const (
	RuleSections      Rule = "sections"
	RuleCompleteness  Rule = "completeness"
	RuleFabrication   Rule = "fabrication"
	RuleSummaryLength Rule = "summary-length"
)

// Violation is one broken rule of a generated report.
type Violation struct {
	Rule   Rule
	Number int // pull request number, 0 when not specific to one
	Detail string
}

func (v *Violation) Error() string {
	if v.Number != 0 {
		return fmt.Sprintf("%s: #%d: %s", v.Rule, v.Number, v.Detail)
	}
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

var (
	prHeading     = regexp.MustCompile(`^###\s+(?:PR\s+)?#(\d+)\b`)
	prReference   = regexp.MustCompile(`#(\d+)\b`)
	summaryMarker = regexp.MustCompile(`(?i)^(?:[-*]\s+)?\*\*summary\*\*:?\s*(.*)$`)
)

type section struct {
	name  string
	start int // index of the heading line
	end   int // exclusive
}

// Validate checks a generated Markdown report against the pull requests it
// must cover. All violations are combined into one error (see
// multierr.Errors); nil means the report honors the contract.
func Validate(markdown string, expected []int) error {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")
	sections := splitSections(lines)

	var errs error
	// repeated sections are reported once and still checked in full
	found := make(map[string][]section, len(sections))
	var order []string
	for _, s := range sections {
		if len(found[s.name]) == 1 && isContractSection(s.name) {
			errs = multierr.Append(errs, &Violation{Rule: RuleSections, Detail: fmt.Sprintf("section %q repeated", s.name)})
		}
		if len(found[s.name]) == 0 {
			order = append(order, s.name)
		}
		found[s.name] = append(found[s.name], s)
	}

	want := []string{HeadingOverview, HeadingPullRequests, HeadingCategories}
	pos := -1
	for _, name := range want {
		idx := slices.Index(order, name)
		switch {
		case idx < 0:
			errs = multierr.Append(errs, &Violation{Rule: RuleSections, Detail: fmt.Sprintf("missing section %q", name)})
		case idx < pos:
			errs = multierr.Append(errs, &Violation{Rule: RuleSections, Detail: fmt.Sprintf("section %q out of order", name)})
		default:
			pos = idx
		}
	}

	expectedSet := make(map[int]bool, len(expected))
	for _, n := range expected {
		expectedSet[n] = true
	}

	seen := make(map[int]int)
	for _, s := range found[HeadingPullRequests] {
		for _, b := range splitBlocks(lines[s.start+1 : s.end]) {
			seen[b.number]++
			if !expectedSet[b.number] {
				errs = multierr.Append(errs, &Violation{Rule: RuleFabrication, Number: b.number, Detail: "block for a pull request outside the result set"})
				continue
			}
			if err := checkSummary(b); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	for _, n := range expected {
		switch c := seen[n]; {
		case c == 0:
			errs = multierr.Append(errs, &Violation{Rule: RuleCompleteness, Number: n, Detail: "no pull request block"})
		case c > 1:
			errs = multierr.Append(errs, &Violation{Rule: RuleCompleteness, Number: n, Detail: fmt.Sprintf("%d pull request blocks, want 1", c)})
		}
	}

	reported := make(map[int]bool)
	for _, s := range found[HeadingCategories] {
		for _, line := range lines[s.start+1 : s.end] {
			for _, m := range prReference.FindAllStringSubmatch(line, -1) {
				n, _ := strconv.Atoi(m[1])
				if !expectedSet[n] && !reported[n] {
					reported[n] = true
					errs = multierr.Append(errs, &Violation{Rule: RuleFabrication, Number: n, Detail: "category entry for a pull request outside the result set"})
				}
			}
		}
	}

	return errs
}

// Violations unpacks the error returned by Validate.
func Violations(err error) []*Violation {
	var out []*Violation
	for _, e := range multierr.Errors(err) {
		if v, ok := e.(*Violation); ok {
			out = append(out, v)
		}
	}
	return out
}

func splitSections(lines []string) []section {
	var out []section
	for i, line := range lines {
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].end = i
		}
		out = append(out, section{name: normalizeHeading(line[3:]), start: i, end: len(lines)})
	}
	return out
}

func isContractSection(name string) bool {
	return name == HeadingOverview || name == HeadingPullRequests || name == HeadingCategories
}

// normalizeHeading maps "Pull requests:" and similar onto the canonical name.
func normalizeHeading(h string) string {
	h = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(h), ":"))
	for _, name := range []string{HeadingOverview, HeadingPullRequests, HeadingCategories} {
		if strings.EqualFold(h, name) {
			return name
		}
	}
	return h
}

type block struct {
	number int
	lines  []string
}

func splitBlocks(lines []string) []block {
	var out []block
	for _, line := range lines {
		if m := prHeading.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			out = append(out, block{number: n})
			continue
		}
		if strings.HasPrefix(line, "###") {
			// an unnumbered sub-heading closes the current block
			out = append(out, block{number: -1})
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].lines = append(out[len(out)-1].lines, line)
		}
	}
	blocks := out[:0]
	for _, b := range out {
		if b.number >= 0 {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// checkSummary counts the non-empty lines of the summary paragraph: the text
// after the **Summary** marker up to the next blank line or bold field.
func checkSummary(b block) error {
	for i, line := range b.lines {
		m := summaryMarker.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		count := 0
		if strings.TrimSpace(m[1]) != "" {
			count++
		}
		for _, next := range b.lines[i+1:] {
			t := strings.TrimSpace(next)
			if t == "" {
				if count == 0 {
					continue
				}
				break
			}
			if strings.HasPrefix(t, "**") || strings.HasPrefix(t, "- **") || strings.HasPrefix(t, "#") {
				break
			}
			count++
		}
		if count > MaxSummaryLines {
			return &Violation{Rule: RuleSummaryLength, Number: b.number, Detail: fmt.Sprintf("summary has %d lines, max %d", count, MaxSummaryLines)}
		}
		return nil
	}
	return &Violation{Rule: RuleSummaryLength, Number: b.number, Detail: "summary missing"}
}
