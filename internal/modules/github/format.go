package github

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Compact formatters per tool: (toolName, JSON) → string
// =============================================================================

const maxBodyLen = 3000

func formatCompact(toolName, jsonStr string) string {
	switch toolName {
	case ToolFetchRecentMerged:
		return summariesToMarkdown(jsonStr)
	case ToolFetchDetail:
		return detailToMarkdown(jsonStr)
	default:
		return jsonStr
	}
}

// summariesToMarkdown renders a successful list result as a Markdown table.
// Anything else is returned unchanged.
func summariesToMarkdown(jsonStr string) string {
	var res map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &res); err != nil || !boolVal(res, "success") {
		return jsonStr
	}
	prs, ok := res["data"].([]any)
	if !ok {
		return jsonStr
	}

	var sb strings.Builder
	meta, _ := res["meta"].(map[string]any)
	sb.WriteString(fmt.Sprintf("# %d merged PRs", len(prs)))
	if tr := str(meta, "timeRange"); tr != "" {
		sb.WriteString(" (" + tr + ")")
	}
	sb.WriteString("\n")
	if boolVal(meta, "incompleteResults") || intVal(meta, "totalCount") > len(prs) {
		sb.WriteString(fmt.Sprintf("_showing %d of %d_\n", len(prs), intVal(meta, "totalCount")))
	}
	if len(prs) == 0 {
		return strings.TrimSuffix(sb.String(), "\n")
	}

	sb.WriteString("\n| # | Title | Author | Merged | Labels |\n|---|---|---|---|---|\n")
	for _, v := range prs {
		p, ok := v.(map[string]any)
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			intVal(p, "number"),
			cellEscape(str(p, "title")),
			cellEscape(str(p, "author")),
			shortTime(str(p, "mergedAt")),
			cellEscape(strings.Join(strSlice(p, "labels"), ", ")),
		))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// detailToMarkdown renders a successful detail result with its file list.
func detailToMarkdown(jsonStr string) string {
	var res map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &res); err != nil || !boolVal(res, "success") {
		return jsonStr
	}
	p, ok := res["data"].(map[string]any)
	if !ok {
		return jsonStr
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# #%d: %s\n", intVal(p, "number"), str(p, "title")))
	sb.WriteString(fmt.Sprintf("- **URL**: %s\n", str(p, "url")))
	sb.WriteString(fmt.Sprintf("- **Author**: %s\n", str(p, "author")))
	sb.WriteString(fmt.Sprintf("- **State**: %s\n", str(p, "state")))
	if boolVal(p, "merged") {
		sb.WriteString(fmt.Sprintf("- **Merged**: %s\n", shortTime(str(p, "mergedAt"))))
	}
	if labels := strSlice(p, "labels"); len(labels) > 0 {
		sb.WriteString(fmt.Sprintf("- **Labels**: %s\n", strings.Join(labels, ", ")))
	}
	sb.WriteString(fmt.Sprintf("- **Changes**: +%d -%d in %d files\n",
		intVal(p, "additions"), intVal(p, "deletions"), intVal(p, "changedFiles")))

	if files, ok := p["files"].([]any); ok && len(files) > 0 {
		sb.WriteString("\n## Files\n```csv\nfilename,status,additions,deletions\n")
		for _, v := range files {
			f, ok := v.(map[string]any)
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("%s,%s,%d,%d\n",
				csvEscape(str(f, "filename")),
				str(f, "status"),
				intVal(f, "additions"),
				intVal(f, "deletions"),
			))
		}
		sb.WriteString("```\n")
	}

	if body := str(p, "body"); body != "" {
		if len(body) > maxBodyLen {
			body = body[:maxBodyLen] + "...(truncated)"
		}
		sb.WriteString(fmt.Sprintf("\n## Body\n%s\n", body))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// =============================================================================
// Helpers
// =============================================================================

func str(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func intVal(obj map[string]any, key string) int {
	if v, ok := obj[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolVal(obj map[string]any, key string) bool {
	if v, ok := obj[key].(bool); ok {
		return v
	}
	return false
}

func strSlice(obj map[string]any, key string) []string {
	items, _ := obj[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// shortTime trims an RFC 3339 timestamp to minutes.
func shortTime(ts string) string {
	if len(ts) >= 16 {
		return strings.Replace(ts[:16], "T", " ", 1)
	}
	if ts == "" {
		return "-"
	}
	return ts
}

func cellEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func csvEscape(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, ",\"\n\r") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
