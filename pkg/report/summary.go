package report

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// Markdown renders the operator summary: counts, then each failed brand with the
// queries it tried, so someone can follow up by hand.
func Markdown(r *models.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Logo run %s\n\n", r.RunID)
	fmt.Fprintf(&b, "Preset `%s`, started %s, finished %s.\n\n",
		r.Preset, r.StartedAt.Format("2006-01-02 15:04:05"), r.FinishedAt.Format("2006-01-02 15:04:05"))
	if r.Cancelled {
		b.WriteString("**The run was cancelled before completion.**\n\n")
	}
	if r.FatalError != "" {
		fmt.Fprintf(&b, "Fatal error: `%s`\n\n", r.FatalError)
	}

	b.WriteString("| Outcome | Brands |\n|---|---|\n")
	fmt.Fprintf(&b, "| Succeeded | %d |\n", r.Succeeded)
	fmt.Fprintf(&b, "| Failed | %d |\n", r.Failed)
	fmt.Fprintf(&b, "| Skipped (already done) | %d |\n", len(r.Skipped))
	fmt.Fprintf(&b, "| Not attempted | %d |\n\n", len(r.NotAttempted))

	slugs := make([]string, 0, len(r.Results))
	for slug := range r.Results {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var failed []models.RunResult
	var succeeded []models.RunResult
	for _, slug := range slugs {
		res := r.Results[slug]
		if res.Status == models.RunStatusSuccess {
			succeeded = append(succeeded, res)
		} else {
			failed = append(failed, res)
		}
	}

	if len(failed) > 0 {
		b.WriteString("## Failed brands\n\n")
		for _, res := range failed {
			fmt.Fprintf(&b, "### %s (`%s`)\n\n", markdownText(displayName(res)), res.Slug)
			fmt.Fprintf(&b, "Reason: `%s`, candidates seen: %d.\n\n", res.FailureReason, res.CandidatesSeen)
			if len(res.AttemptedQueries) > 0 {
				b.WriteString("Queries attempted:\n\n")
				for _, q := range res.AttemptedQueries {
					if q.BackendHint != "" {
						fmt.Fprintf(&b, "- %s (%s only)\n", markdownText(q.Text), q.BackendHint)
					} else {
						fmt.Fprintf(&b, "- %s\n", markdownText(q.Text))
					}
				}
				b.WriteString("\n")
			}
			if len(res.Rejections) > 0 {
				b.WriteString("Rejections: ")
				b.WriteString(formatRejections(res.Rejections))
				b.WriteString("\n\n")
			}
		}
	}

	if len(succeeded) > 0 {
		b.WriteString("## Acquired logos\n\n| Brand | File | Score | Source |\n|---|---|---|---|\n")
		for _, res := range succeeded {
			var score float64
			var src string
			if res.Chosen != nil {
				score = res.Chosen.Score
				src = res.Chosen.SourceURL
			}
			fmt.Fprintf(&b, "| %s | %s | %.1f | %s |\n", res.Slug, filepath.Base(res.OutputPath), score, tableCell(src))
		}
		b.WriteString("\n")
	}

	if len(r.NotAttempted) > 0 {
		b.WriteString("## Not attempted\n\n")
		for _, slug := range r.NotAttempted {
			fmt.Fprintf(&b, "- %s\n", slug)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the Markdown summary as a standalone page
func HTML(r *models.RunReport) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &body); err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}
	return fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Logo run %s</title></head>\n<body>\n%s</body></html>\n",
		html.EscapeString(r.RunID), body.String()), nil
}

// WriteSummary writes HTML for .html/.htm paths and Markdown otherwise
func WriteSummary(path string, r *models.RunReport) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		page, err := HTML(r)
		if err != nil {
			return err
		}
		return writeAtomic(path, []byte(page))
	default:
		return writeAtomic(path, []byte(Markdown(r)))
	}
}

func displayName(res models.RunResult) string {
	if res.DisplayName != "" {
		return res.DisplayName
	}
	return res.Slug
}

func formatRejections(rejections map[string]int) string {
	keys := make([]string, 0, len(rejections))
	for k := range rejections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, rejections[k])
	}
	return strings.Join(parts, ", ")
}

var markdownEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;")

func markdownText(s string) string { return markdownEscaper.Replace(s) }

func tableCell(s string) string { return strings.ReplaceAll(markdownText(s), "|", `\|`) }
