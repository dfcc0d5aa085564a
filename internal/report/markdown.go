package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// maxReportLines caps the captured output shown per step in reports.
const maxReportLines = 40

// Markdown renders a run as a Markdown summary with a step table and the
// output of every step that did not pass.
func Markdown(r *RunResult) string {
	var b strings.Builder

	status := "PASS"
	if !r.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "# %s: %s\n\n", r.Title, status)
	fmt.Fprintf(&b, "Run `%s`, started %s, took %s.\n\n", r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Duration.Round(time.Millisecond))

	fmt.Fprintln(&b, "| Step | Command | Status | Exit | Duration |")
	fmt.Fprintln(&b, "|------|---------|--------|------|----------|")
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "| %s | `%s` | %s | %d | %s |\n",
			escapeCell(s.Label()), escapeCell(strings.Join(s.Argv, " ")), s.Status, s.ExitCode, s.Duration.Round(time.Millisecond))
	}

	for _, s := range r.Steps {
		if s.Succeeded() {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", s.Label())
		switch {
		case s.Error != "":
			fmt.Fprintf(&b, "Could not run the command: %s\n", s.Error)
		case strings.TrimSpace(s.Stderr) != "":
			fmt.Fprintf(&b, "```\n%s\n```\n", lastLines(s.Stderr, maxReportLines))
		default:
			fmt.Fprintf(&b, "```\n%s\n```\n", lastLines(s.Stdout, maxReportLines))
		}
	}
	return b.String()
}

// HTML renders the Markdown summary of a run as a standalone HTML page.
func HTML(r *RunResult) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &body); err != nil {
		return nil, fmt.Errorf("rendering run %s: %w", r.ID, err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(r.Title))
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Label returns the description, falling back to the name.
func (s *StepRecord) Label() string {
	if s.Description != "" {
		return s.Description
	}
	return s.Name
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return fmt.Sprintf("... (%d lines omitted)\n%s", len(lines)-n, strings.Join(lines[len(lines)-n:], "\n"))
}
