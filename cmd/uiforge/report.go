package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"uiforge/internal/pipeline"
	"uiforge/internal/render"
)

// maxPreviewLines bounds the markup excerpt in the report.
const maxPreviewLines = 30

// buildReport summarizes a run as markdown.
func buildReport(out *pipeline.Outcome) string {
	var sb strings.Builder

	sb.WriteString("# UIForge run\n\n")
	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Run | `%s` |\n", out.RunID)
	fmt.Fprintf(&sb, "| Duration | %s |\n", out.Duration.Round(time.Millisecond))

	if out.Failed() {
		fmt.Fprintf(&sb, "| Failed stage | %s |\n", out.FailedStage.Label())
		fmt.Fprintf(&sb, "\n**Error:** %s\n", out.Failure.Error)
		return sb.String()
	}

	category := "unrecognized"
	if out.Category.Known() {
		category = out.Category.String()
	}
	fmt.Fprintf(&sb, "| Category | %s |\n", category)
	if out.Plan != nil {
		fmt.Fprintf(&sb, "| Title | %s |\n", out.Plan.Meta.Title)
		fmt.Fprintf(&sb, "| Layout | %s |\n", out.Plan.UIHints.Layout)
	}
	fmt.Fprintf(&sb, "| Optimized | %v |\n", out.Optimized)
	if out.Publication != nil {
		fmt.Fprintf(&sb, "| Artifact | %s |\n", out.Publication.URL)
	}

	if out.Artifact == nil {
		sb.WriteString("\nThe revised output could not be parsed; it is returned as text.\n\n")
		sb.WriteString("```\n")
		sb.WriteString(preview(out.Raw))
		sb.WriteString("\n```\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "\n## Artifact\n\n- html: %d bytes\n- css: %d bytes\n- js: %d bytes\n",
		len(out.Artifact.Markup), len(out.Artifact.Styles), len(out.Artifact.Script))
	if title := render.Title(out.Artifact.Markup); title != "" {
		fmt.Fprintf(&sb, "- page heading: %s\n", title)
	}
	sb.WriteString("\n```html\n")
	sb.WriteString(preview(out.Artifact.Markup))
	sb.WriteString("\n```\n")
	return sb.String()
}

func preview(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= maxPreviewLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:maxPreviewLines], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-maxPreviewLines)
}

// renderReport styles markdown for the terminal, falling back to the plain
// text when rendering is unavailable.
func renderReport(markdown string, plain bool) string {
	if plain {
		return markdown
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
