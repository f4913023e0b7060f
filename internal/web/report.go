package web

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/models"
)

const reportStyle = `body{font-family:sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;width:100%;margin-bottom:2rem}
th,td{border:1px solid #ddd;padding:.4rem .6rem;text-align:left}
th{background:#f4f4f4}
.score{font-size:2rem;font-weight:bold}
.sev-critical{color:#b00020}.sev-high{color:#d35400}.sev-medium{color:#b7950b}.sev-low{color:#555}
.resolved{color:#888}`

// ViolationReport renders the conformance summary and violation list of one target.
func ViolationReport(stats *conformance.Statistics, violations []*models.Violation) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		target := templ.EscapeString(stats.Target)

		b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
		fmt.Fprintf(&b, "<title>Conformance report: %s</title>", target)
		fmt.Fprintf(&b, "<style>%s</style></head><body>", reportStyle)
		fmt.Fprintf(&b, "<h1>Conformance report: %s</h1>", target)
		fmt.Fprintf(&b, "<p>Health score <span class=\"score\">%d</span></p>", stats.HealthScore)
		fmt.Fprintf(&b, "<p>%d violations, %d open, %d resolved</p>", stats.Total, stats.Unresolved, stats.Resolved)

		b.WriteString("<h2>By severity</h2><table><tr><th>Severity</th><th>Count</th></tr>")
		for _, sev := range models.Severities {
			fmt.Fprintf(&b, "<tr><td class=\"sev-%s\">%s</td><td>%d</td></tr>", sev, sev, stats.BySeverity[sev])
		}
		b.WriteString("</table>")

		b.WriteString("<h2>Violations</h2>")
		if len(violations) == 0 {
			b.WriteString("<p>No violations recorded.</p>")
		} else {
			b.WriteString("<table><tr><th>Recorded</th><th>Severity</th><th>Type</th><th>Entity</th><th>Label</th><th>Status</th></tr>")
			for _, v := range violations {
				row := ""
				if v.Status == models.ViolationResolved {
					row = " class=\"resolved\""
				}
				fmt.Fprintf(&b, "<tr%s><td>%s</td><td class=\"sev-%s\">%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
					row,
					v.CreatedAt.UTC().Format(time.RFC3339),
					v.Severity, v.Severity,
					templ.EscapeString(v.Type),
					templ.EscapeString(v.Ref.String()),
					templ.EscapeString(v.Label),
					v.Status,
				)
			}
			b.WriteString("</table>")
		}
		b.WriteString("</body></html>")

		_, err := io.WriteString(w, b.String())
		return err
	})
}
