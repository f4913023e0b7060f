package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/models"
)

func sampleStats() *conformance.Statistics {
	return &conformance.Statistics{
		Target:      "g1",
		Total:       2,
		Resolved:    1,
		Unresolved:  1,
		BySeverity:  map[models.Severity]int{models.SeverityHigh: 1, models.SeverityLow: 1},
		HealthScore: 88,
	}
}

func TestViolationReport(t *testing.T) {
	violations := []*models.Violation{
		{
			ID:        "violation:1",
			Target:    "g1",
			Ref:       models.EntityRef{Kind: models.RefPatch, ID: "p1"},
			Label:     "<script>alert(1)</script>",
			Type:      "missing_label",
			Severity:  models.SeverityHigh,
			Status:    models.ViolationOpen,
			CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ViolationReport(sampleStats(), violations).Render(context.Background(), &buf))

	html := buf.String()
	assert.Contains(t, html, "Conformance report: g1")
	assert.Contains(t, html, ">88<")
	assert.Contains(t, html, "patch:p1")
	assert.Contains(t, html, "2024-01-02T03:04:05Z")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
}

func TestViolationReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ViolationReport(&conformance.Statistics{Target: "g2", HealthScore: 100}, nil).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "No violations recorded.")
}

func TestRender(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, Render(c, ViolationReport(sampleStats(), nil)))
	assert.Equal(t, echo.MIMETextHTMLCharsetUTF8, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
}
