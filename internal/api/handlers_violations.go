package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/internal/web"
	"evalgo.org/mycelium/models"
)

// recordViolation records a conformance violation.
// @Summary Record a violation
// @Tags violations
// @Accept json
// @Produce json
// @Param violation body conformance.RecordRequest true "Violation"
// @Success 201 {object} models.Violation
// @Failure 400 {object} APIError
// @Router /violations [post]
func (s *Server) recordViolation(c echo.Context) error {
	ctx := c.Request().Context()

	var req conformance.RecordRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestError("Invalid request body", err.Error())
	}

	id, err := s.engine.RecordViolation(ctx, req)
	if err != nil {
		return engineError(err, "Violation", "")
	}
	v, err := s.engine.GetViolation(ctx, id)
	if err != nil {
		return engineError(err, "Violation", id)
	}

	s.BroadcastEvent(EventViolationRecorded, v)
	return c.JSON(http.StatusCreated, v)
}

// resolveViolation marks a violation resolved. Resolving twice is not an error.
// @Summary Resolve a violation
// @Tags violations
// @Accept json
// @Produce json
// @Param id path string true "Violation ID"
// @Param resolve body ResolveRequest false "Resolution"
// @Success 200 {object} ResolveResponse
// @Failure 404 {object} APIError
// @Router /violations/{id}/resolve [post]
func (s *Server) resolveViolation(c echo.Context) error {
	id := c.Param("id")

	var req ResolveRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return BadRequestError("Invalid request body", err.Error())
		}
	}

	changed, err := s.engine.ResolveViolation(c.Request().Context(), id, req.Resolution)
	if err != nil {
		return engineError(err, "Violation", id)
	}
	if changed {
		s.BroadcastEvent(EventViolationResolved, ResolveResponse{ID: id, Changed: true})
	}
	return c.JSON(http.StatusOK, ResolveResponse{ID: id, Changed: changed})
}

// getViolation returns one violation.
// @Summary Get a violation
// @Tags violations
// @Produce json
// @Param id path string true "Violation ID"
// @Success 200 {object} models.Violation
// @Failure 404 {object} APIError
// @Router /violations/{id} [get]
func (s *Server) getViolation(c echo.Context) error {
	id := c.Param("id")
	v, err := s.engine.GetViolation(c.Request().Context(), id)
	if err != nil {
		return engineError(err, "Violation", id)
	}
	return c.JSON(http.StatusOK, v)
}

// queryViolations lists violations matching the query filters.
// @Summary Query violations
// @Tags violations
// @Produce json
// @Param target query string false "Target graph"
// @Param status query string false "open or resolved"
// @Param severity query string false "Severity"
// @Param ref query string false "Referenced entity ID"
// @Param limit query int false "Page size" default(100)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} ViolationsResponse
// @Router /violations [get]
func (s *Server) queryViolations(c echo.Context) error {
	filter := storage.ViolationFilter{
		Target:   c.QueryParam("target"),
		Severity: models.Severity(c.QueryParam("severity")),
		RefID:    c.QueryParam("ref"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		filter.Status = models.ViolationStatus(raw)
		if !filter.Status.Valid() {
			return BadRequestError("Invalid status parameter", "Status must be open or resolved. Got: "+raw)
		}
	}

	violations, err := s.engine.QueryViolations(c.Request().Context(), filter)
	if err != nil {
		return engineError(err, "Violation", "")
	}
	return s.violationPage(c, violations)
}

// violationHistory lists every violation of one target, oldest first.
// @Summary Violation history of a graph
// @Tags graphs
// @Produce json
// @Param id path string true "Target graph"
// @Success 200 {object} ViolationsResponse
// @Router /graphs/{id}/violations [get]
func (s *Server) violationHistory(c echo.Context) error {
	violations, err := s.engine.GetViolationHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineError(err, "Graph", c.Param("id"))
	}
	return s.violationPage(c, violations)
}

func (s *Server) violationPage(c echo.Context, violations []*models.Violation) error {
	limit, offset := parsePagination(c)
	page := paginate(violations, limit, offset)
	return c.JSON(http.StatusOK, ViolationsResponse{
		Count:      len(page),
		Total:      len(violations),
		Violations: page,
	})
}

// violationStatistics summarizes the violations of one target.
// @Summary Violation statistics of a graph
// @Tags graphs
// @Produce json
// @Param id path string true "Target graph"
// @Success 200 {object} conformance.Statistics
// @Router /graphs/{id}/statistics [get]
func (s *Server) violationStatistics(c echo.Context) error {
	stats, err := s.engine.ViolationStatistics(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineError(err, "Graph", c.Param("id"))
	}
	return c.JSON(http.StatusOK, stats)
}

// violationReport renders the violation statistics and history of a target as HTML.
// @Summary HTML conformance report of a graph
// @Tags graphs
// @Produce html
// @Param id path string true "Target graph"
// @Success 200 {string} string "HTML report"
// @Router /graphs/{id}/report [get]
func (s *Server) violationReport(c echo.Context) error {
	ctx := c.Request().Context()
	target := c.Param("id")

	stats, err := s.engine.ViolationStatistics(ctx, target)
	if err != nil {
		return engineError(err, "Graph", target)
	}
	violations, err := s.engine.GetViolationHistory(ctx, target)
	if err != nil {
		return engineError(err, "Graph", target)
	}
	return web.Render(c, web.ViolationReport(stats, violations))
}

// checkConformance runs the graph conformance rules and records new findings.
// @Summary Check graph conformance
// @Tags graphs
// @Produce json
// @Param id path string true "Target graph"
// @Success 200 {object} ConformanceResponse
// @Router /graphs/{id}/conformance [post]
func (s *Server) checkConformance(c echo.Context) error {
	target := c.Param("id")
	findings, recorded, err := s.engine.CheckConformance(c.Request().Context(), target)
	if err != nil {
		return engineError(err, "Graph", target)
	}
	if findings == nil {
		findings = []conformance.Finding{}
	}
	if recorded == nil {
		recorded = []string{}
	}
	return c.JSON(http.StatusOK, ConformanceResponse{Target: target, Findings: findings, Violations: recorded})
}
