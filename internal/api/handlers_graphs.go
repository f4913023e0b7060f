package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/mycelium/internal/graph"
)

// listGraphs lists the known target graphs.
// @Summary List graphs
// @Tags graphs
// @Produce json
// @Success 200 {array} string
// @Router /graphs [get]
func (s *Server) listGraphs(c echo.Context) error {
	ids, err := s.engine.ListGraphs(c.Request().Context())
	if err != nil {
		return engineError(err, "Graph", "")
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, ids)
}

// graphVersion returns the current version token of a graph.
// @Summary Current graph version
// @Tags graphs
// @Produce json
// @Param id path string true "Target graph"
// @Success 200 {object} VersionResponse
// @Router /graphs/{id}/version [get]
func (s *Server) graphVersion(c echo.Context) error {
	target := c.Param("id")
	version, err := s.engine.GraphVersion(c.Request().Context(), target)
	if err != nil {
		return engineError(err, "Graph", target)
	}
	return c.JSON(http.StatusOK, VersionResponse{Target: target, Version: version})
}

// versionHistory returns the apply and rollback chain of a graph.
// @Summary Graph version history
// @Tags graphs
// @Produce json
// @Param id path string true "Target graph"
// @Success 200 {object} HistoryResponse
// @Router /graphs/{id}/history [get]
func (s *Server) versionHistory(c echo.Context) error {
	target := c.Param("id")
	records, err := s.engine.VersionHistory(c.Request().Context(), target)
	if err != nil {
		return engineError(err, "Graph", target)
	}
	limit, offset := parsePagination(c)
	return c.JSON(http.StatusOK, HistoryResponse{Target: target, Records: paginate(records, limit, offset)})
}

// exportGraph serializes a graph.
// @Summary Export a graph
// @Tags graphs
// @Produce application/n-quads
// @Produce application/ld+json
// @Param id path string true "Target graph"
// @Param format query string false "nquads or jsonld" default(nquads)
// @Success 200 {string} string "Serialized graph"
// @Router /graphs/{id}/export [get]
func (s *Server) exportGraph(c echo.Context) error {
	target := c.Param("id")
	format, err := graph.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return BadRequestError("Invalid format parameter", err.Error())
	}

	data, err := s.engine.ExportGraph(c.Request().Context(), target, format)
	if err != nil {
		return engineError(err, "Graph", target)
	}
	return c.Blob(http.StatusOK, contentTypeFor(format), data)
}

// importGraph replaces the content of a graph.
// @Summary Import a graph
// @Description Replaces the graph content. Pending patches authored against the previous content must be rebased.
// @Tags graphs
// @Accept application/n-quads
// @Accept application/ld+json
// @Produce json
// @Param id path string true "Target graph"
// @Success 200 {object} VersionResponse
// @Failure 400 {object} APIError
// @Router /graphs/{id} [put]
func (s *Server) importGraph(c echo.Context) error {
	target := c.Param("id")

	format := formatFor(c.Request().Header.Get(echo.HeaderContentType))
	if raw := c.QueryParam("format"); raw != "" {
		parsed, err := graph.ParseFormat(raw)
		if err != nil {
			return BadRequestError("Invalid format parameter", err.Error())
		}
		format = parsed
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return BadRequestError("Invalid request body", err.Error())
	}

	version, err := s.engine.ImportGraph(c.Request().Context(), target, format, data)
	if err != nil {
		return engineError(err, "Graph", target)
	}

	resp := VersionResponse{Target: target, Version: version}
	s.BroadcastEvent(EventGraphImported, resp)
	return c.JSON(http.StatusOK, resp)
}

// archivedVersions lists the snapshot versions archived for a graph.
// @Summary Archived graph snapshots
// @Tags graphs
// @Produce json
// @Param id path string true "Target graph"
// @Success 200 {object} ArchiveResponse
// @Router /graphs/{id}/archive [get]
func (s *Server) archivedVersions(c echo.Context) error {
	target := c.Param("id")
	versions, err := s.engine.ArchivedVersions(c.Request().Context(), target)
	if err != nil {
		return engineError(err, "Graph", target)
	}
	if versions == nil {
		versions = []string{}
	}
	return c.JSON(http.StatusOK, ArchiveResponse{Target: target, Versions: versions})
}

func contentTypeFor(format graph.Format) string {
	if format == graph.FormatJSONLD {
		return "application/ld+json"
	}
	return "application/n-quads"
}

func formatFor(contentType string) graph.Format {
	if strings.Contains(contentType, "json") {
		return graph.FormatJSONLD
	}
	return graph.FormatNQuads
}
