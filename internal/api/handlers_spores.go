package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mycelium/internal/engine"
)

// createSpore stores a new spore.
// @Summary Create a spore
// @Description Groups patches for integration. An empty conformanceLevel takes the configured default.
// @Tags spores
// @Accept json
// @Produce json
// @Param spore body engine.SporeRequest true "Spore"
// @Success 201 {object} models.Spore
// @Failure 400 {object} APIError
// @Router /spores [post]
func (s *Server) createSpore(c echo.Context) error {
	var req engine.SporeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestError("Invalid request body", err.Error())
	}

	spore, err := s.engine.CreateSpore(c.Request().Context(), req)
	if err != nil {
		return engineError(err, "Spore", req.ID)
	}

	s.BroadcastEvent(EventSporeCreated, spore)
	return c.JSON(http.StatusCreated, spore)
}

// createSporeDocument stores a spore from a JSON-LD document.
// @Summary Create a spore from JSON-LD
// @Tags spores
// @Accept application/ld+json
// @Produce json
// @Success 201 {object} models.Spore
// @Failure 422 {object} DocumentErrorResponse
// @Router /spores/jsonld [post]
func (s *Server) createSporeDocument(c echo.Context) error {
	body, _ := c.Get(ContextKeyDocument).([]byte)

	result, doc, err := s.engine.Documents().ValidateSporeDocument(body)
	if err != nil {
		return InternalError("Document validation failed", err.Error())
	}
	if !result.Valid {
		return c.JSON(http.StatusUnprocessableEntity, DocumentErrorResponse{
			Message: "Spore document is invalid",
			Result:  result,
		})
	}

	spore, err := s.engine.CreateSpore(c.Request().Context(), engine.SporeRequest{
		ID:           doc.ID,
		Label:        doc.Label,
		Description:  doc.Description,
		Version:      doc.Version,
		Level:        doc.Level,
		Patches:      doc.Patches,
		Targets:      doc.Targets,
		BaseVersions: doc.BaseVersions,
	})
	if err != nil {
		return engineError(err, "Spore", doc.ID)
	}

	s.BroadcastEvent(EventSporeCreated, spore)
	return c.JSON(http.StatusCreated, spore)
}

// listSpores lists spores.
// @Summary List spores
// @Tags spores
// @Produce json
// @Param limit query int false "Page size" default(100)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} SporesResponse
// @Router /spores [get]
func (s *Server) listSpores(c echo.Context) error {
	spores, err := s.engine.ListSpores(c.Request().Context())
	if err != nil {
		return engineError(err, "Spore", "")
	}

	limit, offset := parsePagination(c)
	page := paginate(spores, limit, offset)
	return c.JSON(http.StatusOK, SporesResponse{
		Count:  len(page),
		Total:  len(spores),
		Spores: page,
	})
}

// getSpore returns one spore.
// @Summary Get a spore
// @Tags spores
// @Produce json
// @Param id path string true "Spore ID"
// @Success 200 {object} models.Spore
// @Failure 404 {object} APIError
// @Router /spores/{id} [get]
func (s *Server) getSpore(c echo.Context) error {
	id := c.Param("id")
	spore, err := s.engine.GetSpore(c.Request().Context(), id)
	if err != nil {
		return engineError(err, "Spore", id)
	}
	return c.JSON(http.StatusOK, spore)
}

// validateSpore runs the integration gate checks without mutating anything.
// @Summary Validate a spore
// @Tags spores
// @Produce json
// @Param id path string true "Spore ID"
// @Success 200 {object} ValidationResponse
// @Failure 404 {object} APIError
// @Router /spores/{id}/validate [get]
func (s *Server) validateSpore(c echo.Context) error {
	id := c.Param("id")
	reports, err := s.engine.ValidateSpore(c.Request().Context(), id)
	if err != nil {
		return engineError(err, "Spore", id)
	}

	valid := true
	for _, r := range reports {
		valid = valid && r.Valid
	}
	return c.JSON(http.StatusOK, ValidationResponse{Spore: id, Valid: valid, Reports: reports})
}

// migrateSpore sets a spore's version label and optionally re-pins its base versions.
// @Summary Migrate a spore version
// @Tags spores
// @Accept json
// @Produce json
// @Param id path string true "Spore ID"
// @Param migrate body MigrateRequest true "Migration"
// @Success 200 {object} models.Spore
// @Failure 404 {object} APIError
// @Router /spores/{id}/migrate [post]
func (s *Server) migrateSpore(c echo.Context) error {
	id := c.Param("id")

	var req MigrateRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestError("Invalid request body", err.Error())
	}
	if req.Version == "" {
		return ValidationError("Invalid migration", map[string]string{"version": "version is required"})
	}

	spore, err := s.engine.MigrateSporeVersion(c.Request().Context(), id, req.Version, req.PinBases)
	if err != nil {
		return engineError(err, "Spore", id)
	}
	s.BroadcastEvent(EventSporeMigrated, spore)
	return c.JSON(http.StatusOK, spore)
}
