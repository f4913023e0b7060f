package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

// createPatch stores a new draft patch.
// @Summary Create a patch
// @Description Creates a draft patch. An empty baseVersion takes the target's current version.
// @Tags patches
// @Accept json
// @Produce json
// @Param patch body patch.CreateRequest true "Patch"
// @Success 201 {object} models.Patch
// @Failure 400 {object} APIError
// @Failure 409 {object} APIError
// @Router /patches [post]
func (s *Server) createPatch(c echo.Context) error {
	var req patch.CreateRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestError("Invalid request body", err.Error())
	}

	p, err := s.engine.CreatePatch(c.Request().Context(), req)
	if err != nil {
		return engineError(err, "Patch", req.ID)
	}

	s.BroadcastEvent(EventPatchCreated, p)
	return c.JSON(http.StatusCreated, p)
}

// createPatchDocument stores a draft patch from a JSON-LD document.
// @Summary Create a patch from JSON-LD
// @Tags patches
// @Accept application/ld+json
// @Produce json
// @Success 201 {object} models.Patch
// @Failure 422 {object} DocumentErrorResponse
// @Router /patches/jsonld [post]
func (s *Server) createPatchDocument(c echo.Context) error {
	body, _ := c.Get(ContextKeyDocument).([]byte)

	result, doc, err := s.engine.Documents().ValidatePatchDocument(body)
	if err != nil {
		return InternalError("Document validation failed", err.Error())
	}
	if !result.Valid {
		return c.JSON(http.StatusUnprocessableEntity, DocumentErrorResponse{
			Message: "Patch document is invalid",
			Result:  result,
		})
	}

	p, err := s.engine.CreatePatch(c.Request().Context(), patch.CreateRequest{
		ID:          doc.ID,
		Kind:        doc.Kind,
		Target:      doc.Target,
		Label:       doc.Label,
		Description: doc.Description,
		Version:     doc.Version,
		Operations:  doc.Operations,
		BaseVersion: doc.BaseVersion,
		DependsOn:   doc.DependsOn,
		Spore:       doc.Spore,
	})
	if err != nil {
		return engineError(err, "Patch", doc.ID)
	}

	s.BroadcastEvent(EventPatchCreated, p)
	return c.JSON(http.StatusCreated, p)
}

// listPatches lists patches.
// @Summary List patches
// @Tags patches
// @Produce json
// @Param target query string false "Target graph"
// @Param status query string false "Patch status"
// @Param spore query string false "Owning spore"
// @Param limit query int false "Page size" default(100)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} PatchesResponse
// @Router /patches [get]
func (s *Server) listPatches(c echo.Context) error {
	filter := storage.PatchFilter{
		Target: c.QueryParam("target"),
		Spore:  c.QueryParam("spore"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		status, err := models.ParsePatchStatus(raw)
		if err != nil {
			return BadRequestError("Invalid status parameter", err.Error())
		}
		filter.Status = status
	}

	patches, err := s.engine.ListPatches(c.Request().Context(), filter)
	if err != nil {
		return engineError(err, "Patch", "")
	}

	limit, offset := parsePagination(c)
	page := paginate(patches, limit, offset)
	return c.JSON(http.StatusOK, PatchesResponse{
		Count:   len(page),
		Total:   len(patches),
		Patches: page,
	})
}

// getPatch returns one patch.
// @Summary Get a patch
// @Tags patches
// @Produce json
// @Param id path string true "Patch ID"
// @Success 200 {object} models.Patch
// @Failure 404 {object} APIError
// @Router /patches/{id} [get]
func (s *Server) getPatch(c echo.Context) error {
	id := c.Param("id")
	p, err := s.engine.GetPatch(c.Request().Context(), id)
	if err != nil {
		return engineError(err, "Patch", id)
	}
	return c.JSON(http.StatusOK, p)
}

// submitPatch moves a draft patch to pending.
// @Summary Submit a patch
// @Tags patches
// @Produce json
// @Param id path string true "Patch ID"
// @Success 200 {object} models.Patch
// @Failure 409 {object} APIError
// @Router /patches/{id}/submit [post]
func (s *Server) submitPatch(c echo.Context) error {
	id := c.Param("id")
	p, err := s.engine.SubmitPatch(c.Request().Context(), id)
	if err != nil {
		return engineError(err, "Patch", id)
	}
	s.BroadcastEvent(EventPatchSubmitted, p)
	return c.JSON(http.StatusOK, p)
}

// applyPatch applies one pending patch to its target.
// @Summary Apply a patch
// @Tags patches
// @Produce json
// @Param id path string true "Patch ID"
// @Success 200 {object} ApplyResponse
// @Failure 409 {object} APIError
// @Failure 422 {object} APIError
// @Router /patches/{id}/apply [post]
func (s *Server) applyPatch(c echo.Context) error {
	return s.runPatch(c, false)
}

// rollbackPatch reverts one applied patch.
// @Summary Roll back a patch
// @Tags patches
// @Produce json
// @Param id path string true "Patch ID"
// @Success 200 {object} ApplyResponse
// @Failure 409 {object} APIError
// @Router /patches/{id}/rollback [post]
func (s *Server) rollbackPatch(c echo.Context) error {
	return s.runPatch(c, true)
}

func (s *Server) runPatch(c echo.Context, rollback bool) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	run, event := s.engine.ApplyPatch, EventPatchApplied
	if rollback {
		run, event = s.engine.RollbackPatch, EventPatchRolledBack
	}

	version, err := run(ctx, id)
	if err != nil {
		return engineError(err, "Patch", id)
	}

	p, err := s.engine.GetPatch(ctx, id)
	if err != nil {
		return engineError(err, "Patch", id)
	}

	resp := ApplyResponse{Patch: p, Version: version}
	s.BroadcastEvent(event, resp)
	return c.JSON(http.StatusOK, resp)
}

// rebasePatch moves a pending or failed patch onto a new base version.
// @Summary Rebase a patch
// @Tags patches
// @Accept json
// @Produce json
// @Param id path string true "Patch ID"
// @Param rebase body RebaseRequest false "New base version"
// @Success 200 {object} models.Patch
// @Failure 409 {object} APIError
// @Router /patches/{id}/rebase [post]
func (s *Server) rebasePatch(c echo.Context) error {
	id := c.Param("id")

	var req RebaseRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return BadRequestError("Invalid request body", err.Error())
		}
	}

	p, err := s.engine.RebasePatch(c.Request().Context(), id, req.BaseVersion)
	if err != nil {
		return engineError(err, "Patch", id)
	}
	s.BroadcastEvent(EventPatchRebased, p)
	return c.JSON(http.StatusOK, p)
}
