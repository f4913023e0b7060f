package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// integrate applies the pending patches of a batch of spores.
// @Summary Integrate spores
// @Description Validates every spore against its targets, then applies the batch in dependency order. A rejected batch leaves every target untouched.
// @Tags integration
// @Accept json
// @Produce json
// @Param batch body BatchRequest true "Spores"
// @Success 200 {object} integration.Result
// @Failure 422 {object} integration.Result
// @Router /integrate [post]
func (s *Server) integrate(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestError("Invalid request body", err.Error())
	}

	res, err := s.engine.IntegrateSpores(c.Request().Context(), req.Spores)
	if res != nil {
		s.BroadcastEvent(EventIntegrationFinished, res)
		if err != nil {
			return c.JSON(http.StatusUnprocessableEntity, res)
		}
		return c.JSON(http.StatusOK, res)
	}
	return engineError(err, "Spore", "")
}

// plan returns the dependency waves a batch would be applied in.
// @Summary Plan an integration
// @Tags integration
// @Accept json
// @Produce json
// @Param batch body BatchRequest true "Spores"
// @Success 200 {object} PlanResponse
// @Failure 422 {object} APIError
// @Router /plan [post]
func (s *Server) plan(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestError("Invalid request body", err.Error())
	}

	waves, err := s.engine.Plan(c.Request().Context(), req.Spores)
	if err != nil {
		return engineError(err, "Spore", "")
	}
	return c.JSON(http.StatusOK, PlanResponse{Waves: waves})
}
