package handlers

import (
	"net/http"

	"github.com/m1z23r/drift/pkg/drift"
)

type PlanHandler struct {
	planService PlanServiceInterface
}

func NewPlanHandler(planService PlanServiceInterface) *PlanHandler {
	return &PlanHandler{planService: planService}
}

func (h *PlanHandler) List(c *drift.Context) {
	plans, err := h.planService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, plans)
}
