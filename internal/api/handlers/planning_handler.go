package handlers

import (
	"net/http"
	"strings"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/planning"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type PlanningHandler struct {
	planning *service.PlanningService
}

func NewPlanningHandler(planning *service.PlanningService) *PlanningHandler {
	return &PlanningHandler{planning: planning}
}

func (h *PlanningHandler) Compare(c *gin.Context) {
	var company planning.Company
	if !bindJSON(c, &company) {
		return
	}
	cmp, err := h.planning.Compare(c.Request.Context(), company)
	if err != nil {
		respondError(c, err, "failed to compare tax regimes")
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (h *PlanningHandler) Items(c *gin.Context) {
	var req service.ItemsRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.planning.Items(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to compute item taxes")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CNAE takes the code as a trailing path so "6201-5/01" needs no escaping.
func (h *PlanningHandler) CNAE(c *gin.Context) {
	code := strings.TrimSpace(strings.Trim(c.Param("code"), "/"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cnae code is required"})
		return
	}
	info, err := h.planning.CNAE(code)
	if err != nil {
		respondError(c, err, "failed to look up cnae")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *PlanningHandler) Transition(c *gin.Context) {
	c.JSON(http.StatusOK, h.planning.Transicao())
}
