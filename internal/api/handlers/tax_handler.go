package handlers

import (
	"net/http"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type TaxHandler struct {
	tax       *service.TaxService
	snapshots *service.SnapshotService
}

// NewTaxHandler builds the handler. snapshots may be nil when object storage
// is disabled.
func NewTaxHandler(tax *service.TaxService, snapshots *service.SnapshotService) *TaxHandler {
	return &TaxHandler{tax: tax, snapshots: snapshots}
}

func (h *TaxHandler) Lookup(c *gin.Context) {
	var req domain.TaxLookupRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.tax.Lookup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to look up tax rates")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TaxHandler) GetRules(c *gin.Context) {
	rules, err := h.tax.Rules(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch tax rules")
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *TaxHandler) SaveRules(c *gin.Context) {
	var rules []domain.NCMRule
	if !bindJSON(c, &rules) {
		return
	}
	n, err := h.tax.SaveRules(c.Request.Context(), rules)
	if err != nil {
		respondError(c, err, "failed to save tax rules")
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": n})
}

func (h *TaxHandler) Hydrate(c *gin.Context) {
	var records []domain.HydrationRule
	if !bindJSON(c, &records) {
		return
	}
	c.JSON(http.StatusOK, h.tax.Hydrate(c.Request.Context(), records))
}

func (h *TaxHandler) Sync(c *gin.Context) {
	stats, err := h.tax.Sync(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to sync tax rules")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *TaxHandler) ExportSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage is disabled"})
		return
	}
	key, err := h.snapshots.Export(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to export rules snapshot")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key})
}

// ImportSnapshot hydrates from ?key=, or from the latest snapshot.
func (h *TaxHandler) ImportSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage is disabled"})
		return
	}
	key, stats, err := h.snapshots.Import(c.Request.Context(), c.Query("key"))
	if err != nil {
		respondError(c, err, "failed to import rules snapshot")
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "stats": stats})
}
