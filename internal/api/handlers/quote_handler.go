package handlers

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/csvio"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/optimizer"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type QuoteHandler struct {
	quotes *service.QuoteService
}

func NewQuoteHandler(quotes *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

func (h *QuoteHandler) Rank(c *gin.Context) {
	var req service.RankRequest
	if !bindJSON(c, &req) {
		return
	}
	ranked, err := h.quotes.Rank(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to rank suppliers")
		return
	}
	c.JSON(http.StatusOK, ranked)
}

// ImportSuppliers ranks the suppliers of an uploaded CSV or XLSX sheet. The
// ranking is returned as JSON unless ?format=csv or ?format=xlsx is given.
func (h *QuoteHandler) ImportSuppliers(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	f, err := file.Open()
	if err != nil {
		respondError(c, err, "failed to open uploaded file")
		return
	}
	defer f.Close()

	var suppliers []domain.Supplier
	switch strings.ToLower(filepath.Ext(file.Filename)) {
	case ".csv":
		suppliers, err = csvio.ReadSuppliers(f)
	case ".xlsx":
		suppliers, err = csvio.ReadSuppliersXLSX(f)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type, expected .csv or .xlsx"})
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("filename", file.Filename).Msg("failed to parse supplier sheet")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier sheet"})
		return
	}

	ranked, err := h.quotes.Rank(c.Request.Context(), service.RankRequest{
		Context: domain.QuoteContext{
			Destino:   c.PostForm("destino"),
			Regime:    c.PostForm("regime"),
			Scenario:  c.PostForm("scenario"),
			Data:      c.PostForm("data"),
			UF:        c.PostForm("uf"),
			Municipio: c.PostForm("municipio"),
		},
		Suppliers: suppliers,
	})
	if err != nil {
		respondError(c, err, "failed to rank suppliers")
		return
	}

	var buf bytes.Buffer
	switch c.Query("format") {
	case "csv":
		if err := csvio.WriteRanking(&buf, ranked); err != nil {
			respondError(c, err, "failed to write ranking")
			return
		}
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "xlsx":
		if err := csvio.WriteRankingXLSX(&buf, ranked); err != nil {
			respondError(c, err, "failed to write ranking")
			return
		}
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	default:
		c.JSON(http.StatusOK, ranked)
	}
}

// Template returns an example supplier sheet in the layout ImportSuppliers
// reads.
func (h *QuoteHandler) Template(c *gin.Context) {
	var buf bytes.Buffer
	if err := csvio.WriteSuppliers(&buf, csvio.ExampleSuppliers()); err != nil {
		respondError(c, err, "failed to write template")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="cotacao-modelo.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *QuoteHandler) RecipeMix(c *gin.Context) {
	var req service.RecipeMixRequest
	if !bindJSON(c, &req) {
		return
	}
	mix, err := h.quotes.RecipeMix(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to compute recipe mix")
		return
	}
	c.JSON(http.StatusOK, mix)
}

func (h *QuoteHandler) UnitPrice(c *gin.Context) {
	var req service.UnitPriceRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.quotes.UnitPrice(req))
}

func (h *QuoteHandler) Normalize(c *gin.Context) {
	var req service.NormalizeRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.quotes.Normalize(req)
	if err != nil {
		respondError(c, err, "failed to normalize offer")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *QuoteHandler) Impact(c *gin.Context) {
	var req service.ImpactRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.quotes.Impact(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to compute impact")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *QuoteHandler) Optimize(c *gin.Context) {
	var in optimizer.Input
	if !bindJSON(c, &in) {
		return
	}
	res := h.quotes.Optimize(in, nil)
	c.JSON(http.StatusOK, gin.H{
		"allocation": res.Allocation,
		"cost":       res.Cost,
		"violations": res.Violations,
		"feasible":   res.Feasible(),
	})
}

func (h *QuoteHandler) ComputeRates(c *gin.Context) {
	var req service.RatesRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.quotes.ResolveRates(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to compute rates")
		return
	}
	c.JSON(http.StatusOK, res)
}

// Timeline reads its context from the query string: uf, municipio, data,
// ncm, itemId and reducao.
func (h *QuoteHandler) Timeline(c *gin.Context) {
	req := service.RatesRequest{
		Context: domain.QuoteContext{
			UF:        c.Query("uf"),
			Municipio: c.Query("municipio"),
			Data:      c.Query("data"),
		},
		ItemID: c.Query("itemId"),
	}
	reducao, _ := strconv.ParseBool(c.DefaultQuery("reducao", "false"))
	if ncm := c.Query("ncm"); ncm != "" || reducao {
		req.Flags = &domain.FlagsItem{NCM: ncm, Reducao: reducao}
	}

	timeline, err := h.quotes.Timeline(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to compute scenario timeline")
		return
	}
	c.JSON(http.StatusOK, timeline)
}

func (h *QuoteHandler) Classify(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ncm code is required"})
		return
	}
	c.JSON(http.StatusOK, h.quotes.Classify(code))
}

func (h *QuoteHandler) ListContracts(c *gin.Context) {
	c.JSON(http.StatusOK, h.quotes.Contracts())
}

func (h *QuoteHandler) AddContract(c *gin.Context) {
	var contract domain.Contract
	if !bindJSON(c, &contract) {
		return
	}
	c.JSON(http.StatusCreated, h.quotes.AddContract(contract))
}
