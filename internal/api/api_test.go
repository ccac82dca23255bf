package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/planning"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/repository"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, objects storage.ObjectStorage) *gin.Engine {
	t.Helper()

	db, err := repository.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db))

	tree := rates.NewTree()
	tree.Base.Global[domain.ScenarioDefault] = []rates.Rule{
		{ID: "base", Rates: rates.FullRates(domain.Aliquotas{IBS: 10, CBS: 5})},
	}
	store := rates.NewStore(tree)

	tax := service.NewTaxService(repository.NewRuleRepository(db), nil, store)
	quotes, err := service.NewQuoteService(service.QuoteDeps{Store: store})
	require.NoError(t, err)

	services := &Services{
		TaxService:      tax,
		QuoteService:    quotes,
		PlanningService: service.NewPlanningService(nil, nil),
	}
	if objects != nil {
		services.SnapshotService = service.NewSnapshotService(tax, objects, "")
	}
	return NewRouter(services, []string{"*"})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doJSON(t, newTestRouter(t, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestTaxLookup(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/tax/lookup", map[string]string{"ncm": "1006.30.11"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/tax/lookup", domain.TaxLookupRequest{NCM: "1006.30.11", UF: "SP", Date: "2026-06-01"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ibs":12,"cbs":12,"is":0,"explanation":null}`, w.Body.String())

	ibs, cbs := 4.0, 2.0
	w = doJSON(t, router, http.MethodPost, "/api/v1/tax/rules", []domain.NCMRule{{
		ID: "arroz-sp", NCM: "1006.30.11", UF: "SP", DateStart: "2026-01-01",
		AliquotaIBS: &ibs, AliquotaCBS: &cbs, Active: true,
	}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"saved":1}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/tax/lookup", domain.TaxLookupRequest{NCM: "1006.30.11", UF: "SP", Date: "2026-06-01"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ibs":4,"cbs":2,"is":0,"explanation":null}`, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/tax/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rules []domain.HydrationRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "default", rules[0].Scenario)

	w = doJSON(t, router, http.MethodPost, "/api/v1/tax/rules/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"global":0,"ncm":1,"skipped":0,"rejected":0}`, w.Body.String())
}

func TestRankSuppliers(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/quotes/rank", service.RankRequest{
		Context: domain.QuoteContext{Destino: "A", Regime: "normal", UF: "SP", Data: "2026-06-01"},
		Suppliers: []domain.Supplier{
			{ID: "caro", Preco: 150, Frete: 10},
			{ID: "barato", Preco: 100, Frete: 5},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var ranked []domain.MixResultadoItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, "barato", ranked[0].ID)
	assert.Equal(t, 105.0, ranked[0].CustoEfetivo)
	assert.Equal(t, 2, ranked[1].Ranking)
}

func TestRankSuppliers_BadDate(t *testing.T) {
	w := doJSON(t, newTestRouter(t, nil), http.MethodPost, "/api/v1/quotes/rank", service.RankRequest{
		Context: domain.QuoteContext{Data: "amanha"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportSuppliersCSV(t *testing.T) {
	router := newTestRouter(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "cotacao.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("nome,tipo,regime,preco,ibs,cbs,is,frete\nCaro,industria,normal,150,0,0,0,10\nBarato,industria,normal,100,0,0,0,5\n"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("destino", "A"))
	require.NoError(t, mw.WriteField("regime", "normal"))
	require.NoError(t, mw.WriteField("data", "2026-06-01"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/import?format=csv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "Barato,"))
}

func TestTimelineAndClassify(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/scenarios/timeline?uf=SP&data=2026-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var timeline []domain.ScenarioRates
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &timeline))
	assert.Len(t, timeline, len(domain.TransitionScenarios))

	w = doJSON(t, router, http.MethodGet, "/api/v1/ncm/1006.30.11", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"matched":true`)
}

func TestOptimizer(t *testing.T) {
	w := doJSON(t, newTestRouter(t, nil), http.MethodPost, "/api/v1/optimizer", map[string]any{
		"quantity": 100,
		"offers": []map[string]any{
			{"id": "a", "price": 10, "capacity": 40},
			{"id": "b", "price": 12},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"allocation":{"a":40,"b":60},"cost":1120,"violations":[],"feasible":true}`, w.Body.String())
}

func TestNormalizeValidationError(t *testing.T) {
	w := doJSON(t, newTestRouter(t, nil), http.MethodPost, "/api/v1/quotes/normalize", service.NormalizeRequest{
		Preco: 10, PackInfo: []float64{1}, De: domain.UnitKg, Para: domain.UnitL,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "conversao invalida")
}

func TestNormalizeAcceptsAnyUnitCase(t *testing.T) {
	// GIVEN a request with upper-case unit labels
	body := json.RawMessage(`{"preco":10,"packInfo":[1],"de":"KG","para":"G"}`)

	// WHEN it is normalised
	w := doJSON(t, newTestRouter(t, nil), http.MethodPost, "/api/v1/quotes/normalize", body)

	// THEN the labels resolve to the catalogue units
	require.Equal(t, http.StatusOK, w.Code)
	var resp service.NormalizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 0.01, resp.PrecoNormalizado, 1e-9)
}

func TestSupplierTemplateRoundTripsThroughImport(t *testing.T) {
	router := newTestRouter(t, nil)

	// GIVEN the downloadable supplier template
	w := doJSON(t, router, http.MethodGet, "/api/v1/quotes/template", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cotacao-modelo.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "nome,tipo,regime,preco,ibs,cbs,is,frete", lines[0])

	// WHEN it is uploaded back unchanged
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "cotacao-modelo.csv")
	require.NoError(t, err)
	_, err = part.Write(w.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("data", "2026-06-01"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// THEN both example suppliers are ranked
	require.Equal(t, http.StatusOK, rec.Code)
	var ranked []domain.MixResultadoItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranked))
	require.Len(t, ranked, 2)
	assert.ElementsMatch(t, []string{"Fornecedor A", "Fornecedor B"}, []string{ranked[0].Nome, ranked[1].Nome})
	assert.Equal(t, 1, ranked[0].Ranking)
}

func TestContracts(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/contracts", domain.Contract{ProdutoID: "arroz", PrecoBase: 5})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/contracts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Contract
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, domain.UnitUn, list[0].Unidade)
}

func TestSnapshots(t *testing.T) {
	w := doJSON(t, newTestRouter(t, nil), http.MethodPost, "/api/v1/tax/snapshots", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	router := newTestRouter(t, storage.NewMemoryStorage())
	w = doJSON(t, router, http.MethodPost, "/api/v1/tax/snapshots/import", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/tax/snapshots", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/tax/snapshots/import", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlanningCompare(t *testing.T) {
	router := newTestRouter(t, nil)

	// GIVEN a software company with 30% payroll
	w := doJSON(t, router, http.MethodPost, "/api/v1/planning/compare", planning.Company{
		CNAE: "6201-5/01", Faturamento: 1000000, Folha: 300000,
	})

	// THEN presumed profit wins and the reform timeline covers 2026-2033
	require.Equal(t, http.StatusOK, w.Code)
	var cmp planning.Comparison
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cmp))
	assert.Equal(t, planning.RegimePresumido, cmp.MaisVantajoso)
	assert.Equal(t, "III", cmp.Simples.Simples.Anexo)
	require.Len(t, cmp.PosReforma.Timeline, 8)
	assert.Equal(t, 2033, cmp.PosReforma.Timeline[7].Ano)

	// WHEN the revenue is missing
	w = doJSON(t, router, http.MethodPost, "/api/v1/planning/compare", planning.Company{CNAE: "6201-5/01"})

	// THEN the request is rejected
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "faturamento")
}

func TestPlanningItems(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/planning/items", json.RawMessage(`{
		"faturamentoAnual": 180000,
		"itens": [{"id": "arroz", "ncm": "1006.30.11", "valorCompra": 100}]
	}`))

	require.Equal(t, http.StatusOK, w.Code)
	var resp service.ItemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Itens, 1)
	assert.Equal(t, "Isento (Cesta Básica)", resp.Itens[0].Regimes.Reforma2033.Classificacao)
	assert.Equal(t, 150.0, resp.Totais[planning.ItemRegimeReforma].ValorTotalVenda)

	w = doJSON(t, router, http.MethodPost, "/api/v1/planning/items", json.RawMessage(`{
		"itens": [{"id": "x", "ncm": "1006", "valorCompra": 100}]
	}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid ncm code")
}

func TestPlanningCNAEAndTransition(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/planning/cnae/6201-5/01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"anexoFatorR":"III"`)

	w = doJSON(t, router, http.MethodGet, "/api/v1/planning/cnae/9999-9/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/planning/transition", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var years []planning.TransitionYear
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &years))
	assert.Len(t, years, 8)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, allowAll := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " ", "*"})
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)
	assert.True(t, allowAll)
}
