package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/ranking"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheet = "nome,tipo,regime,preco,ibs,cbs,is,frete\n" +
	"Alfa,fabricante,normal,100,0,0,0,10\n" +
	"Beta,distribuidor,normal,95,0,0,0,12\n"

func rankWithCarriedRates(ctx context.Context, suppliers []domain.Supplier) ([]domain.MixResultadoItem, error) {
	return ranking.NewEngine(nil, nil).RankSuppliers(suppliers, ranking.Context{Destino: "A", Regime: "normal"}), nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRunner_RanksEachFile(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	files := []string{
		writeFile(t, in, "loja-1.csv", sheet),
		writeFile(t, in, "loja-2.csv", sheet),
		writeFile(t, in, "notas.txt", "ignored"),
	}

	results, err := NewRunner(Config{WorkerCount: 2, OutputDir: out}, rankWithCarriedRates).Run(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results[:2] {
		assert.Equal(t, FileStatusCompleted, r.Status)
		assert.Equal(t, 2, r.Suppliers)
		assert.Equal(t, "Beta", r.Winner)
		assert.Equal(t, 107.0, r.CustoEfetivo)

		content, err := os.ReadFile(r.Output)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasSuffix(lines[1], ",107,1"))
	}
	assert.Equal(t, filepath.Join(out, "loja-1-ranking.csv"), results[0].Output)
	assert.Equal(t, FileStatusSkipped, results[2].Status)
}

func TestRunner_FailedFileDoesNotStopBatch(t *testing.T) {
	in := t.TempDir()
	files := []string{
		writeFile(t, in, "ok.csv", sheet),
		filepath.Join(in, "missing.csv"),
	}
	failing := func(ctx context.Context, s []domain.Supplier) ([]domain.MixResultadoItem, error) {
		if len(s) == 0 {
			return nil, errors.New("empty")
		}
		return rankWithCarriedRates(ctx, s)
	}

	results, err := NewRunner(Config{WorkerCount: 1, OutputDir: t.TempDir()}, failing).Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, FileStatusCompleted, results[0].Status)
	assert.Equal(t, FileStatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "read failed")
}

func TestRunner_XLSXOutput(t *testing.T) {
	in := t.TempDir()
	results, err := NewRunner(Config{OutputDir: t.TempDir(), XLSXOutput: true}, rankWithCarriedRates).
		Run(context.Background(), []string{writeFile(t, in, "loja.csv", sheet)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(results[0].Output, "loja-ranking.xlsx"))
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(Config{OutputDir: t.TempDir()}, rankWithCarriedRates).
		Run(ctx, []string{writeFile(t, t.TempDir(), "a.csv", sheet)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestrator_RoundTripsThroughStorage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.UploadObject(ctx, "cotacoes/2026-06/loja-1.csv", []byte(sheet)))
	require.NoError(t, store.UploadObject(ctx, "cotacoes/2026-06/readme.md", []byte("#")))

	runner := NewRunner(Config{WorkerCount: 2, OutputDir: t.TempDir()}, rankWithCarriedRates)
	results, err := NewOrchestrator(store, runner).Run(ctx, "cotacoes/", "rankings/2026-06", t.TempDir())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rankings/2026-06/loja-1-ranking.csv", results[0].Output)

	objects, err := store.ListObjects(ctx, "rankings/")
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"rankings/2026-06/loja-1-ranking.csv"}, keys)
}

func TestOrchestrator_EmptyPrefix(t *testing.T) {
	runner := NewRunner(Config{OutputDir: t.TempDir()}, rankWithCarriedRates)
	results, err := NewOrchestrator(storage.NewMemoryStorage(), runner).Run(context.Background(), "none/", "out", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunner_SameBaseNameInDifferentFolders(t *testing.T) {
	// GIVEN two stores whose sheets share a file name
	in := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(in, "loja-a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(in, "loja-b"), 0o755))
	gammaWins := "nome,tipo,regime,preco,ibs,cbs,is,frete\n" +
		"Gama,fabricante,normal,50,0,0,0,1\n" +
		"Beta,distribuidor,normal,95,0,0,0,12\n"
	files := []string{
		writeFile(t, in, filepath.Join("loja-a", "cotacao.csv"), sheet),
		writeFile(t, in, filepath.Join("loja-b", "cotacao.csv"), gammaWins),
	}
	out := t.TempDir()

	// WHEN the batch runs
	results, err := NewRunner(Config{WorkerCount: 2, OutputDir: out}, rankWithCarriedRates).Run(context.Background(), files)
	require.NoError(t, err)

	// THEN each store keeps its own ranking
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(out, "loja-a", "cotacao-ranking.csv"), results[0].Output)
	assert.Equal(t, filepath.Join(out, "loja-b", "cotacao-ranking.csv"), results[1].Output)
	assert.Equal(t, "Beta", results[0].Winner)
	assert.Equal(t, "Gama", results[1].Winner)

	a, err := os.ReadFile(results[0].Output)
	require.NoError(t, err)
	b, err := os.ReadFile(results[1].Output)
	require.NoError(t, err)
	assert.Contains(t, strings.Split(string(a), "\n")[1], "Beta")
	assert.Contains(t, strings.Split(string(b), "\n")[1], "Gama")
}

func TestRunner_SameStemDifferentExtension(t *testing.T) {
	// GIVEN a CSV and an XLSX sheet with the same stem
	in := t.TempDir()
	csvFile := writeFile(t, in, "loja.csv", sheet)
	xlsxFile := filepath.Join(in, "loja.xlsx")
	out := t.TempDir()

	// WHEN output names are assigned
	outputs := NewRunner(Config{OutputDir: out}, rankWithCarriedRates).outputPaths([]string{csvFile, xlsxFile})

	// THEN the second name carries the input extension
	assert.Equal(t, []string{
		filepath.Join(out, "loja-ranking.csv"),
		filepath.Join(out, "loja-xlsx-ranking.csv"),
	}, outputs)
}

func TestOrchestrator_KeepsFolderLayout(t *testing.T) {
	// GIVEN sheets with the same name under two store folders
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.UploadObject(ctx, "in/loja-a/cotacao.csv", []byte(sheet)))
	require.NoError(t, store.UploadObject(ctx, "in/loja-b/cotacao.csv", []byte(sheet)))

	// WHEN the orchestrator ranks the prefix
	runner := NewRunner(Config{WorkerCount: 2, OutputDir: t.TempDir()}, rankWithCarriedRates)
	results, err := NewOrchestrator(store, runner).Run(ctx, "in/", "out", t.TempDir())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// THEN both rankings are uploaded under their own folder
	objects, err := store.ListObjects(ctx, "out/")
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"out/loja-a/cotacao-ranking.csv", "out/loja-b/cotacao-ranking.csv"}, keys)
}
