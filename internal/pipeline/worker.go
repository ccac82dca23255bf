package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/csvio"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Runner ranks supplier sheets concurrently.
type Runner struct {
	config Config
	rank   RankFunc
}

// NewRunner creates a new batch runner
func NewRunner(config Config, rank RankFunc) *Runner {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	return &Runner{config: config, rank: rank}
}

// Run ranks every file and returns one result per input, in input order. A
// failing file is reported in its result; only cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, files []string) ([]FileResult, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	outputs := r.outputPaths(files)
	results := make([]FileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.WorkerCount)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.processFile(ctx, file, outputs[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// processFile ranks file and writes the ranking to output.
func (r *Runner) processFile(ctx context.Context, file, output string) FileResult {
	startTime := time.Now()
	result := FileResult{Input: file}

	if !Supported(file) {
		result.Status = FileStatusSkipped
		result.Error = "unsupported file type"
		return result
	}

	suppliers, err := readSuppliers(file)
	if err != nil {
		return failed(result, fmt.Errorf("read failed: %w", err))
	}
	result.Suppliers = len(suppliers)

	ranked, err := r.rank(ctx, suppliers)
	if err != nil {
		return failed(result, fmt.Errorf("ranking failed: %w", err))
	}

	if err := r.writeRanking(output, ranked); err != nil {
		return failed(result, err)
	}

	result.Output = output
	result.Status = FileStatusCompleted
	if len(ranked) > 0 {
		result.Winner = ranked[0].Nome
		result.CustoEfetivo = ranked[0].CustoEfetivo
	}

	log.Info().
		Str("file", file).
		Int("suppliers", len(suppliers)).
		Dur("duration", time.Since(startTime)).
		Msg("ranked supplier sheet")
	return result
}

func failed(result FileResult, err error) FileResult {
	log.Warn().Err(err).Str("file", result.Input).Msg("batch file failed")
	result.Status = FileStatusFailed
	result.Error = err.Error()
	return result
}

func readSuppliers(file string) ([]domain.Supplier, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(file), ".xlsx") {
		return csvio.ReadSuppliersXLSX(f)
	}
	return csvio.ReadSuppliers(f)
}

func (r *Runner) outputExt() string {
	if r.config.XLSXOutput {
		return ".xlsx"
	}
	return ".csv"
}

// outputPaths names one ranking per input, keeping the input's path relative
// to the deepest directory shared by all inputs so that sheets with the same
// base name in different folders do not overwrite each other. Names still
// colliding (loja.csv next to loja.xlsx) get the input extension, then a
// counter.
func (r *Runner) outputPaths(files []string) []string {
	root := commonDir(files)
	ext := r.outputExt()
	taken := make(map[string]bool, len(files))
	outputs := make([]string, len(files))

	for i, file := range files {
		rel := filepath.Base(file)
		if root != "" {
			if p, err := filepath.Rel(root, filepath.Clean(file)); err == nil {
				rel = p
			}
		}
		inExt := filepath.Ext(rel)
		stem := strings.TrimSuffix(rel, inExt)

		name := stem + "-ranking" + ext
		if taken[name] && inExt != "" {
			name = stem + "-" + strings.TrimPrefix(inExt, ".") + "-ranking" + ext
		}
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s-%d-ranking%s", stem, n, ext)
		}
		taken[name] = true
		outputs[i] = filepath.Join(r.config.OutputDir, name)
	}
	return outputs
}

// commonDir returns the deepest directory containing every file, or "" when
// the paths share none.
func commonDir(files []string) string {
	if len(files) == 0 {
		return ""
	}
	dir := filepath.Dir(filepath.Clean(files[0]))
	for _, f := range files[1:] {
		f = filepath.Clean(f)
		for !within(dir, f) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return ""
			}
			dir = parent
		}
	}
	return dir
}

func within(dir, file string) bool {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (r *Runner) writeRanking(output string, ranked []domain.MixResultadoItem) error {
	var (
		buf bytes.Buffer
		err error
	)
	if r.config.XLSXOutput {
		err = csvio.WriteRankingXLSX(&buf, ranked)
	} else {
		err = csvio.WriteRanking(&buf, ranked)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", output, err)
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", output, err)
	}
	return nil
}
