package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/config"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/csvio"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/money"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/pipeline"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/planning"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/storage"
	"github.com/andresuchdata/mix-credit-guru/backend-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func contextFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "destino", Usage: "Purchase destination (A, B, ...)", Value: "A"},
		&cli.StringFlag{Name: "regime", Usage: "Buyer tax regime (normal, presumido, simples)", Value: "normal"},
		&cli.StringFlag{Name: "scenario", Usage: "Rate scenario; the configured default when empty"},
		&cli.StringFlag{Name: "data", Usage: "Reference date (YYYY-MM-DD); today when empty"},
		&cli.StringFlag{Name: "uf", Usage: "Buyer state", Value: "SP"},
		&cli.StringFlag{Name: "municipio", Usage: "Buyer municipality code"},
	}
}

func quoteContext(c *cli.Context) domain.QuoteContext {
	return domain.QuoteContext{
		Destino:   c.String("destino"),
		Regime:    c.String("regime"),
		Scenario:  c.String("scenario"),
		Data:      c.String("data"),
		UF:        c.String("uf"),
		Municipio: c.String("municipio"),
	}
}

func newQuoteService(cfg *config.Config) (*service.QuoteService, error) {
	store, err := rates.NewBundledStore()
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled rate rules: %w", err)
	}
	return service.NewQuoteService(service.QuoteDeps{
		Store:           store,
		DefaultScenario: cfg.Engine.DefaultScenario,
	})
}

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger.Setup(cfg.Log.Format, cfg.Log.Level)

	app := &cli.App{
		Name:  "quote",
		Usage: "Rank supplier quotations offline",
		Commands: []*cli.Command{
			{
				Name:      "rank",
				Usage:     "Rank the suppliers of a CSV or XLSX sheet",
				ArgsUsage: "<file>",
				Flags: append(contextFlags(),
					&cli.StringFlag{Name: "out", Usage: "Write the ranking to this .csv or .xlsx file instead of stdout"},
				),
				Action: func(c *cli.Context) error {
					return rankFile(c, cfg)
				},
			},
			{
				Name:  "batch",
				Usage: "Rank every sheet of a directory, or of a bucket prefix",
				Flags: append(contextFlags(),
					&cli.StringFlag{Name: "dir", Usage: "Local directory with supplier sheets"},
					&cli.StringFlag{Name: "prefix", Usage: "Object storage prefix with supplier sheets"},
					&cli.StringFlag{Name: "output-prefix", Usage: "Object storage prefix for rankings", Value: "rankings"},
					&cli.StringFlag{Name: "output-dir", Usage: "Directory for ranking outputs", Value: pipeline.DefaultConfig().OutputDir},
					&cli.StringFlag{Name: "work-dir", Usage: "Download directory for bucket inputs", Value: "./data/tmp/quotes"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent workers", Value: cfg.Engine.BatchWorkers},
					&cli.BoolFlag{Name: "xlsx", Usage: "Write rankings as .xlsx"},
				),
				Action: func(c *cli.Context) error {
					return runBatch(c, cfg)
				},
			},
			{
				Name:  "template",
				Usage: "Write an example supplier sheet",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "Write to this file instead of stdout"},
				},
				Action: writeTemplate,
			},
			{
				Name:  "timeline",
				Usage: "Print the rates of every transition year",
				Flags: append(contextFlags(),
					&cli.StringFlag{Name: "ncm", Usage: "Item NCM code"},
					&cli.BoolFlag{Name: "reducao", Usage: "Apply the reduced-rate rider"},
				),
				Action: func(c *cli.Context) error {
					return printTimeline(c, cfg)
				},
			},
			{
				Name:  "plan",
				Usage: "Compare the yearly tax of a company under each regime",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cnae", Usage: "Main activity code, e.g. 6201-5/01", Required: true},
					&cli.Float64Flag{Name: "faturamento", Usage: "Yearly revenue", Required: true},
					&cli.Float64Flag{Name: "folha", Usage: "Yearly payroll"},
					&cli.Float64Flag{Name: "despesas", Usage: "Yearly deductible expenses"},
					&cli.StringFlag{Name: "tipo", Usage: "Activity type for unknown codes (comercio, industria, servicos)"},
					&cli.BoolFlag{Name: "json", Usage: "Print the full comparison as JSON"},
				},
				Action: printPlan,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("quote failed")
	}
}

func rankFile(c *cli.Context, cfg *config.Config) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("missing input file")
	}
	if !pipeline.Supported(path) {
		return fmt.Errorf("unsupported file %s: expected .csv or .xlsx", path)
	}

	svc, err := newQuoteService(cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var suppliers []domain.Supplier
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		suppliers, err = csvio.ReadSuppliersXLSX(f)
	} else {
		suppliers, err = csvio.ReadSuppliers(f)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	ranked, err := svc.Rank(c.Context, service.RankRequest{Context: quoteContext(c), Suppliers: suppliers})
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		return csvio.WriteRanking(os.Stdout, ranked)
	}
	w, err := os.Create(out)
	if err != nil {
		return err
	}
	defer w.Close()
	if strings.EqualFold(filepath.Ext(out), ".xlsx") {
		return csvio.WriteRankingXLSX(w, ranked)
	}
	return csvio.WriteRanking(w, ranked)
}

func writeTemplate(c *cli.Context) error {
	out := c.String("out")
	if out == "" {
		return csvio.WriteSuppliers(os.Stdout, csvio.ExampleSuppliers())
	}
	w, err := os.Create(out)
	if err != nil {
		return err
	}
	defer w.Close()
	return csvio.WriteSuppliers(w, csvio.ExampleSuppliers())
}

func runBatch(c *cli.Context, cfg *config.Config) error {
	svc, err := newQuoteService(cfg)
	if err != nil {
		return err
	}
	qc := quoteContext(c)
	rank := func(ctx context.Context, suppliers []domain.Supplier) ([]domain.MixResultadoItem, error) {
		return svc.Rank(ctx, service.RankRequest{Context: qc, Suppliers: suppliers})
	}

	runner := pipeline.NewRunner(pipeline.Config{
		WorkerCount: c.Int("workers"),
		OutputDir:   c.String("output-dir"),
		XLSXOutput:  c.Bool("xlsx"),
	}, rank)

	var results []pipeline.FileResult
	switch {
	case c.String("prefix") != "":
		objects, err := storage.New(c.Context, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialise object storage: %w", err)
		}
		results, err = pipeline.NewOrchestrator(objects, runner).
			Run(c.Context, c.String("prefix"), c.String("output-prefix"), c.String("work-dir"))
		if err != nil {
			return err
		}
	case c.String("dir") != "":
		files, err := listSheets(c.String("dir"))
		if err != nil {
			return err
		}
		results, err = runner.Run(c.Context, files)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --dir or --prefix is required")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func listSheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && pipeline.Supported(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func printTimeline(c *cli.Context, cfg *config.Config) error {
	svc, err := newQuoteService(cfg)
	if err != nil {
		return err
	}

	req := service.RatesRequest{Context: quoteContext(c)}
	if c.String("ncm") != "" || c.Bool("reducao") {
		req.Flags = &domain.FlagsItem{NCM: c.String("ncm"), Reducao: c.Bool("reducao")}
	}
	timeline, err := svc.Timeline(c.Context, req)
	if err != nil {
		return err
	}

	for _, point := range timeline {
		fmt.Printf("%s\tibs=%g\tcbs=%g\tis=%g\n", point.Scenario, point.Rates.IBS, point.Rates.CBS, point.Rates.IS)
	}
	return nil
}

func printPlan(c *cli.Context) error {
	company := planning.Company{
		CNAE:               c.String("cnae"),
		TipoAtividade:      c.String("tipo"),
		Faturamento:        c.Float64("faturamento"),
		Folha:              c.Float64("folha"),
		DespesasDedutiveis: c.Float64("despesas"),
	}
	cmp, err := service.NewPlanningService(nil, nil).Compare(c.Context, company)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	}

	for _, r := range []planning.RegimeResult{cmp.Simples, cmp.Presumido, cmp.Real} {
		if !r.Elegivel {
			fmt.Printf("%s\tinelegível: %s\n", r.Regime.Label(), r.MotivoInelegibilidade)
			continue
		}
		fmt.Printf("%s\t%s\t%.2f%%\n", r.Regime.Label(), money.FormatBRL(r.ImpostoAnual), r.AliquotaEfetiva*100)
	}
	fmt.Printf("Mais vantajoso: %s (economia de %s)\n", cmp.MaisVantajoso.Label(), money.FormatBRL(cmp.EconomiaAnual))
	fmt.Printf("2033: %s (%+.1f%%)\n", money.FormatBRL(cmp.PosReforma.Imposto2033), cmp.PosReforma.VariacaoPercentual)
	return nil
}
