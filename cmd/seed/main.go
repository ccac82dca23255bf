package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/cache"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/config"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/repository"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type dbKey struct{}

// ruleColumns is the header of a CSV rule seed, matching the ncm_rules table.
var ruleColumns = []string{
	"id", "ncm", "uf", "municipio", "scenario", "date_start", "date_end",
	"aliquota_ibs", "aliquota_cbs", "aliquota_is", "explanation_markdown", "active",
}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Postgres connection string; the configured database is used when empty",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	var (
		db  *repository.DB
		err error
	)
	if url := c.String("db-url"); url != "" {
		db, err = repository.Open("pgx", url)
		if err == nil {
			err = repository.Migrate(c.Context, db)
		}
	} else {
		db, err = repository.NewDB(c.Context, &config.Load().Database)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey{}, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*repository.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func taxService(c *cli.Context) (*service.TaxService, error) {
	db, ok := c.Context.Value(dbKey{}).(*repository.DB)
	if !ok {
		return nil, errors.New("database is not initialised")
	}
	return service.NewTaxService(repository.NewRuleRepository(db), lookupCache(), rates.NewStore(nil)), nil
}

// lookupCache connects to the server's lookup cache so seeded rules are not
// shadowed by stale lookups. Without redis the seed still runs.
func lookupCache() cache.TaxCache {
	c, err := cache.NewTaxCache(config.Load().Cache)
	if err != nil {
		log.Printf("warning: lookup cache unavailable, cached lookups are kept: %v", err)
		return nil
	}
	return c
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Seed and snapshot the NCM rule database",
		Commands: []*cli.Command{
			{
				Name:  "rules",
				Usage: "Upsert NCM rules from a JSON or CSV file",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "file",
						Usage:   "Rule seed file (.json or .csv)",
						Value:   "./data/seeds/ncm_rules.json",
						EnvVars: []string{"RULES_SEED_FILE"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: seedRules,
			},
			{
				Name:   "count",
				Usage:  "Print the number of stored rules",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					db := c.Context.Value(dbKey{}).(*repository.DB)
					n, err := repository.NewRuleRepository(db).Count(c.Context)
					if err != nil {
						return err
					}
					fmt.Println(n)
					return nil
				},
			},
			{
				Name:   "snapshot",
				Usage:  "Export every stored rule to object storage",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: exportSnapshot,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func seedRules(c *cli.Context) error {
	path := c.String("file")
	log.Printf("Seeding ncm_rules from %s\n", path)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	var rules []domain.NCMRule
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rules, err = readRulesCSV(f)
	default:
		err = json.NewDecoder(f).Decode(&rules)
	}
	if err != nil {
		return fmt.Errorf("failed to read rules from %s: %w", path, err)
	}

	svc, err := taxService(c)
	if err != nil {
		return err
	}
	n, err := svc.SaveRules(c.Context, rules)
	if err != nil {
		return fmt.Errorf("failed to save rules: %w", err)
	}

	log.Printf("Seeded %d rules\n", n)
	return nil
}

func readRulesCSV(r io.Reader) ([]domain.NCMRule, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"id", "ncm", "uf", "date_start"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q (expected %s)", col, strings.Join(ruleColumns, ","))
		}
	}

	var rules []domain.NCMRule
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(col string) string {
			if i, ok := index[col]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		rule := domain.NCMRule{
			ID:          get("id"),
			NCM:         get("ncm"),
			UF:          get("uf"),
			Municipio:   nullIfEmpty(get("municipio")),
			Scenario:    nullIfEmpty(get("scenario")),
			DateStart:   get("date_start"),
			DateEnd:     nullIfEmpty(get("date_end")),
			Explanation: nullIfEmpty(get("explanation_markdown")),
			Active:      true,
		}
		if rule.AliquotaIBS, err = parseRate(get("aliquota_ibs")); err != nil {
			return nil, fmt.Errorf("line %d: aliquota_ibs: %w", line, err)
		}
		if rule.AliquotaCBS, err = parseRate(get("aliquota_cbs")); err != nil {
			return nil, fmt.Errorf("line %d: aliquota_cbs: %w", line, err)
		}
		if rule.AliquotaIS, err = parseRate(get("aliquota_is")); err != nil {
			return nil, fmt.Errorf("line %d: aliquota_is: %w", line, err)
		}
		if active := get("active"); active != "" {
			if rule.Active, err = strconv.ParseBool(active); err != nil {
				return nil, fmt.Errorf("line %d: active: %w", line, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// nullIfEmpty returns nil if the string is empty
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseRate(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func exportSnapshot(c *cli.Context) error {
	cfg := config.Load()
	objects, err := storage.New(c.Context, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialise object storage: %w", err)
	}

	svc, err := taxService(c)
	if err != nil {
		return err
	}
	key, err := service.NewSnapshotService(svc, objects, cfg.Storage.SnapshotPrefix).Export(c.Context)
	if err != nil {
		return err
	}

	log.Printf("Exported rules snapshot to %s\n", key)
	return nil
}
