package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/config"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	taxLookupNamespace = "tax:lookup"
	taxScanBatchSize   = 100
	defaultTaxTTL      = 5 * time.Minute
	pingTimeout        = 5 * time.Second
)

// TaxCache stores tax lookup responses keyed by UF, NCM and date.
type TaxCache interface {
	GetLookup(ctx context.Context, req domain.TaxLookupRequest) (*domain.TaxLookupResponse, bool, error)
	SetLookup(ctx context.Context, req domain.TaxLookupRequest, resp domain.TaxLookupResponse) error
	// InvalidateRule drops every cached date of one NCM in one UF.
	InvalidateRule(ctx context.Context, ncm, uf string) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisTaxCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopTaxCache struct{}

// NewTaxCache returns a redis-backed cache, or a no-op cache when caching is
// disabled.
func NewTaxCache(cfg config.CacheConfig) (TaxCache, error) {
	if !cfg.Enabled {
		return &noopTaxCache{}, nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisTaxCache{client: client, ttl: lookupTTL(cfg)}, nil
}

func NewNoopTaxCache() TaxCache {
	return &noopTaxCache{}
}

// redisOptions prefers REDIS_URL and otherwise assembles the address from
// host and port, defaulting to a local server.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func lookupTTL(cfg config.CacheConfig) time.Duration {
	if cfg.TaxTTLSeconds <= 0 {
		return defaultTaxTTL
	}
	return time.Duration(cfg.TaxTTLSeconds) * time.Second
}

func (c *redisTaxCache) GetLookup(ctx context.Context, req domain.TaxLookupRequest) (*domain.TaxLookupResponse, bool, error) {
	payload, err := c.client.Get(ctx, taxLookupKey(req)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var resp domain.TaxLookupResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, false, fmt.Errorf("decode tax lookup cache: %w", err)
	}
	return &resp, true, nil
}

func (c *redisTaxCache) SetLookup(ctx context.Context, req domain.TaxLookupRequest, resp domain.TaxLookupResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode tax lookup cache: %w", err)
	}
	if err := c.client.Set(ctx, taxLookupKey(req), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisTaxCache) InvalidateRule(ctx context.Context, ncm, uf string) error {
	return c.unlinkMatching(ctx, ruleKeyPattern(ncm, uf))
}

func (c *redisTaxCache) InvalidateAll(ctx context.Context) error {
	return c.unlinkMatching(ctx, taxLookupNamespace+":*")
}

// unlinkMatching scans pattern and unlinks each scanned batch in one
// pipeline.
func (c *redisTaxCache) unlinkMatching(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, taxScanBatchSize).Iterator()
	batch := make([]string, 0, taxScanBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == taxScanBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	return flush()
}

func (c *redisTaxCache) Close() error {
	return c.client.Close()
}

func (n *noopTaxCache) GetLookup(context.Context, domain.TaxLookupRequest) (*domain.TaxLookupResponse, bool, error) {
	return nil, false, nil
}

func (n *noopTaxCache) SetLookup(context.Context, domain.TaxLookupRequest, domain.TaxLookupResponse) error {
	return nil
}

func (n *noopTaxCache) InvalidateRule(context.Context, string, string) error { return nil }

func (n *noopTaxCache) InvalidateAll(context.Context) error { return nil }

func (n *noopTaxCache) Close() error { return nil }

// taxLookupKey is "tax:lookup:<UF>:<NCM>:<date>", so every cached date of
// one rule shares a scannable prefix.
func taxLookupKey(req domain.TaxLookupRequest) string {
	return strings.Join([]string{
		taxLookupNamespace,
		normalizeUF(req.UF),
		normalizeNCM(req.NCM),
		strings.TrimSpace(req.Date),
	}, ":")
}

func ruleKeyPattern(ncm, uf string) string {
	return strings.Join([]string{
		taxLookupNamespace,
		escapeGlob(normalizeUF(uf)),
		escapeGlob(normalizeNCM(ncm)),
		"*",
	}, ":")
}

func normalizeUF(uf string) string { return strings.ToUpper(strings.TrimSpace(uf)) }

func normalizeNCM(ncm string) string { return strings.ToUpper(strings.TrimSpace(ncm)) }

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
