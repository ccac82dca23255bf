package cache

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/config"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxLookupKey_Normalises(t *testing.T) {
	a := taxLookupKey(domain.TaxLookupRequest{NCM: "1006.30.11", UF: "sp", Date: "2026-06-01"})
	b := taxLookupKey(domain.TaxLookupRequest{NCM: " 1006.30.11 ", UF: "SP", Date: "2026-06-01"})
	c := taxLookupKey(domain.TaxLookupRequest{NCM: "1006.30.11", UF: "RJ", Date: "2026-06-01"})

	assert.Equal(t, "tax:lookup:SP:1006.30.11:2026-06-01", a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRuleKeyPattern_CoversEveryDateOfOneRule(t *testing.T) {
	// GIVEN cached lookups of one rule on two dates and of its neighbours
	pattern := ruleKeyPattern("1006.30.11", "sp")
	assert.Equal(t, "tax:lookup:SP:1006.30.11:*", pattern)

	// WHEN the pattern prefix is compared with each key
	prefix := pattern[:len(pattern)-1]
	hit := func(req domain.TaxLookupRequest) bool {
		key := taxLookupKey(req)
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}

	// THEN only the rule's own dates match
	assert.True(t, hit(domain.TaxLookupRequest{NCM: "1006.30.11", UF: "SP", Date: "2026-06-01"}))
	assert.True(t, hit(domain.TaxLookupRequest{NCM: "1006.30.11", UF: "SP", Date: "2027-01-01"}))
	assert.False(t, hit(domain.TaxLookupRequest{NCM: "1006.30.11", UF: "RJ", Date: "2026-06-01"}))
	assert.False(t, hit(domain.TaxLookupRequest{NCM: "1006.30.19", UF: "SP", Date: "2026-06-01"}))
}

func TestRuleKeyPattern_EscapesGlobCharacters(t *testing.T) {
	assert.Equal(t, `tax:lookup:SP:10\*:*`, ruleKeyPattern("10*", "SP"))
	assert.Equal(t, `tax:lookup:\[SP\]:1\?:*`, ruleKeyPattern("1?", "[sp]"))
}

func TestNewTaxCache_DisabledIsNoop(t *testing.T) {
	c, err := NewTaxCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	req := domain.TaxLookupRequest{NCM: "1", UF: "SP", Date: "2026-01-01"}
	require.NoError(t, c.SetLookup(ctx, req, domain.TaxLookupResponse{IBS: 1}))

	resp, ok, err := c.GetLookup(ctx, req)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, resp)
	assert.NoError(t, c.InvalidateRule(ctx, "1", "SP"))
	assert.NoError(t, c.InvalidateAll(ctx))
	assert.NoError(t, c.Close())
}

func TestNewTaxCache_UnreachableRedis(t *testing.T) {
	_, err := NewTaxCache(config.CacheConfig{Enabled: true, RedisHost: "127.0.0.1", RedisPort: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.CacheConfig{RedisPassword: "secret", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = redisOptions(config.CacheConfig{RedisURL: "redis://:pw@cache:6380/3"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)

	_, err = redisOptions(config.CacheConfig{RedisURL: "://bad"})
	assert.Error(t, err)
}

func TestLookupTTL(t *testing.T) {
	assert.Equal(t, defaultTaxTTL, lookupTTL(config.CacheConfig{}))
	assert.Equal(t, 30*time.Second, lookupTTL(config.CacheConfig{TaxTTLSeconds: 30}))
}
