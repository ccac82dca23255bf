package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

const snapshotStampLayout = "20060102T150405Z"

// SnapshotService moves hydration payloads between the rule repository,
// object storage and the in-memory store.
type SnapshotService struct {
	tax    *TaxService
	store  storage.ObjectStorage
	prefix string
	now    func() time.Time
}

func NewSnapshotService(tax *TaxService, store storage.ObjectStorage, prefix string) *SnapshotService {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "snapshots/rules"
	}
	return &SnapshotService{tax: tax, store: store, prefix: prefix, now: time.Now}
}

// Export writes every stored rule to a timestamped object and returns its key.
func (s *SnapshotService) Export(ctx context.Context) (string, error) {
	payload, err := s.tax.Rules(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := path.Join(s.prefix, "rules-"+s.now().UTC().Format(snapshotStampLayout)+".json")
	if err := s.store.UploadObject(ctx, key, data); err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", key, err)
	}
	log.Info().Str("key", key).Int("rules", len(payload)).Msg("snapshot: exported rules")
	return key, nil
}

// Latest returns the key of the most recent snapshot.
func (s *SnapshotService) Latest(ctx context.Context) (string, error) {
	objects, err := s.store.ListObjects(ctx, s.prefix+"/")
	if err != nil {
		return "", fmt.Errorf("list snapshots: %w", err)
	}
	latest := ""
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		if obj.Key > latest {
			latest = obj.Key
		}
	}
	if latest == "" {
		return "", storage.ErrObjectNotFound
	}
	return latest, nil
}

// Import hydrates the in-memory store from a snapshot. An empty key means
// the latest snapshot.
func (s *SnapshotService) Import(ctx context.Context, key string) (string, rates.HydrateStats, error) {
	if key == "" {
		latest, err := s.Latest(ctx)
		if err != nil {
			return "", rates.HydrateStats{}, err
		}
		key = latest
	}

	data, err := s.store.ReadObject(ctx, key)
	if err != nil {
		return key, rates.HydrateStats{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	var payload []domain.HydrationRule
	if err := json.Unmarshal(data, &payload); err != nil {
		return key, rates.HydrateStats{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return key, s.tax.Hydrate(ctx, payload), nil
}
