package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// Orchestrator feeds a Runner with sheets kept in object storage and uploads
// the rankings back.
type Orchestrator struct {
	store  storage.ObjectStorage
	runner *Runner
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(store storage.ObjectStorage, runner *Runner) *Orchestrator {
	return &Orchestrator{store: store, runner: runner}
}

// Run downloads every supported object under inputPrefix into workDir, ranks
// them and uploads each output under outputPrefix.
func (o *Orchestrator) Run(ctx context.Context, inputPrefix, outputPrefix, workDir string) ([]FileResult, error) {
	objects, err := o.store.ListObjects(ctx, inputPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", inputPrefix, err)
	}

	var files []string
	for _, obj := range objects {
		if !Supported(obj.Key) {
			continue
		}
		dest := filepath.Join(workDir, filepath.FromSlash(obj.Key))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, fmt.Errorf("failed creating directory for %s: %w", dest, err)
		}
		if err := o.store.DownloadObject(ctx, obj.Key, dest); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", obj.Key, err)
		}
		files = append(files, dest)
	}

	if len(files) == 0 {
		log.Info().Str("prefix", inputPrefix).Msg("no supplier sheets to rank")
		return nil, nil
	}

	results, err := o.runner.Run(ctx, files)
	if err != nil {
		return results, err
	}

	for i := range results {
		if results[i].Status != FileStatusCompleted {
			continue
		}
		data, err := os.ReadFile(results[i].Output)
		if err != nil {
			return results, fmt.Errorf("failed reading %s: %w", results[i].Output, err)
		}
		rel, err := filepath.Rel(o.runner.config.OutputDir, results[i].Output)
		if err != nil {
			rel = filepath.Base(results[i].Output)
		}
		key := path.Join(outputPrefix, filepath.ToSlash(rel))
		if err := o.store.UploadObject(ctx, key, data); err != nil {
			return results, fmt.Errorf("failed to upload %s: %w", key, err)
		}
		results[i].Output = key
	}
	return results, nil
}
