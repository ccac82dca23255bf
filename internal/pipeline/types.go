package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
)

// RankFunc ranks the suppliers read from one input sheet.
type RankFunc func(ctx context.Context, suppliers []domain.Supplier) ([]domain.MixResultadoItem, error)

// Config holds configuration for a batch run
type Config struct {
	WorkerCount int    // Number of concurrent workers
	OutputDir   string // Directory for ranking outputs
	XLSXOutput  bool   // Write rankings as .xlsx instead of .csv
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		OutputDir:   "data/output/rankings",
	}
}

// FileStatus represents the state of a single file
type FileStatus string

const (
	FileStatusCompleted FileStatus = "completed"
	FileStatusFailed    FileStatus = "failed"
	FileStatusSkipped   FileStatus = "skipped"
)

// FileResult is the outcome of ranking one input sheet.
type FileResult struct {
	Input        string     `json:"input"`
	Output       string     `json:"output,omitempty"`
	Status       FileStatus `json:"status"`
	Suppliers    int        `json:"suppliers"`
	Winner       string     `json:"winner,omitempty"`
	CustoEfetivo float64    `json:"custoEfetivo,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Supported reports whether path is a sheet the runner can read.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}
