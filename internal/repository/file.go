package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/varoOP/crimedb/internal/domain"
)

// FileRepository implements domain.ExportRepository. The file extension picks
// the encoding: .yaml/.yml for YAML, anything else for JSON.
type FileRepository struct {
	log zerolog.Logger
}

// NewFileRepository creates a new file-based repository
func NewFileRepository(log zerolog.Logger) *FileRepository {
	return &FileRepository{
		log: log.With().Str("module", "repository").Logger(),
	}
}

var _ domain.ExportRepository = (*FileRepository)(nil)

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Get reads incidents from a file
func (r *FileRepository) Get(ctx context.Context, path string) ([]domain.Incident, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	incidents := []domain.Incident{}
	if isYAML(path) {
		err = yaml.Unmarshal(body, &incidents)
	} else {
		err = json.Unmarshal(body, &incidents)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return incidents, nil
}

// Store writes incidents to a file, replacing any existing content
func (r *FileRepository) Store(ctx context.Context, path string, incidents []domain.Incident) error {
	if incidents == nil {
		incidents = []domain.Incident{}
	}

	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = yaml.Marshal(incidents)
	} else {
		b, err = json.MarshalIndent(incidents, "", "   ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode incidents: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", path, err)
	}

	r.log.Debug().Str("path", path).Int("count", len(incidents)).Msg("stored incidents")
	return nil
}
