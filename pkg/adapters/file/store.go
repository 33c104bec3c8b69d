package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// Store implements ports.HistoryStore using the local filesystem.
// Each chain history is a JSON file named after the chain id.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".weft/history".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".weft", "history")
	}
	return &Store{BasePath: basePath}
}

// "int:0000000000000001" is not a portable file name on Windows.
func fileName(id domain.ChainID) string {
	return strings.Replace(id.String(), ":", "-", 1) + ".json"
}

func parseFileName(name string) (domain.ChainID, bool) {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return domain.ChainID{}, false
	}
	id, err := domain.ParseChainID(strings.Replace(base, "-", ":", 1))
	if err != nil {
		return domain.ChainID{}, false
	}
	return id, true
}

// Save writes the history atomically: a temp file in the same directory is
// synced and then renamed over the destination.
func (s *Store) Save(ctx context.Context, id domain.ChainID, entries []domain.HistoryEntry) error {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure history directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-*.json.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := filepath.Join(s.BasePath, fileName(id))
	if _, err := os.Stat(destPath); err == nil {
		// os.Rename does not replace on Windows.
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to replace history file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the archived history of a chain.
func (s *Store) Load(ctx context.Context, id domain.ChainID) ([]domain.HistoryEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.BasePath, fileName(id)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var entries []domain.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history of %s: %w", id, err)
	}
	return entries, nil
}

// Delete removes the history file. Deleting a missing history is not an error.
func (s *Store) Delete(ctx context.Context, id domain.ChainID) error {
	err := os.Remove(filepath.Join(s.BasePath, fileName(id)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete history file: %w", err)
	}
	return nil
}

// List returns the chains with a history file. Foreign files are ignored.
func (s *Store) List(ctx context.Context) ([]domain.ChainID, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.ChainID{}, nil
		}
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	ids := make([]domain.ChainID, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := parseFileName(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
