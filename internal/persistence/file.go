package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"smartbanker/backend/internal/account/domain"
)

// FileGateway keeps the collection as a JSON array in a single file.
type FileGateway struct {
	path string
}

// NewFileGateway returns a gateway backed by the file at path.
func NewFileGateway(path string) *FileGateway {
	return &FileGateway{path: path}
}

// LoadAll reads the file. A missing file is initialised with an empty array.
func (g *FileGateway) LoadAll(ctx context.Context) ([]domain.Account, error) {
	data, err := os.ReadFile(g.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := g.SaveAll(ctx, nil); err != nil {
			return nil, err
		}
		return []domain.Account{}, nil
	}
	if err != nil {
		return nil, storageError("read", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Account{}, nil
	}
	var accounts []domain.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, storageError("decode", err)
	}
	return accounts, nil
}

// SaveAll writes to a temp file in the same directory, syncs it, then renames over the target.
func (g *FileGateway) SaveAll(ctx context.Context, accounts []domain.Account) error {
	if accounts == nil {
		accounts = []domain.Account{}
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return storageError("encode", err)
	}
	dir := filepath.Dir(g.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageError("mkdir", err)
	}
	tmp, err := os.CreateTemp(dir, ".accounts-*.tmp")
	if err != nil {
		return storageError("create temp", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return storageError("write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return storageError("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return storageError("close", err)
	}
	if err := os.Rename(tmpName, g.path); err != nil {
		_ = os.Remove(tmpName)
		return storageError("rename", err)
	}
	return nil
}
