package repository

import (
	"context"
	"errors"
	"os"

	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
	"github.com/noah-isme/edupage-sync/pkg/storage"
)

// FileStateRepository keeps one file per state key under a directory.
type FileStateRepository struct {
	storage *storage.LocalStorage
}

// NewFileStateRepository wraps local storage as a state store.
func NewFileStateRepository(store *storage.LocalStorage) *FileStateRepository {
	return &FileStateRepository{storage: store}
}

func (r *FileStateRepository) Get(_ context.Context, key string) ([]byte, error) {
	data, err := r.storage.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.ErrStateMiss
		}
		return nil, err
	}
	return data, nil
}

func (r *FileStateRepository) Set(_ context.Context, key string, value []byte) error {
	return r.storage.Save(key, value)
}
