// Package fs is the local-filesystem implementation of storage.Adapter.
package fs

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// Adapter lists version directories and reads artifact bytes directly off
// the local disk.
type Adapter struct {
	logger logging.Logger
}

// New constructs a filesystem-backed storage.Adapter.
func New(logger logging.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// ListVersions implements storage.Adapter.
func (a *Adapter) ListVersions(_ context.Context, modelRoot string) (map[int64]struct{}, error) {
	entries, err := os.ReadDir(modelRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int64]struct{}{}, nil
		}
		return nil, errors.Wrap(err, errors.CodeStorageError, "list versions failed").
			WithDetail(modelRoot)
	}

	versions := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil || v <= 0 {
			continue
		}
		versions[v] = struct{}{}
	}
	return versions, nil
}

// OpenArtifact implements storage.Adapter.
func (a *Adapter) OpenArtifact(_ context.Context, modelRoot string, version int64, relPath string) ([]byte, error) {
	path := filepath.Join(modelRoot, strconv.FormatInt(version, 10), relPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("artifact not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.CodeStorageError, "open artifact failed").WithDetail(path)
	}
	return data, nil
}

// Exists implements storage.Adapter.
func (a *Adapter) Exists(_ context.Context, modelRoot string) (bool, error) {
	info, err := os.Stat(modelRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.CodeStorageError, "stat model root failed").WithDetail(modelRoot)
	}
	return info.IsDir(), nil
}
