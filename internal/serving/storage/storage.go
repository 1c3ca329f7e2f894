// Package storage defines the capability set consumed by the rest of the
// serving engine (C1): enumerate versioned directories under a model root
// and fetch artifact bytes on demand. Two implementations exist — fs (local
// filesystem) and objectstore (MinIO) — both satisfying this interface so
// the Model Manager and Repository Watcher never know which backend a given
// model root uses.
package storage

import "context"

// Adapter is the capability set described in §4.1.
type Adapter interface {
	// ListVersions derives version numbers from the immediate children of
	// modelRoot whose names parse as positive integers; non-parsing children
	// are ignored. A missing root yields an empty set, not an error.
	ListVersions(ctx context.Context, modelRoot string) (map[int64]struct{}, error)

	// OpenArtifact reads one artifact file beneath modelRoot/version.
	OpenArtifact(ctx context.Context, modelRoot string, version int64, relPath string) ([]byte, error)

	// Exists reports whether modelRoot is present at all.
	Exists(ctx context.Context, modelRoot string) (bool, error)
}
