package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"leadconsole_backend/internal/leads/exports"
)

const manifestContentType = "application/json"

// ManifestArchiver writes export manifests as JSON objects, one per batch,
// under exports/YYYY/MM/DD/<batch id>.json.
type ManifestArchiver struct {
	storage StorageService
	bucket  string
}

var _ exports.ManifestArchiver = (*ManifestArchiver)(nil)

func NewManifestArchiver(storage StorageService, bucket string) *ManifestArchiver {
	return &ManifestArchiver{storage: storage, bucket: bucket}
}

func (a *ManifestArchiver) ArchiveManifest(ctx context.Context, manifest exports.Manifest) (string, error) {
	data, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("marshal export manifest: %w", err)
	}

	key := ManifestKey(manifest)
	if err := a.storage.PutObject(ctx, a.bucket, key, manifestContentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", err
	}
	return key, nil
}

// ManifestKey returns the object key for manifest, dated in UTC.
func ManifestKey(manifest exports.Manifest) string {
	return fmt.Sprintf("exports/%s/%s.json", manifest.ExportedAt.UTC().Format("2006/01/02"), manifest.BatchID)
}
