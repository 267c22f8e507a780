package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"leadconsole_backend/internal/leads/exports"

	"github.com/google/uuid"
)

type putCall struct {
	bucket, key, contentType string
	body                     []byte
	size                     int64
}

type fakeStorage struct {
	puts []putCall
	err  error
}

func (f *fakeStorage) PutObject(_ context.Context, bucket, key, contentType string, reader io.Reader, size int64) error {
	if f.err != nil {
		return f.err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, contentType: contentType, body: body, size: size})
	return nil
}

func (f *fakeStorage) EnsureBucketExists(context.Context, string) error { return nil }

func TestArchiveManifestWritesDatedJSONObject(t *testing.T) {
	store := &fakeStorage{}
	archiver := NewManifestArchiver(store, "lead-export-manifests")

	batchID := uuid.MustParse("7b0f5c1e-4a39-4d3b-9a61-2f1e0c8d9a10")
	// 23:30 IST on March 9 is still March 9 in UTC.
	ist := time.FixedZone("IST", 5*3600+1800)
	manifest := exports.Manifest{
		BatchID:    batchID,
		ExportedAt: time.Date(2026, 3, 9, 23, 30, 0, 0, ist),
		ExportedBy: "Asha",
		Leads:      []exports.ManifestLead{{SessionID: "S1", StudentName: "Ravi", Phone: "+919876543210"}},
	}

	key, err := archiver.ArchiveManifest(context.Background(), manifest)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	wantKey := "exports/2026/03/09/" + batchID.String() + ".json"
	if key != wantKey {
		t.Fatalf("expected key %s, got %s", wantKey, key)
	}
	if len(store.puts) != 1 {
		t.Fatalf("expected one upload, got %d", len(store.puts))
	}
	put := store.puts[0]
	if put.bucket != "lead-export-manifests" || put.contentType != "application/json" {
		t.Fatalf("unexpected upload target: %+v", put)
	}
	if put.size != int64(len(put.body)) {
		t.Fatalf("size %d does not match body length %d", put.size, len(put.body))
	}

	var decoded exports.Manifest
	if err := json.Unmarshal(put.body, &decoded); err != nil {
		t.Fatalf("decode uploaded manifest: %v", err)
	}
	if decoded.BatchID != batchID || len(decoded.Leads) != 1 || decoded.Leads[0].Phone != "+919876543210" {
		t.Fatalf("unexpected uploaded manifest: %+v", decoded)
	}
}

func TestArchiveManifestReturnsUploadError(t *testing.T) {
	uploadErr := errors.New("bucket unavailable")
	archiver := NewManifestArchiver(&fakeStorage{err: uploadErr}, "b")

	_, err := archiver.ArchiveManifest(context.Background(), exports.Manifest{BatchID: uuid.New(), ExportedAt: time.Now()})
	if !errors.Is(err, uploadErr) {
		t.Fatalf("expected upload error, got %v", err)
	}
}
