package exports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Manifest is the archived record of one export batch.
type Manifest struct {
	BatchID    uuid.UUID      `json:"batchId"`
	ExportedAt time.Time      `json:"exportedAt"`
	ExportedBy string         `json:"exportedBy"`
	Leads      []ManifestLead `json:"leads"`
}

type ManifestLead struct {
	SessionID    string     `json:"sessionId"`
	StudentName  string     `json:"studentName"`
	ParentName   string     `json:"parentName"`
	Phone        string     `json:"phone"`
	Category     *string    `json:"category,omitempty"`
	Booked       bool       `json:"booked"`
	SelectedDate *time.Time `json:"selectedDate,omitempty"`
	Bucket       Bucket     `json:"bucket,omitempty"`
}

// ManifestArchiver stores export manifests in object storage.
type ManifestArchiver interface {
	ArchiveManifest(ctx context.Context, manifest Manifest) (key string, err error)
}

// MessageSender delivers a campaign message to a phone number in E.164.
type MessageSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}
