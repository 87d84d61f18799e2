package models

import "time"

// FileMetadata describes one stored blob, identified by (Owner, Filename).
// The encrypted bytes themselves live in the storage backend.
type FileMetadata struct {
	ID         int64
	FileHash   *string
	Filename   string
	Owner      string
	Size       int64
	MimeType   string
	RiskScore  int
	Analysis   string
	Active     bool
	UploadTime time.Time
}
