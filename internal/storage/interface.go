package storage

import (
	"context"
	"mime/multipart"
)

// ImageUploader stores user supplied images such as tool logos and blog
// covers. Handlers depend on this interface so tests can swap in a fake.
type ImageUploader interface {
	UploadImage(ctx context.Context, file multipart.File, header *multipart.FileHeader, folder, ownerID string) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
}

// BackupStore receives launch vote snapshots
type BackupStore interface {
	UploadBackup(ctx context.Context, date, backupID string, payload []byte) (*UploadResult, error)
}

var (
	_ ImageUploader = (*S3Uploader)(nil)
	_ BackupStore   = (*S3Uploader)(nil)
)
