// Package media turns a local file into a durable reference: validate size,
// obtain a presigned write target, transfer the bytes. Nothing reaches the
// conversation until the transfer has succeeded.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/50naija1/pizuna-app/internal/proto"
)

// ErrTooLarge is returned before any network call when the file exceeds the
// configured upload limit.
var ErrTooLarge = errors.New("file exceeds upload size limit")

// API is the server collaborator that presigns uploads and receives bytes.
// *api.Client satisfies it.
type API interface {
	Presign(ctx context.Context, fileName, fileType string) (proto.PresignResponse, error)
	Upload(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error
}

// Uploader validates and transfers local files.
type Uploader struct {
	api      API
	maxBytes int64
	log      *zerolog.Logger
}

// New creates an uploader with the given size cap in bytes.
func New(api API, maxBytes int64, logger *zerolog.Logger) *Uploader {
	return &Uploader{api: api, maxBytes: maxBytes, log: logger}
}

// Upload runs the pipeline and returns the durable reference for the file.
func (u *Uploader) Upload(ctx context.Context, path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if fi.Size() > u.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, fi.Size(), u.maxBytes)
	}

	contentType := detectContentType(path)
	presigned, err := u.api.Presign(ctx, filepath.Base(path), contentType)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if err := u.api.Upload(ctx, presigned.UploadURL, contentType, f, fi.Size()); err != nil {
		u.log.Warn().Err(err).Str("file", path).Msg("media upload failed")
		return "", err
	}

	u.log.Debug().Str("file", path).Str("type", contentType).Int64("bytes", fi.Size()).Msg("media uploaded")
	return presigned.FileURL, nil
}

// detectContentType sniffs the file bytes rather than trusting the extension.
func detectContentType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}
