// Package upload sends profile and event images either through the backend
// (default) or straight to Cloudinary with an unsigned preset.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"ticketkenya/internal/api"
	"ticketkenya/internal/config"
	"ticketkenya/internal/logger"
)

const (
	ModeBackend    = "backend"
	ModeCloudinary = "cloudinary"

	MaxImageBytes = 5 << 20
)

var ErrNotImage = errors.New("only jpeg, png, gif and webp images can be uploaded")

type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

func New(client *api.Client, cfg config.UploadConfig, l *logger.Logger) (Uploader, error) {
	if l == nil {
		l = logger.Nop()
	}
	switch cfg.Mode {
	case "", ModeBackend:
		return &backendUploader{client: client, logger: l}, nil
	case ModeCloudinary:
		if cfg.CloudName == "" || cfg.UploadPreset == "" {
			return nil, fmt.Errorf("cloudinary mode needs CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET")
		}
		l.LogSecurity("UPLOAD", "direct unsigned Cloudinary uploads enabled")
		return &cloudinaryUploader{client: client, cloud: cfg.CloudName, preset: cfg.UploadPreset, logger: l}, nil
	}
	return nil, fmt.Errorf("unknown upload mode %q", cfg.Mode)
}

// readImage reads at most MaxImageBytes and sniffs the content type.
func readImage(filename string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%s is larger than %d MB", filepath.Base(filename), MaxImageBytes>>20)
	}
	switch ct := http.DetectContentType(data); {
	case strings.HasPrefix(ct, "image/jpeg"), strings.HasPrefix(ct, "image/png"),
		strings.HasPrefix(ct, "image/gif"), strings.HasPrefix(ct, "image/webp"):
		return data, nil
	}
	return nil, ErrNotImage
}

type backendUploader struct {
	client *api.Client
	logger *logger.Logger
}

func (u *backendUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := readImage(filename, r)
	if err != nil {
		return "", err
	}
	res, err := u.client.Uploads.Image(ctx, filepath.Base(filename), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if res.Location() == "" {
		return "", errors.New("upload response carried no url")
	}
	u.logger.Info("UPLOAD", fmt.Sprintf("Uploaded %s", filepath.Base(filename)))
	return res.Location(), nil
}

type cloudinaryUploader struct {
	client *api.Client
	cloud  string
	preset string
	logger *logger.Logger
}

func (u *cloudinaryUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := readImage(filename, r)
	if err != nil {
		return "", err
	}
	res, err := u.client.Uploads.Cloudinary(ctx, u.cloud, u.preset, filepath.Base(filename), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Location() == "" {
		return "", errors.New("cloudinary response carried no url")
	}
	return res.Location(), nil
}
