package api

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"ticketkenya/internal/models"
)

const cloudinaryEndpoint = "https://api.cloudinary.com/v1_1/%s/image/upload"

type UploadsService struct{ c *Client }

// Image sends an image through the backend, which holds the storage
// credentials.
func (s *UploadsService) Image(ctx context.Context, filename string, r io.Reader) (*models.UploadResult, error) {
	var out models.UploadResult
	if err := s.c.uploadFile(ctx, "uploads/images", "image", filename, r, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cloudinary posts straight to Cloudinary with an unsigned preset. The
// bearer token is never forwarded to the third party.
func (s *UploadsService) Cloudinary(ctx context.Context, cloudName, preset, filename string, r io.Reader) (*models.UploadResult, error) {
	if cloudName == "" || preset == "" {
		return nil, fmt.Errorf("cloudinary upload needs a cloud name and an upload preset")
	}
	target := fmt.Sprintf(cloudinaryEndpoint, url.PathEscape(cloudName))
	return s.cloudinaryAt(ctx, target, preset, filename, r)
}

func (s *UploadsService) cloudinaryAt(ctx context.Context, target, preset, filename string, r io.Reader) (*models.UploadResult, error) {
	var out models.UploadResult
	extra := map[string]string{"upload_preset": preset}
	if err := s.c.uploadFile(ctx, target, "file", filename, r, extra, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
