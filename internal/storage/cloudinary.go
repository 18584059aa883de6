package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// CloudinaryStore uploads objects to Cloudinary. Keys become public ids
// under folder, without their extension.
type CloudinaryStore struct {
	folder   string
	uploader *uploader.API
	admin    *admin.API
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("cloudinary uploader: %w", err)
	}
	adm, err := admin.NewWithConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("cloudinary admin: %w", err)
	}
	return &CloudinaryStore{
		folder:   strings.Trim(folder, "/"),
		uploader: up,
		admin:    adm,
	}, nil
}

var _ ObjectStore = (*CloudinaryStore)(nil)

func (s *CloudinaryStore) Put(ctx context.Context, key, _ string, r io.Reader) (string, error) {
	res, err := s.uploader.Upload(ctx, r, uploader.UploadParams{
		PublicID:       s.PublicID(key),
		Overwrite:      api.Bool(true),
		Invalidate:     api.Bool(true),
		UniqueFilename: api.Bool(false),
		ResourceType:   "auto",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload %s: %w", key, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload %s: %s", key, res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("cloudinary upload returned no url")
	}
	return res.SecureURL, nil
}

func (s *CloudinaryStore) DeletePrefix(ctx context.Context, prefix string) error {
	res, err := s.admin.DeleteAssetsByPrefix(ctx, admin.DeleteAssetsByPrefixParams{
		Prefix: api.CldAPIArray{s.join(strings.Trim(prefix, "/"))},
	})
	if err != nil {
		return fmt.Errorf("cloudinary delete %s: %w", prefix, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary delete %s: %s", prefix, res.Error.Message)
	}
	return nil
}

// PublicID maps an object key to its Cloudinary public id.
func (s *CloudinaryStore) PublicID(key string) string {
	if i := strings.LastIndex(key, "."); i > strings.LastIndex(key, "/") {
		key = key[:i]
	}
	return s.join(key)
}

func (s *CloudinaryStore) join(p string) string {
	if s.folder == "" {
		return p
	}
	return s.folder + "/" + p
}
