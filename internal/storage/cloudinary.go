// Package storage publishes finished artifacts to durable, publicly
// reachable locations.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Cloudinary uploads artifacts as video resources.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	logger zerolog.Logger
}

func NewCloudinary(cloudName, apiKey, apiSecret string, logger zerolog.Logger) (*Cloudinary, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary: cloud name, api key and api secret are required")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, logger: logger}, nil
}

func (c *Cloudinary) Publish(ctx context.Context, localPath, publicID string) (string, error) {
	res, err := c.cld.Upload.Upload(ctx, localPath, uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: "video",
		Overwrite:    api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("cloudinary upload: response has no secure url")
	}

	c.logger.Debug().Str("public_id", res.PublicID).Int("bytes", res.Bytes).Msg("cloudinary: uploaded")
	return res.SecureURL, nil
}
