// cloudinary/cloudinary.go
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"log"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// videoTransformation shrinks uploads to 320px wide at low automatic quality
// so the hosted file stays well under Messenger's attachment limit.
const videoTransformation = "w_320,c_scale/q_auto:low"

// Service wraps the Cloudinary upload API.
type Service struct {
	client *cld.Cloudinary
}

// New builds a Service from explicit credentials.
func New(cloudName, apiKey, apiSecret string) (*Service, error) {
	client, err := cld.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("error configuring cloudinary: %v", err)
	}
	return &Service{client: client}, nil
}

// UploadVideo streams a video to Cloudinary and returns its public HTTPS URL.
func (s *Service) UploadVideo(ctx context.Context, r io.Reader, publicID string) (string, error) {
	return s.upload(ctx, r, publicID, "video", videoTransformation)
}

// UploadImage uploads an image, for generated pictures that arrive as bytes
// instead of a hosted URL.
func (s *Service) UploadImage(ctx context.Context, r io.Reader, publicID string) (string, error) {
	return s.upload(ctx, r, publicID, "image", "")
}

func (s *Service) upload(ctx context.Context, r io.Reader, publicID, resourceType, transformation string) (string, error) {
	resp, err := s.client.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:       publicID,
		ResourceType:   resourceType,
		Overwrite:      api.Bool(true),
		Transformation: transformation,
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload of %s failed: %v", publicID, err)
	}

	// The SDK reports API-level failures in the result body, not the error.
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload of %s failed: %s", publicID, resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload of %s returned no URL", publicID)
	}

	log.Printf("☁️ Uploaded %s to Cloudinary (%d bytes)", publicID, resp.Bytes)
	return resp.SecureURL, nil
}

// Destroy removes an uploaded asset. Used when the database write after an
// upload fails and the asset would otherwise be orphaned.
func (s *Service) Destroy(ctx context.Context, publicID, resourceType string) error {
	resp, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy of %s failed: %v", publicID, err)
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy of %s: %s", publicID, resp.Result)
	}

	log.Printf("🗑️ Removed %s from Cloudinary", publicID)
	return nil
}
