package verify

import (
	"context"
	"fmt"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// DetectedLogo is one logo annotation
type DetectedLogo struct {
	Name       string
	Confidence float32
}

// Detector finds logos in raw image bytes
type Detector interface {
	DetectLogos(ctx context.Context, imageData []byte) ([]DetectedLogo, error)
}

// VisionDetector uses Cloud Vision LOGO_DETECTION
type VisionDetector struct {
	client *gvision.ImageAnnotatorClient
}

var _ Detector = (*VisionDetector)(nil)

// NewVisionDetector creates a client using Application Default Credentials unless opts say otherwise
func NewVisionDetector(ctx context.Context, opts ...option.ClientOption) (*VisionDetector, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionDetector{client: client}, nil
}

// Close releases the client
func (v *VisionDetector) Close() error {
	return v.client.Close()
}

// DetectLogos implements Detector
func (v *VisionDetector) DetectLogos(ctx context.Context, imageData []byte) ([]DetectedLogo, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imageData},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LOGO_DETECTION, MaxResults: 5},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}
	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	logos := make([]DetectedLogo, 0, len(resp.Responses[0].LogoAnnotations))
	for _, logo := range resp.Responses[0].LogoAnnotations {
		logos = append(logos, DetectedLogo{
			Name:       logo.Description,
			Confidence: logo.Score,
		})
	}
	return logos, nil
}
