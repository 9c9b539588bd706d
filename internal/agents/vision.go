// Package agents wraps the external AI collaborators: the vision inference
// service and the clinical reasoning engine. Both are black boxes reached
// over HTTP; their real and simulated implementations are selected once at
// startup, never branched per request.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/config"
	"github.com/ujpm/Microsmart-PF/internal/domain"
)

// Detector runs object detection on a staged blood-smear image.
type Detector interface {
	Detect(ctx context.Context, imagePath string) (domain.VisionResult, error)
}

// VisionClient calls the remote inference service with the staged image and
// maps its detection list into domain types.
type VisionClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *zap.Logger
}

var _ Detector = (*VisionClient)(nil)

func NewVisionClient(cfg config.VisionConfig, log *zap.Logger) *VisionClient {
	return &VisionClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

func (c *VisionClient) Detect(ctx context.Context, imagePath string) (domain.VisionResult, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return domain.VisionResult{}, fmt.Errorf("open staged image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return domain.VisionResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return domain.VisionResult{}, fmt.Errorf("copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.VisionResult{}, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return domain.VisionResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.VisionResult{}, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.VisionResult{}, fmt.Errorf("inference service returned %s: %s",
			resp.Status, strings.TrimSpace(string(detail)))
	}

	var result domain.VisionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.VisionResult{}, fmt.Errorf("decode inference response: %w", err)
	}

	c.log.Debug("Inference complete",
		zap.Int("detections", len(result.Detections)),
		zap.Int("width", result.Image.Width),
		zap.Int("height", result.Image.Height))

	return result, nil
}
