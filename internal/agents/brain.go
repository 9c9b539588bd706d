package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/config"
	"github.com/ujpm/Microsmart-PF/internal/domain"
)

// Reporter synthesizes a clinical report from aggregated detection counts.
type Reporter interface {
	GenerateReport(ctx context.Context, counts domain.DetectionCounts) (string, error)
}

// BrainClient posts detection statistics to the reasoning engine and returns
// its report text. The engine's internal failure modes are collapsed into a
// single error here to keep the orchestrator's error taxonomy closed.
type BrainClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *zap.Logger
}

var _ Reporter = (*BrainClient)(nil)

func NewBrainClient(cfg config.BrainConfig, log *zap.Logger) *BrainClient {
	return &BrainClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

func (c *BrainClient) GenerateReport(ctx context.Context, counts domain.DetectionCounts) (string, error) {
	payload, err := json.Marshal(counts)
	if err != nil {
		return "", fmt.Errorf("marshal counts: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("reasoning request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("reasoning engine returned %s: %s",
			resp.Status, strings.TrimSpace(string(detail)))
	}

	var result struct {
		Report string `json:"report"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode reasoning response: %w", err)
	}

	if strings.TrimSpace(result.Report) == "" {
		return "", fmt.Errorf("reasoning engine returned an empty report")
	}

	c.log.Debug("Report synthesized", zap.Int("length", len(result.Report)))

	return result.Report, nil
}
