package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/config"
	"github.com/ujpm/Microsmart-PF/internal/domain"
)

func TestBrainClientGenerateReport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload domain.DetectionCounts
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 150, payload.Counts["Red_Blood_Cell"])
		assert.InDelta(t, 10.0, payload.ParasitemiaPct, 1e-9)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"report": "Severe Malaria. Hospitalize immediately."}`))
	}))
	defer server.Close()

	client := NewBrainClient(config.BrainConfig{Endpoint: server.URL}, zap.NewNop())

	counts := domain.DetectionCounts{
		Counts:         map[string]int{"Red_Blood_Cell": 150, "Ring": 15},
		ParasitemiaPct: 10.0,
	}

	report, err := client.GenerateReport(context.Background(), counts)
	require.NoError(t, err)
	assert.Equal(t, "Severe Malaria. Hospitalize immediately.", report)
}

func TestBrainClientServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "knowledge base offline", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewBrainClient(config.BrainConfig{Endpoint: server.URL}, zap.NewNop())

	_, err := client.GenerateReport(context.Background(), domain.DetectionCounts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge base offline")
}

func TestBrainClientEmptyReport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"report": "  "}`))
	}))
	defer server.Close()

	client := NewBrainClient(config.BrainConfig{Endpoint: server.URL}, zap.NewNop())

	_, err := client.GenerateReport(context.Background(), domain.DetectionCounts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty report")
}
