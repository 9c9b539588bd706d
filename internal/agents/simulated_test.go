package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujpm/Microsmart-PF/internal/analysis"
)

func TestSimulatedDetectorAggregatesToTenPercent(t *testing.T) {
	t.Parallel()

	result, err := NewSimulatedDetector().Detect(context.Background(), "ignored.jpg")
	require.NoError(t, err)
	require.Len(t, result.Detections, 166)

	counts := analysis.Aggregate(result.Detections)
	assert.Equal(t, 150, counts.Counts[analysis.ClassRedBloodCell])
	assert.Equal(t, 12, counts.Counts[analysis.ClassRing])
	assert.Equal(t, 3, counts.Counts[analysis.ClassTrophozoite])
	assert.Equal(t, 1, counts.Counts[analysis.ClassLeukocyte])
	assert.InDelta(t, 10.0, counts.ParasitemiaPct, 1e-9)
}

func TestSimulatedReporter(t *testing.T) {
	t.Parallel()

	result, _ := NewSimulatedDetector().Detect(context.Background(), "x")
	counts := analysis.Aggregate(result.Detections)

	report, err := NewSimulatedReporter().GenerateReport(context.Background(), counts)
	require.NoError(t, err)
	assert.Contains(t, report, "Severe Malaria")
	assert.Contains(t, report, "10.0%")
}
