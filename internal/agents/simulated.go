package agents

import (
	"context"
	"fmt"

	"github.com/ujpm/Microsmart-PF/internal/analysis"
	"github.com/ujpm/Microsmart-PF/internal/domain"
)

// SimulatedDetector is the demo-mode strategy: it returns a fixed detection
// set (150 red blood cells, 12 rings, 3 trophozoites, 1 leukocyte) without
// touching the staged image, which aggregates to a 10% parasitemia.
type SimulatedDetector struct{}

var _ Detector = (*SimulatedDetector)(nil)

func NewSimulatedDetector() *SimulatedDetector {
	return &SimulatedDetector{}
}

func (d *SimulatedDetector) Detect(_ context.Context, _ string) (domain.VisionResult, error) {
	canned := []struct {
		label string
		n     int
	}{
		{analysis.ClassRedBloodCell, 150},
		{analysis.ClassRing, 12},
		{analysis.ClassTrophozoite, 3},
		{analysis.ClassLeukocyte, 1},
	}

	var detections []domain.Detection
	for _, c := range canned {
		for i := 0; i < c.n; i++ {
			detections = append(detections, domain.Detection{
				Label:      c.label,
				Confidence: 0.9,
			})
		}
	}

	return domain.VisionResult{
		Detections: detections,
		Image:      domain.ImageMetadata{Width: 1600, Height: 1200},
	}, nil
}

// SimulatedReporter is the demo-mode reasoning strategy.
type SimulatedReporter struct{}

var _ Reporter = (*SimulatedReporter)(nil)

func NewSimulatedReporter() *SimulatedReporter {
	return &SimulatedReporter{}
}

func (r *SimulatedReporter) GenerateReport(_ context.Context, counts domain.DetectionCounts) (string, error) {
	return fmt.Sprintf(`**SIMULATED REPORT:**
Based on the parasitemia of %.1f%%, this patient exhibits signs of **Severe Malaria**.

**Recommendations:**
1. Immediate hospitalization required.
2. Initiate IV Artesunate protocol per Rwanda MOH guidelines.
3. Monitor blood glucose and hematocrit levels.
`, counts.ParasitemiaPct), nil
}
