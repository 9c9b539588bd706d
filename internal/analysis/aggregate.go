// Package analysis turns raw vision-model detections into per-class counts
// and the derived parasitemia ratio. It is pure: no I/O, no shared state.
package analysis

import (
	"math"

	"github.com/ujpm/Microsmart-PF/internal/domain"
)

// Known detection classes from the blood-smear training set.
const (
	ClassRedBloodCell = "Red_Blood_Cell"
	ClassLeukocyte    = "Leukocyte"
	ClassRing         = "Ring"
	ClassTrophozoite  = "Trophozoite"
	ClassGametocyte   = "Gametocyte"
	ClassSchizont     = "Schizont"
)

var knownClasses = []string{
	ClassRedBloodCell,
	ClassLeukocyte,
	ClassRing,
	ClassTrophozoite,
	ClassGametocyte,
	ClassSchizont,
}

// Parasite life-cycle stages counted toward parasitemia.
var parasiteStages = []string{
	ClassRing,
	ClassTrophozoite,
	ClassGametocyte,
	ClassSchizont,
}

// Aggregate tallies detections into the known class buckets. Labels outside
// the known set are still counted under their own key so unexpected model
// output stays visible instead of being silently dropped.
//
// Parasitemia is parasite-stage detections relative to red blood cells, as a
// percentage rounded to two decimals. The denominator is floored at 1: an
// image with no red blood cells is degenerate, and the policy here is to
// report a defined (if clinically meaningless) ratio rather than fail.
func Aggregate(detections []domain.Detection) domain.DetectionCounts {
	counts := make(map[string]int, len(knownClasses))
	for _, class := range knownClasses {
		counts[class] = 0
	}

	for _, det := range detections {
		counts[det.Label]++
	}

	parasites := 0
	for _, stage := range parasiteStages {
		parasites += counts[stage]
	}

	rbc := counts[ClassRedBloodCell]
	if rbc < 1 {
		rbc = 1
	}

	pct := float64(parasites) / float64(rbc) * 100
	pct = math.Round(pct*100) / 100

	return domain.DetectionCounts{
		Counts:         counts,
		ParasitemiaPct: pct,
	}
}
