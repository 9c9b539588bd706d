// Package staging allocates case identities and owns the local copy of an
// uploaded sample until archival (or cleanup) releases it.
package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/domain"
	"github.com/ujpm/Microsmart-PF/pkg/utils"
)

type Stager struct {
	dir string
	log *zap.Logger
}

func New(dir string, log *zap.Logger) *Stager {
	return &Stager{dir: dir, log: log}
}

// Stage writes the sample to a scoped local file and returns its case
// record. The case id is a full random UUID, allocated before any processing
// so every downstream failure can be attributed to a case. The file name is
// prefixed with the case id, so concurrent uploads of the same filename
// never collide.
func (s *Stager) Stage(sample []byte, originalName string) (*domain.CaseRecord, error) {
	caseID := uuid.New().String()
	name := utils.SanitizeFilename(originalName)
	path := filepath.Join(s.dir, caseID+"_"+name)

	if err := os.WriteFile(path, sample, 0644); err != nil {
		return nil, fmt.Errorf("write staged sample: %w", err)
	}

	s.log.Info("Sample staged",
		zap.String("case_id", caseID),
		zap.String("filename", name),
		zap.Int("size", len(sample)))

	return &domain.CaseRecord{
		ID:           caseID,
		OriginalName: name,
		StagedPath:   path,
		CreatedAt:    time.Now(),
	}, nil
}

// Release deletes the staged file. It is best-effort and idempotent:
// releasing an already-released record is not an error.
func (s *Stager) Release(rec *domain.CaseRecord) {
	if rec == nil || rec.StagedPath == "" {
		return
	}

	err := os.Remove(rec.StagedPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("Failed to release staged file",
			zap.String("case_id", rec.ID),
			zap.String("path", rec.StagedPath),
			zap.Error(err))
		return
	}

	if err == nil {
		s.log.Debug("Staged file released",
			zap.String("case_id", rec.ID),
			zap.String("path", rec.StagedPath))
	}
}
