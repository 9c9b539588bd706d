// Package archive persists completed cases to the remote content store,
// detached from the request path. Archival is best-effort: failures are
// logged and recorded on the task, never surfaced to the original caller
// and never retried.
package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/domain"
	"github.com/ujpm/Microsmart-PF/internal/repository"
	"github.com/ujpm/Microsmart-PF/internal/staging"
	"github.com/ujpm/Microsmart-PF/pkg/utils"
)

const (
	queueCapacity = 64
	taskTableCap  = 256
	uploadTimeout = 60 * time.Second
)

type job struct {
	rec    *domain.CaseRecord
	report string
}

// Archiver runs a small worker pool consuming scheduled archive jobs. Task
// status is retained in a bounded in-memory table so it stays queryable for
// diagnostics even though no endpoint exposes it yet.
type Archiver struct {
	store  repository.CaseStore
	stager *staging.Stager
	log    *zap.Logger

	jobs chan job

	mu     sync.Mutex
	tasks  map[string]*domain.ArchiveTask
	order  []string
	closed bool

	wg sync.WaitGroup
}

func New(store repository.CaseStore, stager *staging.Stager, workers int, log *zap.Logger) *Archiver {
	if workers < 1 {
		workers = 1
	}

	a := &Archiver{
		store:  store,
		stager: stager,
		log:    log,
		jobs:   make(chan job, queueCapacity),
		tasks:  make(map[string]*domain.ArchiveTask),
	}

	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go a.worker()
	}

	return a
}

// Schedule hands a finished case to the worker pool and returns a snapshot
// of its task. It never blocks the request path: when the queue is full or
// the archiver is shutting down the task is marked failed and the staged
// file released immediately, so local disk usage stays bounded.
func (a *Archiver) Schedule(rec *domain.CaseRecord, report string) domain.ArchiveTask {
	task := &domain.ArchiveTask{
		CaseID:       rec.ID,
		OriginalName: rec.OriginalName,
		Status:       domain.ArchivePending,
		CreatedAt:    time.Now(),
	}

	a.mu.Lock()
	closed := a.closed
	if !closed {
		a.tasks[rec.ID] = task
		a.order = append(a.order, rec.ID)
		a.prune()
	}
	a.mu.Unlock()

	if closed {
		task.Status = domain.ArchiveFailed
		task.Error = "archiver is shut down"
		a.stager.Release(rec)
		return *task
	}

	select {
	case a.jobs <- job{rec: rec, report: report}:
	default:
		a.fail(rec.ID, fmt.Errorf("archive queue is full"))
		a.stager.Release(rec)
	}

	return a.snapshot(rec.ID)
}

// Task returns a snapshot of the archive task for the given case id.
func (a *Archiver) Task(caseID string) (domain.ArchiveTask, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	task, ok := a.tasks[caseID]
	if !ok {
		return domain.ArchiveTask{}, false
	}
	return *task, true
}

// Close stops accepting new work and waits for in-flight uploads to finish.
func (a *Archiver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.jobs)
	a.wg.Wait()
}

func (a *Archiver) worker() {
	defer a.wg.Done()
	for j := range a.jobs {
		a.run(j)
	}
}

func (a *Archiver) run(j job) {
	// The staged file is released on every terminal outcome: a failed
	// archive means the sample only lives on in the already-returned
	// response payload.
	defer a.stager.Release(j.rec)

	a.setStatus(j.rec.ID, domain.ArchiveUploading)

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	if err := a.upload(ctx, j); err != nil {
		a.fail(j.rec.ID, err)
		a.log.Error("Case archival failed",
			zap.String("case_id", j.rec.ID),
			zap.Error(err))
		return
	}

	a.setStatus(j.rec.ID, domain.ArchiveDone)
	a.log.Info("Case archived",
		zap.String("case_id", j.rec.ID),
		zap.String("filename", j.rec.OriginalName))
}

func (a *Archiver) upload(ctx context.Context, j job) error {
	sample, err := os.Open(j.rec.StagedPath)
	if err != nil {
		return fmt.Errorf("open staged sample: %w", err)
	}
	defer sample.Close()

	info, err := sample.Stat()
	if err != nil {
		return fmt.Errorf("stat staged sample: %w", err)
	}

	sampleKey := repository.KeyPrefix + j.rec.ID + "/" + j.rec.OriginalName
	if err := a.store.Upload(ctx, sampleKey, sample, info.Size(), utils.ContentTypeByExt(j.rec.OriginalName)); err != nil {
		return fmt.Errorf("upload sample: %w", err)
	}

	reportKey := repository.KeyPrefix + j.rec.ID + "/report.md"
	reader := strings.NewReader(j.report)
	if err := a.store.Upload(ctx, reportKey, reader, int64(reader.Len()), utils.ContentTypeByExt("report.md")); err != nil {
		return fmt.Errorf("upload report: %w", err)
	}

	return nil
}

func (a *Archiver) setStatus(caseID string, status domain.ArchiveStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	task, ok := a.tasks[caseID]
	if !ok || terminal(task.Status) {
		return
	}
	task.Status = status
}

func (a *Archiver) fail(caseID string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	task, ok := a.tasks[caseID]
	if !ok || terminal(task.Status) {
		return
	}
	task.Status = domain.ArchiveFailed
	task.Error = err.Error()
}

func (a *Archiver) snapshot(caseID string) domain.ArchiveTask {
	a.mu.Lock()
	defer a.mu.Unlock()

	if task, ok := a.tasks[caseID]; ok {
		return *task
	}
	return domain.ArchiveTask{CaseID: caseID, Status: domain.ArchiveFailed}
}

// prune drops the oldest terminal tasks once the table exceeds its cap.
// Caller holds a.mu.
func (a *Archiver) prune() {
	for len(a.order) > taskTableCap {
		kept := a.order[:0]
		dropped := false
		for _, id := range a.order {
			if !dropped {
				if task, ok := a.tasks[id]; ok && terminal(task.Status) {
					delete(a.tasks, id)
					dropped = true
					continue
				}
			}
			kept = append(kept, id)
		}
		a.order = kept
		if !dropped {
			return
		}
	}
}

func terminal(s domain.ArchiveStatus) bool {
	return s == domain.ArchiveDone || s == domain.ArchiveFailed
}
