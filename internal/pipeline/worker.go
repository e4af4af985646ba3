package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"imageflow/internal/logger"
	"imageflow/internal/models"
)

// RecordStore is the slice of the storage contract the worker depends on.
// The terminal update must be a single atomic write.
type RecordStore interface {
	UpdateTerminal(ctx context.Context, id uuid.UUID, status string, meta *models.Metadata, thumbnails map[string]string, caption *string, processedAt time.Time) error
}

// Captioner produces a caption for the image at path. It never fails; the
// implementation degrades to a generic string.
type Captioner interface {
	Resolve(ctx context.Context, path string) string
}

// Pipeline owns the job queue and the single worker goroutine that drains it.
// Jobs run strictly one at a time, in enqueue order.
type Pipeline struct {
	queue        *Queue
	store        RecordStore
	captioner    Captioner
	thumbnailDir string

	startOnce sync.Once
	done      chan struct{}
}

func New(store RecordStore, captioner Captioner, thumbnailDir string) *Pipeline {
	return &Pipeline{
		queue:        NewQueue(),
		store:        store,
		captioner:    captioner,
		thumbnailDir: thumbnailDir,
		done:         make(chan struct{}),
	}
}

// Enqueue submits a job for processing. It never blocks and never fails.
func (p *Pipeline) Enqueue(recordID uuid.UUID, storedPath, originalName string) {
	p.queue.Enqueue(models.IngestionJob{
		RecordID:     recordID,
		StoredPath:   storedPath,
		OriginalName: originalName,
	})
	logger.S.Infow("job enqueued", "record_id", recordID, "queued", p.queue.Len())
}

// Start launches the worker goroutine. Repeated calls are no-ops.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		go p.run()
		logger.S.Infow("pipeline worker started")
	})
}

// Stop closes the queue and waits for the worker to finish its current job
// and drain what was already queued.
func (p *Pipeline) Stop() {
	p.queue.Close()
	<-p.done
	logger.S.Infow("pipeline worker stopped")
}

func (p *Pipeline) run() {
	defer close(p.done)
	for {
		job, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		p.process(job)
	}
}

// process runs one job to a terminal status. No error, or panic, from one job
// may affect the worker loop or any later job.
func (p *Pipeline) process(job models.IngestionJob) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			logger.S.Errorw("job panicked", "record_id", job.RecordID, "panic", r)
			p.markFailed(ctx, job.RecordID, fmt.Errorf("panic: %v", r))
		}
	}()

	logger.S.Infow("processing image", "record_id", job.RecordID, "path", job.StoredPath)
	start := time.Now()

	meta, err := ExtractMetadata(job.StoredPath)
	if err != nil {
		logger.S.Errorw("metadata extraction failed", "record_id", job.RecordID, "error", err)
		p.markFailed(ctx, job.RecordID, err)
		return
	}

	src, err := imaging.Open(job.StoredPath)
	if err != nil {
		logger.S.Errorw("image decode failed", "record_id", job.RecordID, "error", err)
		p.markFailed(ctx, job.RecordID, fmt.Errorf("%w: %v", ErrUnreadableImage, err))
		return
	}

	thumbnails, err := GenerateThumbnails(src, meta.Format, job.OriginalName, start, p.thumbnailDir)
	if err != nil {
		logger.S.Errorw("thumbnail generation failed", "record_id", job.RecordID, "error", err)
		p.markFailed(ctx, job.RecordID, err)
		return
	}

	caption := p.captioner.Resolve(ctx, job.StoredPath)

	processedAt := time.Now().UTC()
	meta.ProcessedAt = processedAt
	if err := p.store.UpdateTerminal(ctx, job.RecordID, models.StatusSuccess, meta, thumbnails, &caption, processedAt); err != nil {
		// Accepted data loss at this boundary: the job is dropped.
		logger.S.Errorw("failed to persist job result", "record_id", job.RecordID, "error", err)
		return
	}
	logger.S.Infow("job succeeded", "record_id", job.RecordID, "elapsed", time.Since(start))
}

// markFailed records the terminal failed status with no partial results.
// processed_at is set at failure time.
func (p *Pipeline) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	if err := p.store.UpdateTerminal(ctx, id, models.StatusFailed, nil, nil, nil, time.Now().UTC()); err != nil {
		logger.S.Errorw("failed to persist failure status", "record_id", id, "cause", cause, "error", err)
	}
}
