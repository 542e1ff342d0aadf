package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/transly/internal/metrics"
	"github.com/codebuildervaibhav/transly/internal/queue"
	"github.com/codebuildervaibhav/transly/internal/transcription"
	"github.com/codebuildervaibhav/transly/internal/types"
)

// Stage names used in errors, logs and metrics
const (
	StageStart     = "start"
	StageExtract   = "extract"
	StageArchive   = "archive"
	StageInference = "inference"
	StageSegment   = "segment"
	StagePersist   = "persist"
	StageTotal     = "total"
)

// Extractor produces a canonical waveform from a source video
type Extractor interface {
	ExtractAudio(ctx context.Context, sourcePath string) (string, error)
}

// Transcriber runs recognition on a waveform
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (transcription.Outcome, error)
}

// Store is the durable store the pipeline writes to
type Store interface {
	UpdateStatus(ctx context.Context, videoID string, status types.JobStatus) error
	// CompleteTranscription stores record and moves the video to completed
	// in one step; on error neither change is visible
	CompleteTranscription(ctx context.Context, record types.TranscriptionRecord) error
	FetchTitle(ctx context.Context, videoID string) (string, error)
	UpdateStorageURL(ctx context.Context, videoID, url string) error
}

// Archiver makes the durable copy of a video and returns where it lives
type Archiver interface {
	Archive(ctx context.Context, videoID, ownerID, sourcePath string) (string, error)
}

// Broadcaster notifies listeners of stage transitions
type Broadcaster interface {
	Emit(name string, data any)
}

// Config wires the orchestrator's collaborators
type Config struct {
	Extractor   Extractor
	Transcriber Transcriber
	Store       Store
	Broadcaster Broadcaster
	// Archiver is optional; when set it runs alongside audio extraction
	Archiver Archiver
	// MaxSentenceWords overrides the segmenter length threshold
	MaxSentenceWords int
	Logger           *slog.Logger
}

// Orchestrator takes one job through extraction, inference, segmentation
// and persistence while driving the video status.
type Orchestrator struct {
	extractor        Extractor
	transcriber      Transcriber
	store            Store
	broadcaster      Broadcaster
	archiver         Archiver
	maxSentenceWords int
	logger           *slog.Logger
}

var _ queue.Processor = (*Orchestrator)(nil)

// New creates an orchestrator
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxWords := cfg.MaxSentenceWords
	if maxWords <= 0 {
		maxWords = transcription.DefaultMaxSentenceWords
	}
	return &Orchestrator{
		extractor:        cfg.Extractor,
		transcriber:      cfg.Transcriber,
		store:            cfg.Store,
		broadcaster:      cfg.Broadcaster,
		archiver:         cfg.Archiver,
		maxSentenceWords: maxWords,
		logger:           logger.With("component", "pipeline"),
	}
}

// Process runs the pipeline for job. Every failure, including a panic, ends
// in the failed status; the error is returned for logging only.
func (o *Orchestrator) Process(ctx context.Context, job queue.Job) (err error) {
	start := time.Now()
	logger := o.logger.With("video_id", job.VideoID, "owner_id", job.OwnerID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("pipeline panic: %v", r)
			o.fail(ctx, job, err, logger)
		}
	}()

	if title, err := o.store.FetchTitle(ctx, job.VideoID); err == nil {
		logger = logger.With("title", title)
	}

	if err := o.store.UpdateStatus(ctx, job.VideoID, types.StatusProcessing); err != nil {
		err = stageError(KindPersistence, StageStart, err)
		o.fail(ctx, job, err, logger)
		return err
	}
	o.emit(types.EventStarted, job, types.StatusProcessing, nil)
	logger.Info("transcription started")

	record, err := o.run(ctx, job, logger)
	if err != nil {
		o.fail(ctx, job, err, logger)
		return err
	}

	stageStart := time.Now()
	if err := o.store.CompleteTranscription(ctx, record); err != nil {
		err = stageError(KindPersistence, StagePersist, err)
		o.fail(ctx, job, err, logger)
		return err
	}
	metrics.ObserveStage(StagePersist, stageStart)
	logger.Info("transcription stored", "words", len(record.Words),
		"sentences", len(record.Sentences), "language", record.Language)

	o.emit(types.EventCompleted, job, types.StatusCompleted, nil)

	if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to release upload", "path", job.SourcePath, "err", err)
	}

	metrics.RecordJob(string(types.StatusCompleted))
	metrics.ObserveStage(StageTotal, start)
	logger.Info("transcription completed", "placeholder", record.Placeholder,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// run executes extraction, inference and segmentation and returns the record to persist
func (o *Orchestrator) run(ctx context.Context, job queue.Job, logger *slog.Logger) (types.TranscriptionRecord, error) {
	var (
		audioPath  string
		storageURL string
	)

	stageStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := o.extractor.ExtractAudio(gctx, job.SourcePath)
		if err != nil {
			return stageError(KindTranscoding, StageExtract, err)
		}
		audioPath = path
		metrics.ObserveStage(StageExtract, stageStart)
		return nil
	})
	if o.archiver != nil {
		g.Go(func() error {
			url, err := o.archiver.Archive(gctx, job.VideoID, job.OwnerID, job.SourcePath)
			if err != nil {
				return stageError(KindTranscoding, StageArchive, err)
			}
			storageURL = url
			metrics.ObserveStage(StageArchive, stageStart)
			return nil
		})
	}
	err := g.Wait()
	if audioPath != "" {
		defer func() {
			if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove waveform", "path", audioPath, "err", err)
			}
		}()
	}
	if err != nil {
		return types.TranscriptionRecord{}, err
	}

	if storageURL != "" {
		if err := o.store.UpdateStorageURL(ctx, job.VideoID, storageURL); err != nil {
			return types.TranscriptionRecord{}, stageError(KindPersistence, StageArchive, err)
		}
	}

	stageStart = time.Now()
	outcome, err := o.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return types.TranscriptionRecord{}, inferenceError(err)
	}
	metrics.ObserveStage(StageInference, stageStart)
	if outcome.IsPlaceholder() {
		logger.Warn("inference degraded to placeholder", "reason", outcome.Reason)
	}

	sentences := transcription.GroupSentences(outcome.Words, o.maxSentenceWords)

	return types.TranscriptionRecord{
		VideoID:     job.VideoID,
		OwnerID:     job.OwnerID,
		Placeholder: outcome.IsPlaceholder(),
		CreatedAt:   time.Now().UTC(),
		TranscriptionResult: types.TranscriptionResult{
			Text:      outcome.Text,
			Words:     outcome.Words,
			Sentences: sentences,
			Language:  outcome.Language,
		},
	}, nil
}

// fail moves the job to the terminal failed status; errors here are only logged
func (o *Orchestrator) fail(ctx context.Context, job queue.Job, cause error, logger *slog.Logger) {
	logger.Error("transcription failed", "kind", KindOf(cause), "err", cause)
	metrics.RecordJob(string(types.StatusFailed))

	ctx = context.WithoutCancel(ctx)
	if err := o.store.UpdateStatus(ctx, job.VideoID, types.StatusFailed); err != nil {
		logger.Error("failed to persist failed status", "err", err)
	}
	o.emit(types.EventFailed, job, types.StatusFailed, cause)
}

func (o *Orchestrator) emit(name string, job queue.Job, status types.JobStatus, cause error) {
	if o.broadcaster == nil {
		return
	}
	event := types.StatusEvent{
		VideoID: job.VideoID,
		OwnerID: job.OwnerID,
		Status:  status,
	}
	if cause != nil {
		var se *StageError
		if errors.As(cause, &se) {
			event.Error = string(se.Kind)
		} else {
			event.Error = "internal"
		}
	}
	o.broadcaster.Emit(name, event)
}
