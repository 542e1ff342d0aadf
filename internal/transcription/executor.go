package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/codebuildervaibhav/transly/internal/metrics"
)

// ErrExecutorClosed is returned after Close
var ErrExecutorClosed = errors.New("inference executor is closed")

// AudioError wraps a failure to read the waveform handed to the executor.
// It is the only failure the executor reports instead of a placeholder.
type AudioError struct {
	Path string
	Err  error
}

func (e *AudioError) Error() string {
	return fmt.Sprintf("read audio %s: %v", e.Path, e.Err)
}

func (e *AudioError) Unwrap() error {
	return e.Err
}

// ExecutorOptions configures an Executor
type ExecutorOptions struct {
	// Loader initializes the model inside the worker context
	Loader ModelLoader
	// Language is the hint used on the primary attempt
	Language string
	Logger   *slog.Logger
}

// inferenceRequest crosses into the worker; reply is buffered so the worker never blocks
type inferenceRequest struct {
	ctx       context.Context
	audioPath string
	reply     chan inferenceResponse
}

type inferenceResponse struct {
	outcome Outcome
	err     error
}

// Executor runs speech recognition on a dedicated worker goroutine locked to
// its own OS thread. Callers only exchange messages with it.
type Executor struct {
	loader   ModelLoader
	language string
	logger   *slog.Logger

	mu     sync.Mutex
	worker *inferenceWorker
	closed bool
}

// NewExecutor creates an executor; the worker starts on first use
func NewExecutor(opts ExecutorOptions) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		loader:   opts.Loader,
		language: opts.Language,
		logger:   logger.With("component", "executor"),
	}
}

// Transcribe recognizes the waveform at audioPath. Model failures, empty
// results and worker crashes yield a placeholder outcome; an unreadable
// waveform is returned as *AudioError.
func (e *Executor) Transcribe(ctx context.Context, audioPath string) (Outcome, error) {
	w, err := e.acquire()
	if err != nil {
		return Outcome{}, err
	}

	req := inferenceRequest{
		ctx:       ctx,
		audioPath: audioPath,
		reply:     make(chan inferenceResponse, 1),
	}

	select {
	case w.requests <- req:
	case <-w.exited:
		return e.degrade("inference worker exited before accepting request"), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	var resp inferenceResponse
	select {
	case resp = <-req.reply:
	case <-w.exited:
		select {
		case resp = <-req.reply:
		default:
			return e.degrade(fmt.Sprintf("inference worker terminated abnormally: %v", w.crashReason())), nil
		}
	}

	if resp.err != nil {
		var audioErr *AudioError
		if errors.As(resp.err, &audioErr) {
			return Outcome{}, resp.err
		}
		return e.degrade(resp.err.Error()), nil
	}
	if resp.outcome.IsPlaceholder() {
		return e.degrade(resp.outcome.Reason), nil
	}

	metrics.InferenceOutcomes.WithLabelValues(KindGenuine.String()).Inc()
	return resp.outcome, nil
}

// Close stops the worker and releases the cached model
func (e *Executor) Close() {
	e.mu.Lock()
	w := e.worker
	e.worker = nil
	e.closed = true
	e.mu.Unlock()

	if w != nil {
		close(w.quit)
		<-w.exited
	}
}

func (e *Executor) degrade(reason string) Outcome {
	e.logger.Warn("returning placeholder transcription", "reason", reason)
	metrics.InferenceOutcomes.WithLabelValues(KindPlaceholder.String()).Inc()
	return PlaceholderOutcome(reason)
}

// acquire returns the live worker, replacing one that has terminated
func (e *Executor) acquire() (*inferenceWorker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrExecutorClosed
	}
	if e.worker != nil {
		select {
		case <-e.worker.exited:
			e.logger.Warn("restarting inference worker", "previous_crash", e.worker.crashReason())
			e.worker = nil
		default:
			return e.worker, nil
		}
	}

	e.worker = newInferenceWorker(e.loader, e.language, e.logger)
	go e.worker.loop()
	return e.worker, nil
}

// inferenceWorker owns the model; only its goroutine touches it
type inferenceWorker struct {
	loader   ModelLoader
	language string
	logger   *slog.Logger
	model    Recognizer

	requests chan inferenceRequest
	quit     chan struct{}
	exited   chan struct{}

	crashMu sync.Mutex
	crash   any
}

func newInferenceWorker(loader ModelLoader, language string, logger *slog.Logger) *inferenceWorker {
	return &inferenceWorker{
		loader:   loader,
		language: language,
		logger:   logger,
		requests: make(chan inferenceRequest),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

func (w *inferenceWorker) crashReason() any {
	w.crashMu.Lock()
	defer w.crashMu.Unlock()
	return w.crash
}

// loop serves requests until quit is closed or a request panics.
// The locked thread is discarded by the runtime when the goroutine dies.
func (w *inferenceWorker) loop() {
	runtime.LockOSThread()
	defer close(w.exited)
	defer func() {
		if r := recover(); r != nil {
			w.crashMu.Lock()
			w.crash = r
			w.crashMu.Unlock()
			w.logger.Error("inference worker crashed", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	for {
		select {
		case req := <-w.requests:
			outcome, err := w.handle(req)
			req.reply <- inferenceResponse{outcome: outcome, err: err}
		case <-w.quit:
			return
		}
	}
}

func (w *inferenceWorker) handle(req inferenceRequest) (Outcome, error) {
	samples, err := ReadSamples(req.audioPath)
	if err != nil {
		return Outcome{}, &AudioError{Path: req.audioPath, Err: err}
	}

	model, err := w.loadModel(req.ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load model: %w", err)
	}

	w.logger.Info("transcribing", "samples", len(samples), "seconds", Duration(samples), "language", w.language)
	rec, err := model.Recognize(req.ctx, samples, RecognizeOptions{Language: w.language})
	if err != nil {
		return Outcome{}, fmt.Errorf("recognize: %w", err)
	}

	if rec.empty() {
		w.logger.Warn("empty result with language hint, retrying without it", "language", w.language)
		rec, err = model.Recognize(req.ctx, samples, RecognizeOptions{})
		if err != nil {
			return Outcome{}, fmt.Errorf("recognize without language hint: %w", err)
		}
		if rec.empty() {
			return PlaceholderOutcome("recognizer returned empty text twice"), nil
		}
	}

	return buildOutcome(rec, len(samples)), nil
}

// loadModel initializes the model once per worker; a failed load is retried on the next request
func (w *inferenceWorker) loadModel(ctx context.Context) (Recognizer, error) {
	if w.model != nil {
		return w.model, nil
	}
	if w.loader == nil {
		return nil, errors.New("no model loader configured")
	}
	model, err := w.loader(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ModelLoads.Inc()
	w.model = model
	return model, nil
}
