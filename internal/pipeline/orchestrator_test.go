package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/transly/internal/events"
	"github.com/codebuildervaibhav/transly/internal/queue"
	"github.com/codebuildervaibhav/transly/internal/storage"
	"github.com/codebuildervaibhav/transly/internal/transcription"
	"github.com/codebuildervaibhav/transly/internal/types"
)

type fakeExtractor struct {
	dir string
	err error
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, sourcePath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, "audio.wav")
	return path, os.WriteFile(path, []byte("wav"), 0644)
}

type fakeTranscriber struct {
	outcome transcription.Outcome
	err     error
	delay   time.Duration
	panics  bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (transcription.Outcome, error) {
	if f.panics {
		panic("transcriber exploded")
	}
	time.Sleep(f.delay)
	return f.outcome, f.err
}

type memoryStore struct {
	mu             sync.Mutex
	statuses       map[string][]types.JobStatus
	records        map[string]types.TranscriptionRecord
	urls           map[string]string
	failInsert     error
	failProcessing error
	failCompleted  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		statuses: make(map[string][]types.JobStatus),
		records:  make(map[string]types.TranscriptionRecord),
		urls:     make(map[string]string),
	}
}

func (s *memoryStore) UpdateStatus(ctx context.Context, videoID string, status types.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == types.StatusProcessing && s.failProcessing != nil {
		return s.failProcessing
	}
	s.statuses[videoID] = append(s.statuses[videoID], status)
	return nil
}

// CompleteTranscription mirrors the store transaction: both writes or neither
func (s *memoryStore) CompleteTranscription(ctx context.Context, rec types.TranscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return s.failInsert
	}
	if s.failCompleted != nil {
		return s.failCompleted
	}
	s.records[rec.VideoID] = rec
	s.statuses[rec.VideoID] = append(s.statuses[rec.VideoID], types.StatusCompleted)
	return nil
}

func (s *memoryStore) FetchTitle(ctx context.Context, videoID string) (string, error) {
	return "title of " + videoID, nil
}

func (s *memoryStore) UpdateStorageURL(ctx context.Context, videoID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls[videoID] = url
	return nil
}

func (s *memoryStore) history(videoID string) []types.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.JobStatus(nil), s.statuses[videoID]...)
}

func (s *memoryStore) record(videoID string) (types.TranscriptionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[videoID]
	return rec, ok
}

type fakeArchiver struct {
	url string
	err error
}

func (f *fakeArchiver) Archive(ctx context.Context, videoID, ownerID, sourcePath string) (string, error) {
	return f.url, f.err
}

type capturedEvent struct {
	name string
	data types.StatusEvent
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (b *recordingBroadcaster) Emit(name string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, capturedEvent{name: name, data: data.(types.StatusEvent)})
}

func (b *recordingBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.events))
	for i, e := range b.events {
		names[i] = e.name
	}
	return names
}

func genuineOutcome() transcription.Outcome {
	return transcription.Outcome{
		Kind: transcription.KindGenuine,
		Text: "Hello. World Today",
		Words: []types.Word{
			{Text: "Hello.", Start: 0, End: 0.5, Confidence: 1},
			{Text: "World", Start: 0.6, End: 1.0, Confidence: 1},
			{Text: "Today", Start: 1.1, End: 1.5, Confidence: 1},
		},
		Language: "en",
	}
}

func newUpload(t *testing.T, videoID string) queue.Job {
	t.Helper()
	path := filepath.Join(t.TempDir(), videoID+".mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return queue.NewJob(videoID, path, "u1")
}

func TestProcessSuccess(t *testing.T) {
	store := newMemoryStore()
	bc := &recordingBroadcaster{}
	extractor := &fakeExtractor{dir: t.TempDir()}
	o := New(Config{
		Extractor:   extractor,
		Transcriber: &fakeTranscriber{outcome: genuineOutcome()},
		Store:       store,
		Broadcaster: bc,
		Archiver:    &fakeArchiver{url: "/videos/u1/v1/video.mp4"},
	})
	job := newUpload(t, "v1")

	require.NoError(t, o.Process(context.Background(), job))

	assert.Equal(t, []types.JobStatus{types.StatusProcessing, types.StatusCompleted}, store.history("v1"))
	assert.Equal(t, []string{types.EventStarted, types.EventCompleted}, bc.names())
	assert.Equal(t, types.StatusEvent{VideoID: "v1", OwnerID: "u1", Status: types.StatusCompleted}, bc.events[1].data)

	rec, ok := store.record("v1")
	require.True(t, ok)
	assert.Equal(t, "u1", rec.OwnerID)
	assert.False(t, rec.Placeholder)
	assert.Equal(t, "Hello. World Today", rec.Text)
	require.Len(t, rec.Sentences, 2)
	assert.Equal(t, "Hello.", rec.Sentences[0].Text)
	assert.Equal(t, "World Today", rec.Sentences[1].Text)
	assert.Equal(t, "/videos/u1/v1/video.mp4", store.urls["v1"])

	assert.NoFileExists(t, job.SourcePath)
	assert.NoFileExists(t, filepath.Join(extractor.dir, "audio.wav"))
}

func TestProcessExtractionFailure(t *testing.T) {
	store := newMemoryStore()
	bc := &recordingBroadcaster{}
	o := New(Config{
		Extractor:   &fakeExtractor{err: transcription.ErrTranscode},
		Transcriber: &fakeTranscriber{outcome: genuineOutcome()},
		Store:       store,
		Broadcaster: bc,
	})

	err := o.Process(context.Background(), newUpload(t, "v1"))
	require.Error(t, err)
	assert.Equal(t, KindTranscoding, KindOf(err))

	assert.Equal(t, []types.JobStatus{types.StatusProcessing, types.StatusFailed}, store.history("v1"))
	_, ok := store.record("v1")
	assert.False(t, ok)
	assert.Equal(t, []string{types.EventStarted, types.EventFailed}, bc.names())
	assert.Equal(t, "transcoding", bc.events[1].data.Error)
}

func TestProcessArchiveFailure(t *testing.T) {
	store := newMemoryStore()
	o := New(Config{
		Extractor:   &fakeExtractor{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{outcome: genuineOutcome()},
		Store:       store,
		Archiver:    &fakeArchiver{err: errors.New("disk full")},
	})

	err := o.Process(context.Background(), newUpload(t, "v1"))
	assert.Equal(t, KindTranscoding, KindOf(err))
	assert.Equal(t, types.StatusFailed, store.history("v1")[1])
}

func TestProcessInputFailure(t *testing.T) {
	store := newMemoryStore()
	o := New(Config{
		Extractor: &fakeExtractor{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{err: &transcription.AudioError{
			Path: "audio.wav", Err: transcription.ErrEmptyAudio,
		}},
		Store: store,
	})

	err := o.Process(context.Background(), newUpload(t, "v1"))
	assert.Equal(t, KindInput, KindOf(err))
	assert.ErrorIs(t, err, transcription.ErrEmptyAudio)
	_, ok := store.record("v1")
	assert.False(t, ok)
}

func TestProcessPersistenceFailure(t *testing.T) {
	store := newMemoryStore()
	store.failInsert = errors.New("database is locked")
	bc := &recordingBroadcaster{}
	o := New(Config{
		Extractor:   &fakeExtractor{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{outcome: genuineOutcome()},
		Store:       store,
		Broadcaster: bc,
	})
	job := newUpload(t, "v1")

	err := o.Process(context.Background(), job)
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, []types.JobStatus{types.StatusProcessing, types.StatusFailed}, store.history("v1"))
	assert.Equal(t, []string{types.EventStarted, types.EventFailed}, bc.names())
	// Failed uploads are left for the sweeper
	assert.FileExists(t, job.SourcePath)
}

func TestProcessCompletedWriteFailureLeavesNoRecord(t *testing.T) {
	store := newMemoryStore()
	store.failCompleted = errors.New("disk I/O error")
	bc := &recordingBroadcaster{}
	o := New(Config{
		Extractor:   &fakeExtractor{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{outcome: genuineOutcome()},
		Store:       store,
		Broadcaster: bc,
	})

	err := o.Process(context.Background(), newUpload(t, "v1"))
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, []types.JobStatus{types.StatusProcessing, types.StatusFailed}, store.history("v1"))
	_, ok := store.record("v1")
	assert.False(t, ok)
	assert.Equal(t, []string{types.EventStarted, types.EventFailed}, bc.names())
}

func TestProcessCorruptWaveformIsInputError(t *testing.T) {
	store := newMemoryStore()
	bc := &recordingBroadcaster{}
	executor := transcription.NewExecutor(transcription.ExecutorOptions{})
	defer executor.Close()
	o := New(Config{
		// fakeExtractor writes a file without a RIFF header
		Extractor:   &fakeExtractor{dir: t.TempDir()},
		Transcriber: executor,
		Store:       store,
		Broadcaster: bc,
	})

	err := o.Process(context.Background(), newUpload(t, "v1"))
	require.Error(t, err)
	assert.Equal(t, KindInput, KindOf(err))
	assert.ErrorIs(t, err, transcription.ErrInvalidWAV)
	assert.Equal(t, types.StatusFailed, store.history("v1")[1])
	_, ok := store.record("v1")
	assert.False(t, ok)
	assert.Equal(t, "input", bc.events[1].data.Error)
}

func TestProcessStartFailure(t *testing.T) {
	store := newMemoryStore()
	store.failProcessing = errors.New("no such video")
	bc := &recordingBroadcaster{}
	o := New(Config{
		Extractor:   &fakeExtractor{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{outcome: genuineOutcome()},
		Store:       store,
		Broadcaster: bc,
	})

	err := o.Process(context.Background(), newUpload(t, "v1"))
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, []types.JobStatus{types.StatusFailed}, store.history("v1"))
	assert.Equal(t, []string{types.EventFailed}, bc.names())
}

func TestProcessRecoversPanic(t *testing.T) {
	store := newMemoryStore()
	o := New(Config{
		Extractor:   &fakeExtractor{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{panics: true},
		Store:       store,
	})

	err := o.Process(context.Background(), newUpload(t, "v1"))
	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, store.history("v1")[1])
}

func TestProcessDegradedModeCompletes(t *testing.T) {
	store := newMemoryStore()
	o := New(Config{
		Extractor:   &fakeExtractor{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{outcome: transcription.PlaceholderOutcome("model unavailable")},
		Store:       store,
	})

	require.NoError(t, o.Process(context.Background(), newUpload(t, "v1")))

	assert.Equal(t, types.StatusCompleted, store.history("v1")[1])
	rec, ok := store.record("v1")
	require.True(t, ok)
	assert.True(t, rec.Placeholder)
	assert.Equal(t, transcription.PlaceholderText, rec.Text)
	assert.NotEmpty(t, rec.Sentences)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, KindInput, KindOf(inferenceError(transcription.ErrInvalidWAV)))
	assert.Equal(t, KindInput, KindOf(inferenceError(&transcription.AudioError{Path: "a.wav", Err: transcription.ErrInvalidWAV})))
	assert.Equal(t, KindInference, KindOf(inferenceError(errors.New("cuda"))))
	assert.Contains(t, stageError(KindInput, StageInference, errors.New("x")).Error(), "[input] inference")
}

// Two uploads through the real queue, hub and SQLite store: v2 waits for v1
func TestQueuedJobsEmitInOrder(t *testing.T) {
	db, err := storage.NewMetadataDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for _, id := range []string{"v1", "v2"} {
		require.NoError(t, db.CreateVideo(ctx, types.Video{
			ID: id, OwnerID: "u1", Title: id, Filename: id + ".mp4",
			OriginalFilename: id + ".mp4", Status: types.StatusUploaded,
		}))
	}

	hub := events.NewHub(16)
	sub, cancel := hub.Subscribe()
	defer cancel()

	o := New(Config{
		Extractor:   &fakeExtractor{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{outcome: genuineOutcome(), delay: 200 * time.Millisecond},
		Store:       db,
		Broadcaster: hub,
	})
	wp := queue.NewWorkerPool(o, queue.Options{}, nil)
	wp.Start(ctx)
	defer wp.Stop()

	require.NoError(t, wp.EnqueueJob(newUpload(t, "v1")))
	require.NoError(t, wp.EnqueueJob(newUpload(t, "v2")))

	v2, err := db.GetVideo(ctx, "v2", "u1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusUploaded, v2.Status)

	var got []string
	timeout := time.After(3 * time.Second)
	for len(got) < 4 {
		select {
		case ev := <-sub:
			got = append(got, ev.Name+" "+ev.Data.(types.StatusEvent).VideoID)
		case <-timeout:
			t.Fatalf("timed out after events %v", got)
		}
	}
	assert.Equal(t, []string{
		types.EventStarted + " v1",
		types.EventCompleted + " v1",
		types.EventStarted + " v2",
		types.EventCompleted + " v2",
	}, got)

	for _, id := range []string{"v1", "v2"} {
		v, err := db.GetVideo(ctx, id, "u1")
		require.NoError(t, err)
		assert.Equal(t, types.StatusCompleted, v.Status)
		rec, err := db.GetTranscription(ctx, id, "u1")
		require.NoError(t, err)
		assert.Len(t, rec.Sentences, 2)
	}
}
