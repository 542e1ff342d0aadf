package pipeline

import (
	"errors"
	"fmt"

	"github.com/codebuildervaibhav/transly/internal/transcription"
)

// ErrorKind classifies a pipeline failure
type ErrorKind string

const (
	// KindInput is an empty or corrupt waveform
	KindInput ErrorKind = "input"
	// KindTranscoding is an extraction or compression failure
	KindTranscoding ErrorKind = "transcoding"
	// KindInference is a recognizer failure that could not be absorbed
	KindInference ErrorKind = "inference"
	// KindPersistence is a store write failure
	KindPersistence ErrorKind = "persistence"
)

// StageError is a failure in one pipeline stage
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a pipeline error, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func stageError(kind ErrorKind, stage string, err error) error {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// inferenceError classifies what the executor let through. An unreadable,
// empty or corrupt waveform is an input error.
func inferenceError(err error) error {
	var audioErr *transcription.AudioError
	switch {
	case errors.As(err, &audioErr),
		errors.Is(err, transcription.ErrEmptyAudio),
		errors.Is(err, transcription.ErrInvalidWAV):
		return stageError(KindInput, StageInference, err)
	default:
		return stageError(KindInference, StageInference, err)
	}
}
