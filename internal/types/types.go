package types

import "time"

// JobStatus is the transcription state attached to a video
type JobStatus string

// Job status constants
const (
	StatusUploaded   JobStatus = "uploaded"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Event names broadcast by the pipeline
const (
	EventStarted   = "transcription:started"
	EventCompleted = "transcription:completed"
	EventFailed    = "transcription:failed"
)

// Word is a recognized token anchored to the source audio
type Word struct {
	Text       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Sentence is a contiguous run of words
type Sentence struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

// TranscriptionResult represents the output of one completed job
type TranscriptionResult struct {
	Text      string     `json:"text"`
	Words     []Word     `json:"words"`
	Sentences []Sentence `json:"sentences"`
	Language  string     `json:"language"`
}

// TranscriptionRecord is what the durable store keeps per video
type TranscriptionRecord struct {
	VideoID     string    `json:"video_id"`
	OwnerID     string    `json:"user_id"`
	Placeholder bool      `json:"placeholder"`
	CreatedAt   time.Time `json:"created_at"`
	TranscriptionResult
}

// Video is the uploaded media entity owned by the store
type Video struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"user_id"`
	Title            string    `json:"title"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Size             int64     `json:"size"`
	MimeType         string    `json:"mimetype"`
	StorageURL       string    `json:"storage_url"`
	FolderID         *string   `json:"folder_id"` // nil at the library root
	Status           JobStatus `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// Folder groups an owner's videos; folders nest through ParentID
type Folder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"user_id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_folder_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusEvent is the payload of every pipeline event
type StatusEvent struct {
	VideoID string    `json:"videoId"`
	OwnerID string    `json:"userId"`
	Status  JobStatus `json:"status"`
	Error   string    `json:"error,omitempty"`
}
