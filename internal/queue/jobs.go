package queue

import "time"

// Job represents one video waiting for transcription
type Job struct {
	VideoID    string
	SourcePath string
	OwnerID    string
	EnqueuedAt time.Time
}

// NewJob creates a new job stamped with the current time
func NewJob(videoID, sourcePath, ownerID string) Job {
	return Job{
		VideoID:    videoID,
		SourcePath: sourcePath,
		OwnerID:    ownerID,
		EnqueuedAt: time.Now(),
	}
}
