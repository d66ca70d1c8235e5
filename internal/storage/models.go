package storage

import "time"

// Transcription is one history record: the raw transcription plus the
// processed text when the model rewrote it. ProcessedText is nil whenever
// processing was disabled, passthrough was active, or the call fell back.
type Transcription struct {
	ID            int64
	RawText       string
	ProcessedText *string
	ProfileID     string
	Model         string
	CreatedAt     time.Time
}
