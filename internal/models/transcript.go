package models

import "time"

// SourceKind records how a transcript entered the system
type SourceKind string

const (
	SourceUpload  SourceKind = "upload"
	SourcePasted  SourceKind = "pasted"
	SourceYouTube SourceKind = "youtube"
	SourceInbox   SourceKind = "inbox"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceUpload, SourcePasted, SourceYouTube, SourceInbox:
		return true
	}
	return false
}

// Transcript is the aggregate root. OriginalContent never changes after creation;
// ProcessedContent is only replaced by an explicit edit.
type Transcript struct {
	ID               int64         `json:"id"`
	Filename         string        `json:"filename"`
	OriginalContent  string        `json:"original_content"`
	ProcessedContent string        `json:"processed_content"`
	FormatStyle      DocumentStyle `json:"format_style"`
	SourceKind       SourceKind    `json:"source_kind"`
	CreatedAt        time.Time     `json:"created_at"`
}

// NewTranscript is the input for creating a transcript row
type NewTranscript struct {
	Filename         string
	OriginalContent  string
	ProcessedContent string
	FormatStyle      DocumentStyle
	SourceKind       SourceKind
}

// PostIdeas holds generated social post ideas, one row per transcript
type PostIdeas struct {
	TranscriptID int64     `json:"transcript_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// RewriteRecord is the latest styled rewrite of a transcript
type RewriteRecord struct {
	TranscriptID int64         `json:"transcript_id"`
	Content      string        `json:"content"`
	Options      RewriteConfig `json:"options"`
	CreatedAt    time.Time     `json:"created_at"`
}
