package models

import "time"

// DigestReport is the periodic usage summary sent by the digest agent
type DigestReport struct {
	Date             time.Time
	TotalTranscripts int
	NewTranscripts   []Transcript
	Backfilled       int
	BackfillFailed   int
	Summary          AnalyticsSummary
}
